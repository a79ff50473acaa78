package chat

import "github.com/matheus3301/gigchat/internal/bus"

// OnlineSnapshot replaces the online set.
type OnlineSnapshot struct {
	IDs []string
}

func (a OnlineSnapshot) apply(s *State, fx *Effects) error {
	clear(s.online)
	for _, id := range a.IDs {
		if id != "" && id != s.Self && id != Me {
			s.online[id] = struct{}{}
		}
	}
	for _, id := range s.order {
		s.setOnline(s.contacts[id], s.IsOnline(id), fx)
	}
	fx.notify(bus.KindPresence, PresenceChanged{Online: s.OnlineIDs()})
	return nil
}

// UserOnline adds one user to the online set.
type UserOnline struct {
	ID string
}

func (a UserOnline) apply(s *State, fx *Effects) error {
	if a.ID == "" || a.ID == s.Self || a.ID == Me {
		return nil
	}
	s.online[a.ID] = struct{}{}
	if c, ok := s.contacts[a.ID]; ok {
		s.setOnline(c, true, fx)
	}
	fx.notify(bus.KindPresence, PresenceChanged{Online: s.OnlineIDs()})
	return nil
}

// UserOffline removes one user from the online set.
type UserOffline struct {
	ID string
}

func (a UserOffline) apply(s *State, fx *Effects) error {
	if a.ID == "" {
		return nil
	}
	delete(s.online, a.ID)
	if c, ok := s.contacts[a.ID]; ok {
		s.setOnline(c, false, fx)
	}
	fx.notify(bus.KindPresence, PresenceChanged{Online: s.OnlineIDs()})
	return nil
}

func (s *State) setOnline(c *Contact, online bool, fx *Effects) {
	if c.IsOnline == online {
		return
	}
	c.IsOnline = online
	if !online && c.IsTyping {
		c.IsTyping = false
		fx.notify(bus.KindTyping, TypingChanged{ContactID: c.ID})
	}
	fx.contactUpdated(c)
}

// Typing sets a peer's typing flag. Unknown senders are ignored.
type Typing struct {
	SenderID string
	IsTyping bool
}

func (a Typing) apply(s *State, fx *Effects) error {
	c, ok := s.contacts[a.SenderID]
	if !ok || c.IsTyping == a.IsTyping {
		return nil
	}
	c.IsTyping = a.IsTyping
	fx.notify(bus.KindTyping, TypingChanged{ContactID: c.ID, IsTyping: a.IsTyping})
	fx.contactUpdated(c)
	return nil
}
