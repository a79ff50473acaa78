package chat

import (
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/wire"
)

// Seed loads contacts and history known before the link comes up. Messages
// that were still sending when they were saved are marked failed.
type Seed struct {
	Contacts []Contact
	Messages []Message
	// Active, when set, is selected after loading.
	Active string
}

func (a Seed) apply(s *State, fx *Effects) error {
	for _, in := range a.Contacts {
		if in.ID == "" || in.ID == Me {
			continue
		}
		c, created := s.ensureContact(in.ID)
		if in.DisplayName != "" {
			c.DisplayName = in.DisplayName
		}
		if in.AvatarRef != "" {
			c.AvatarRef = in.AvatarRef
		}
		if created {
			c.UnreadCount = max(in.UnreadCount, 0)
			c.LastMessagePreview = in.LastMessagePreview
			c.LastMessageAt = in.LastMessageAt
		}
	}
	for _, in := range a.Messages {
		if in.ID == "" || in.ContactID == "" || in.ContactID == Me {
			continue
		}
		if _, dup := s.index[in.ID]; dup {
			continue
		}
		m := in
		if m.SenderID == "" || m.SenderID == s.Self {
			m.SenderID = Me
		}
		switch {
		case m.Status == Sending:
			m.Status = Failed
		case m.Status == "" && m.FromMe():
			m.Status = Sent
		case m.Status == "":
			m.Status = Delivered
		}
		c, _ := s.ensureContact(m.ContactID)
		s.appendMessage(&m)
		s.touch(c, &m)
	}
	for _, id := range s.order {
		fx.contactUpdated(s.contacts[id])
	}
	if a.Active != "" {
		if _, ok := s.contacts[a.Active]; ok {
			return SelectContact{ID: a.Active}.apply(s, fx)
		}
	}
	return nil
}

// SelectContact makes a contact the active conversation.
type SelectContact struct {
	ID string
}

func (a SelectContact) apply(s *State, fx *Effects) error {
	c, ok := s.contacts[a.ID]
	if !ok {
		return fmt.Errorf("select %q: %w", a.ID, ErrUnknownContact)
	}
	if s.Active != a.ID {
		// Read intent parked for the contact we leave is dropped.
		delete(s.pendingReads, s.Active)
		if s.reply != nil {
			s.reply = nil
			fx.notify(bus.KindReplyChanged, ReplyChanged{})
		}
	}
	s.Active = a.ID
	c.UnreadCount = 0
	if c.IsTyping {
		c.IsTyping = false
		fx.notify(bus.KindTyping, TypingChanged{ContactID: c.ID})
	}
	fx.notify(bus.KindActiveChanged, ActiveChanged{ContactID: a.ID})
	if s.Connected {
		fx.emit(wire.EventConversationOpened, wire.ConversationOpened{ContactID: a.ID}, true)
	}
	s.markRead(a.ID, fx)
	fx.contactUpdated(c)
	return nil
}

// markRead emits mark_read for every unread peer message of contactID, or
// parks the intent until the link is back.
func (s *State) markRead(contactID string, fx *Effects) {
	for _, m := range s.timelines[contactID] {
		if m.FromMe() || m.Status != Delivered {
			continue
		}
		r := readIntent{MessageID: m.ID, SenderID: m.SenderID}
		if !s.Connected {
			s.parkRead(contactID, r)
			continue
		}
		m.Status = Read
		s.emitRead(r, fx)
		fx.messageUpdated(m, m.ID)
	}
}

func (s *State) emitRead(r readIntent, fx *Effects) {
	fx.Emits = append(fx.Emits, Emit{
		Event:    wire.EventMarkRead,
		Payload:  wire.MarkRead{MessageID: r.MessageID, SenderID: r.SenderID},
		Volatile: true,
		OnFail:   ReadUnsent{MessageID: r.MessageID, SenderID: r.SenderID},
	})
}

func (s *State) parkRead(contactID string, r readIntent) {
	if slices.Contains(s.pendingReads[contactID], r) {
		return
	}
	s.pendingReads[contactID] = append(s.pendingReads[contactID], r)
}

// ReadUnsent reports a mark_read the link dropped. The message already shows
// as read locally, so the receipt is parked and sent again on reconnect,
// unless the conversation was left in between.
type ReadUnsent struct {
	MessageID string
	SenderID  string
}

func (a ReadUnsent) apply(s *State, _ *Effects) error {
	// Peer messages live under the sender's contact.
	if a.MessageID == "" || a.SenderID == "" || a.SenderID != s.Active {
		return nil
	}
	s.parkRead(a.SenderID, readIntent{MessageID: a.MessageID, SenderID: a.SenderID})
	return nil
}

// PendingReads returns how many read receipts wait for the link for contactID.
func (s *State) PendingReads(contactID string) int {
	return len(s.pendingReads[contactID])
}

// Incoming applies a new_message from the server.
type Incoming struct {
	Msg wire.NewMessage
	// Received stamps messages that arrive without a timestamp.
	Received time.Time
}

func (a Incoming) apply(s *State, fx *Effects) error {
	in := a.Msg
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: new_message: %v", ErrMalformed, err)
	}
	if in.SenderID != s.Self && in.SenderID == Me {
		return fmt.Errorf("%w: new_message %s from %q", ErrReservedID, in.ID, in.SenderID)
	}
	if _, dup := s.index[in.ID]; dup {
		return nil
	}
	if _, hidden := s.pendingDeletes[in.ID]; hidden {
		return nil
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = a.Received
	}

	// Our own message echoed from another session of the same user.
	if in.SenderID == s.Self {
		if in.ReceiverID == Me {
			return fmt.Errorf("%w: new_message %s to %q", ErrReservedID, in.ID, in.ReceiverID)
		}
		if in.ReceiverID == "" || in.ReceiverID == s.Self {
			return fmt.Errorf("%w: new_message %s has no peer", ErrMalformed, in.ID)
		}
		c, _ := s.ensureContact(in.ReceiverID)
		m := &Message{
			ID:        in.ID,
			ContactID: c.ID,
			SenderID:  Me,
			Content:   ContentFromWire(in.Content),
			Timestamp: ts,
			Status:    Sent,
			ReplyTo:   replyFromWire(in.ReplyingTo, s.Self),
		}
		s.appendMessage(m)
		s.touch(c, m)
		fx.notify(bus.KindMessageAppended, MessageAppended{
			Message: *m,
			Index:   len(s.timelines[c.ID]) - 1,
			Visible: c.ID == s.Active,
		})
		fx.contactUpdated(c)
		return nil
	}

	c, _ := s.ensureContact(in.SenderID)
	m := &Message{
		ID:        in.ID,
		ContactID: c.ID,
		SenderID:  in.SenderID,
		Content:   ContentFromWire(in.Content),
		Timestamp: ts,
		Status:    Delivered,
		ReplyTo:   replyFromWire(in.ReplyingTo, s.Self),
	}
	s.appendMessage(m)
	s.touch(c, m)
	if c.IsTyping {
		c.IsTyping = false
		fx.notify(bus.KindTyping, TypingChanged{ContactID: c.ID})
	}
	visible := c.ID == s.Active
	fx.notify(bus.KindMessageAppended, MessageAppended{
		Message: *m,
		Index:   len(s.timelines[c.ID]) - 1,
		Visible: visible,
	})
	if visible {
		fx.notify(bus.KindScrollHint, ScrollHint{ContactID: c.ID})
		s.markRead(c.ID, fx)
	} else {
		c.UnreadCount++
	}
	fx.contactUpdated(c)
	return nil
}

// ConnectionChanged tells the state the realtime link went up or down.
type ConnectionChanged struct {
	Connected bool
}

func (a ConnectionChanged) apply(s *State, fx *Effects) error {
	s.Connected = a.Connected
	if a.Connected {
		if s.Active != "" {
			fx.emit(wire.EventConversationOpened, wire.ConversationOpened{ContactID: s.Active}, true)
			// Receipts lost on the way out; unread ones follow via markRead.
			for _, r := range s.pendingReads[s.Active] {
				if _, m := s.find(r.MessageID); m != nil && m.Status == Read {
					s.emitRead(r, fx)
				}
			}
			s.markRead(s.Active, fx)
		}
		clear(s.pendingReads)
		return nil
	}
	// Presence is unknown while offline.
	clear(s.online)
	for _, id := range s.order {
		c := s.contacts[id]
		if !c.IsOnline && !c.IsTyping {
			continue
		}
		if c.IsTyping {
			fx.notify(bus.KindTyping, TypingChanged{ContactID: id})
		}
		c.IsOnline = false
		c.IsTyping = false
		fx.contactUpdated(c)
	}
	fx.notify(bus.KindPresence, PresenceChanged{})
	return nil
}
