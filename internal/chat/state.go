package chat

import (
	"slices"
	"sort"
)

// earlyReceiptLimit bounds receipts held for ids that are not known yet.
const earlyReceiptLimit = 256

type readIntent struct {
	MessageID string
	SenderID  string
}

type pendingDelete struct {
	msg    *Message
	prevID string
	pos    int
}

// State is the whole client view of contacts and conversations. It is owned
// by a Loop and must only be touched from actions or Loop.View.
type State struct {
	// Self is the server-side id of the local user.
	Self      string
	Active    string
	Connected bool

	contacts  map[string]*Contact
	order     []string
	timelines map[string][]*Message
	online    map[string]struct{}
	reply     *ReplyRef

	// index maps server and temp ids to their contact.
	index          map[string]string
	tempToServer   map[string]string
	earlyReceipts  map[string]Status
	earlyOrder     []string
	pendingReads   map[string][]readIntent
	pendingDeletes map[string]pendingDelete
	deletedTemps   map[string]struct{}
}

// NewState returns empty state for the local user self.
func NewState(self string) *State {
	return &State{
		Self:           self,
		contacts:       make(map[string]*Contact),
		timelines:      make(map[string][]*Message),
		online:         make(map[string]struct{}),
		index:          make(map[string]string),
		tempToServer:   make(map[string]string),
		earlyReceipts:  make(map[string]Status),
		pendingReads:   make(map[string][]readIntent),
		pendingDeletes: make(map[string]pendingDelete),
		deletedTemps:   make(map[string]struct{}),
	}
}

// Contact returns a copy of contact id.
func (s *State) Contact(id string) (Contact, bool) {
	c, ok := s.contacts[id]
	if !ok {
		return Contact{}, false
	}
	return *c, true
}

// Contacts returns copies of all contacts, most recent conversation first.
// Contacts without messages keep their insertion order at the end.
func (s *State) Contacts() []Contact {
	out := make([]Contact, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.contacts[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// Timeline returns a copy of the messages exchanged with contactID, in
// append order.
func (s *State) Timeline(contactID string) []Message {
	tl := s.timelines[contactID]
	out := make([]Message, len(tl))
	for i, m := range tl {
		out[i] = *m
	}
	return out
}

// VisibleTimeline is the timeline of the active contact.
func (s *State) VisibleTimeline() []Message {
	if s.Active == "" {
		return nil
	}
	return s.Timeline(s.Active)
}

// Message looks a message up by server or temp id.
func (s *State) Message(id string) (Message, bool) {
	_, m := s.find(id)
	if m == nil {
		return Message{}, false
	}
	return *m, true
}

// OnlineIDs returns the sorted online set.
func (s *State) OnlineIDs() []string {
	out := make([]string, 0, len(s.online))
	for id := range s.online {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// IsOnline reports set membership.
func (s *State) IsOnline(id string) bool {
	_, ok := s.online[id]
	return ok
}

// ReplyTarget returns the pending reply reference, if any.
func (s *State) ReplyTarget() *ReplyRef {
	if s.reply == nil {
		return nil
	}
	r := *s.reply
	return &r
}

// ServerID resolves a temp id to the server id it was swapped for.
func (s *State) ServerID(tempID string) (string, bool) {
	id, ok := s.tempToServer[tempID]
	return id, ok
}

// ensureContact returns the contact, creating a minimal one if unknown.
func (s *State) ensureContact(id string) (*Contact, bool) {
	if c, ok := s.contacts[id]; ok {
		return c, false
	}
	c := &Contact{ID: id, DisplayName: id}
	_, c.IsOnline = s.online[id]
	s.contacts[id] = c
	s.order = append(s.order, id)
	return c, true
}

// resolve maps a temp id to its server id when the swap already happened.
func (s *State) resolve(id string) string {
	if sid, ok := s.tempToServer[id]; ok {
		return sid
	}
	return id
}

// find locates a message by server or temp id.
func (s *State) find(id string) (int, *Message) {
	id = s.resolve(id)
	contactID, ok := s.index[id]
	if !ok {
		return -1, nil
	}
	for i, m := range s.timelines[contactID] {
		if m.ID == id || m.TempID == id {
			return i, m
		}
	}
	return -1, nil
}

func (s *State) appendMessage(m *Message) {
	s.timelines[m.ContactID] = append(s.timelines[m.ContactID], m)
	s.index[m.ID] = m.ContactID
	if m.TempID != "" {
		s.index[m.TempID] = m.ContactID
	}
}

// touch updates the contact summary after m was appended.
func (s *State) touch(c *Contact, m *Message) {
	if m.Timestamp.Before(c.LastMessageAt) {
		return
	}
	c.LastMessagePreview = m.Content.Preview()
	c.LastMessageAt = m.Timestamp
}

// recomputePreview rebuilds the summary from the last message left.
func (s *State) recomputePreview(contactID string) {
	c, ok := s.contacts[contactID]
	if !ok {
		return
	}
	tl := s.timelines[contactID]
	if len(tl) == 0 {
		c.LastMessagePreview = ""
		return
	}
	last := tl[len(tl)-1]
	c.LastMessagePreview = last.Content.Preview()
	c.LastMessageAt = last.Timestamp
}

func (s *State) bufferReceipt(id string, st Status) {
	if prev, ok := s.earlyReceipts[id]; ok {
		if next, changed := prev.Advance(st); changed {
			s.earlyReceipts[id] = next
		}
		return
	}
	if len(s.earlyOrder) >= earlyReceiptLimit {
		oldest := s.earlyOrder[0]
		s.earlyOrder = s.earlyOrder[1:]
		delete(s.earlyReceipts, oldest)
	}
	s.earlyReceipts[id] = st
	s.earlyOrder = append(s.earlyOrder, id)
}

func (s *State) takeEarlyReceipt(id string) (Status, bool) {
	st, ok := s.earlyReceipts[id]
	if !ok {
		return "", false
	}
	delete(s.earlyReceipts, id)
	if i := slices.Index(s.earlyOrder, id); i >= 0 {
		s.earlyOrder = slices.Delete(s.earlyOrder, i, i+1)
	}
	return st, true
}
