package chat

import (
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/wire"
)

// SendLocal appends an optimistic message to the active conversation and
// requests send_message.
type SendLocal struct {
	TempID  string
	Content Content
	Now     time.Time
}

func (a SendLocal) apply(s *State, fx *Effects) error {
	if s.Active == "" {
		return ErrNoActiveContact
	}
	if err := a.Content.Validate(); err != nil {
		return err
	}
	if !IsTempID(a.TempID) {
		return fmt.Errorf("%w: temp id %q", ErrMalformed, a.TempID)
	}
	c := s.contacts[s.Active]
	var reply *ReplyRef
	if s.reply != nil {
		r := *s.reply
		r.ID = s.resolve(r.ID)
		reply = &r
		s.reply = nil
		fx.notify(bus.KindReplyChanged, ReplyChanged{})
	}
	m := &Message{
		ID:        a.TempID,
		TempID:    a.TempID,
		ContactID: c.ID,
		SenderID:  Me,
		Content:   a.Content,
		Timestamp: a.Now,
		Status:    Sending,
		ReplyTo:   reply,
	}
	s.appendMessage(m)
	s.touch(c, m)
	fx.Sends = append(fx.Sends, SendRequest{
		TempID: a.TempID,
		Payload: wire.SendMessage{
			ReceiverID: c.ID,
			Content:    a.Content.ToWire(),
			TempID:     a.TempID,
			ReplyingTo: reply.toWire(s.Self),
		},
	})
	fx.notify(bus.KindMessageAppended, MessageAppended{
		Message: *m,
		Index:   len(s.timelines[c.ID]) - 1,
		Visible: true,
	})
	fx.notify(bus.KindScrollHint, ScrollHint{ContactID: c.ID})
	fx.contactUpdated(c)
	return nil
}

// SendAcked reconciles an optimistic message with the server's answer.
// A missing ServerID counts as failure.
type SendAcked struct {
	TempID   string
	ServerID string
	Failed   bool
	Reason   string
}

func (a SendAcked) apply(s *State, fx *Effects) error {
	_, m := s.find(a.TempID)
	if m == nil || m.TempID != a.TempID {
		s.settleDeletedTemp(a, fx)
		return nil
	}
	// Already swapped, or given up on after a timeout.
	if m.ID != a.TempID || m.Status == Failed {
		return nil
	}
	if a.Failed || a.ServerID == "" {
		// A receipt by temp id proves the server has it; only a message
		// still sending can fail.
		if next, changed := m.Status.Advance(Failed); changed {
			m.Status = next
			fx.messageUpdated(m, m.ID)
		}
		return nil
	}

	// The same message may already be here, echoed from another session.
	if other, ok := s.index[a.ServerID]; ok {
		tl := s.timelines[other]
		if j := slices.IndexFunc(tl, func(x *Message) bool { return x.ID == a.ServerID }); j >= 0 {
			s.timelines[other] = slices.Delete(tl, j, j+1)
			fx.notify(bus.KindMessageRemoved, MessageRemoved{ContactID: other, ID: a.ServerID})
		}
	}

	prev := m.ID
	m.ID = a.ServerID
	s.tempToServer[a.TempID] = a.ServerID
	s.index[a.ServerID] = m.ContactID
	// A receipt by temp id may have moved the status past Sent already.
	m.Status, _ = m.Status.Advance(Sent)
	if st, ok := s.takeEarlyReceipt(a.ServerID); ok {
		m.Status, _ = m.Status.Advance(st)
	}
	fx.messageUpdated(m, prev)
	return nil
}

// settleDeletedTemp forwards a delete for a message removed before its ack.
func (s *State) settleDeletedTemp(a SendAcked, fx *Effects) {
	if _, gone := s.deletedTemps[a.TempID]; !gone {
		return
	}
	delete(s.deletedTemps, a.TempID)
	delete(s.index, a.TempID)
	if a.Failed || a.ServerID == "" {
		return
	}
	s.tempToServer[a.TempID] = a.ServerID
	fx.Deletes = append(fx.Deletes, DeleteRequest{MessageID: a.ServerID})
}

// Receipt advances one of our messages to Delivered or Read. Receipts for
// ids not seen yet are held until the matching ack arrives.
type Receipt struct {
	MessageID string
	Status    Status
}

func (a Receipt) apply(s *State, fx *Effects) error {
	if a.Status != Delivered && a.Status != Read {
		return fmt.Errorf("%w: receipt status %q", ErrMalformed, a.Status)
	}
	if a.MessageID == "" {
		return fmt.Errorf("%w: receipt without message id", ErrMalformed)
	}
	id := s.resolve(a.MessageID)
	if p, ok := s.pendingDeletes[id]; ok {
		p.msg.Status, _ = p.msg.Status.Advance(a.Status)
		return nil
	}
	_, m := s.find(id)
	if m == nil {
		s.bufferReceipt(id, a.Status)
		return nil
	}
	if !m.FromMe() {
		return nil
	}
	if next, changed := m.Status.Advance(a.Status); changed {
		m.Status = next
		fx.messageUpdated(m, m.ID)
	}
	return nil
}

// DeleteLocal removes a message at once. Acknowledged messages are sent to
// the server and restored if it refuses.
type DeleteLocal struct {
	MessageID string
}

func (a DeleteLocal) apply(s *State, fx *Effects) error {
	i, m := s.find(a.MessageID)
	if m == nil {
		return fmt.Errorf("delete %q: %w", a.MessageID, ErrUnknownMessage)
	}
	contactID := m.ContactID
	tl := s.timelines[contactID]
	prevID := ""
	if i > 0 {
		prevID = tl[i-1].ID
	}
	s.timelines[contactID] = slices.Delete(tl, i, i+1)
	fx.notify(bus.KindMessageRemoved, MessageRemoved{ContactID: contactID, ID: m.ID})

	if s.reply != nil && (s.reply.ID == m.ID || (m.TempID != "" && s.reply.ID == m.TempID)) {
		s.reply = nil
		fx.notify(bus.KindReplyChanged, ReplyChanged{})
	}

	switch {
	case IsTempID(m.ID) && m.Status == Sending:
		// The ack is still out; the delete follows it.
		s.deletedTemps[m.TempID] = struct{}{}
	case IsTempID(m.ID):
		delete(s.index, m.ID)
	default:
		s.pendingDeletes[m.ID] = pendingDelete{msg: m, prevID: prevID, pos: i}
		fx.Deletes = append(fx.Deletes, DeleteRequest{MessageID: m.ID})
	}
	s.recomputePreview(contactID)
	fx.contactUpdated(s.contacts[contactID])
	return nil
}

// DeleteSettled commits or rolls back a DeleteLocal. Only an explicit
// rejection restores the message.
type DeleteSettled struct {
	MessageID string
	Rejected  bool
	Reason    string
}

func (a DeleteSettled) apply(s *State, fx *Effects) error {
	p, ok := s.pendingDeletes[a.MessageID]
	if !ok {
		return nil
	}
	delete(s.pendingDeletes, a.MessageID)
	m := p.msg
	if !a.Rejected {
		delete(s.index, m.ID)
		if m.TempID != "" {
			delete(s.index, m.TempID)
		}
		return nil
	}

	tl := s.timelines[m.ContactID]
	pos := min(p.pos, len(tl))
	if p.prevID == "" {
		pos = 0
	} else if j := slices.IndexFunc(tl, func(x *Message) bool { return x.ID == p.prevID }); j >= 0 {
		pos = j + 1
	}
	s.timelines[m.ContactID] = slices.Insert(tl, pos, m)
	fx.notify(bus.KindMessageAppended, MessageAppended{
		Message: *m,
		Index:   pos,
		Visible: m.ContactID == s.Active,
	})
	s.recomputePreview(m.ContactID)
	fx.contactUpdated(s.contacts[m.ContactID])
	return nil
}

// SetReplyTarget quotes a message of the active conversation in the next send.
type SetReplyTarget struct {
	MessageID string
}

func (a SetReplyTarget) apply(s *State, fx *Effects) error {
	if s.Active == "" {
		return ErrNoActiveContact
	}
	_, m := s.find(a.MessageID)
	if m == nil || m.ContactID != s.Active {
		return fmt.Errorf("reply to %q: %w", a.MessageID, ErrUnknownMessage)
	}
	s.reply = &ReplyRef{ID: m.ID, SenderID: m.SenderID, Preview: m.Content.Preview()}
	fx.notify(bus.KindReplyChanged, ReplyChanged{Reply: s.ReplyTarget()})
	return nil
}

// ClearReply drops the reply target.
type ClearReply struct{}

func (ClearReply) apply(s *State, fx *Effects) error {
	if s.reply == nil {
		return nil
	}
	s.reply = nil
	fx.notify(bus.KindReplyChanged, ReplyChanged{})
	return nil
}
