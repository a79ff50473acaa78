package relay

import (
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/wire"
)

func (h *Hub) handle(p *peer, f wire.Frame) {
	switch f.Event {
	case wire.EventAuthenticate:
		h.onAuthenticate(p, f)
	case wire.EventSendMessage:
		h.onSendMessage(p, f)
	case wire.EventMarkRead:
		h.onMarkRead(p, f)
	case wire.EventTyping:
		h.onTyping(p, f)
	case wire.EventConversationOpened:
		var in wire.ConversationOpened
		if h.decode(p, f, &in) {
			h.logger.Debug("conversation opened", zap.String("user", p.user), zap.String("with", in.ContactID))
		}
	case wire.EventDeleteMessage:
		h.onDelete(p, f)
	default:
		p.push(mustFrame(wire.EventError, wire.ServerError{Message: "unknown event " + f.Event}))
		p.ack(f, wire.Ack{Error: "unknown event"})
	}
}

// decode unmarshals and validates f into v, answering the client on failure.
func (h *Hub) decode(p *peer, f wire.Frame, v any) bool {
	err := f.Decode(v)
	if err == nil {
		err = h.validate.Struct(v)
	}
	if err != nil {
		h.logger.Debug("rejecting frame", zap.String("event", f.Event), zap.Error(err))
		if f.ID != 0 {
			p.ack(f, wire.Ack{Error: "invalid payload"})
		} else {
			p.push(mustFrame(wire.EventError, wire.ServerError{Message: "invalid " + f.Event}))
		}
		return false
	}
	return true
}

func (h *Hub) onAuthenticate(p *peer, f wire.Frame) {
	var in wire.Authenticate
	if !h.decode(p, f, &in) {
		return
	}
	if p.user != "" {
		p.push(mustFrame(wire.EventError, wire.ServerError{Message: "already authenticated"}))
		return
	}
	p.user = in.UserID

	h.mu.Lock()
	others := h.onlineLocked(p.user)
	h.mu.Unlock()
	first, queued := h.register(p)

	p.push(mustFrame(wire.EventAuthenticated, nil))
	p.push(mustFrame(wire.EventOnlineUsers, wire.OnlineUsers{IDs: others}))
	if first {
		h.broadcast(mustFrame(wire.EventUserOnline, wire.UserPresence{UserID: p.user}), p.user)
	}
	for _, m := range queued {
		p.push(mustFrame(wire.EventNewMessage, m))
		h.deliver(m.SenderID, mustFrame(wire.EventMessageDelivered, wire.Receipt{MessageID: m.ID}), nil)
	}
	h.logger.Info("user online",
		zap.String("user", p.user),
		zap.Bool("first_session", first),
		zap.Int("queued_delivered", len(queued)),
	)
}

func (h *Hub) onSendMessage(p *peer, f wire.Frame) {
	var in wire.SendMessage
	if !h.decode(p, f, &in) {
		return
	}
	if err := in.Content.Validate(); err != nil {
		p.ack(f, wire.Ack{Error: err.Error()})
		return
	}
	if in.ReceiverID == p.user {
		p.ack(f, wire.Ack{Error: "cannot message yourself"})
		return
	}

	id := h.newID()
	h.recordMessage(id, messageMeta{sender: p.user, receiver: in.ReceiverID})
	p.ack(f, wire.Ack{MessageID: id})

	out := wire.NewMessage{
		ID:         id,
		SenderID:   p.user,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
		Timestamp:  h.now().UTC(),
		ReplyingTo: in.ReplyingTo,
	}
	frame := mustFrame(wire.EventNewMessage, out)
	// Other sessions of the sender see their own message too.
	h.deliver(p.user, frame, p)
	if h.deliver(in.ReceiverID, frame, nil) {
		h.deliver(p.user, mustFrame(wire.EventMessageDelivered, wire.Receipt{MessageID: id}), nil)
		return
	}
	h.queueOffline(in.ReceiverID, out)
}

func (h *Hub) onMarkRead(p *peer, f wire.Frame) {
	var in wire.MarkRead
	if !h.decode(p, f, &in) {
		return
	}
	meta, ok := h.lookup(in.MessageID)
	if !ok || meta.receiver != p.user {
		return
	}
	h.deliver(meta.sender, mustFrame(wire.EventMessageRead, wire.Receipt{MessageID: in.MessageID}), nil)
}

func (h *Hub) onTyping(p *peer, f wire.Frame) {
	var in wire.TypingOut
	if !h.decode(p, f, &in) {
		return
	}
	h.deliver(in.ReceiverID, mustFrame(wire.EventTyping, wire.TypingIn{SenderID: p.user, IsTyping: in.IsTyping}), nil)
}

func (h *Hub) onDelete(p *peer, f wire.Frame) {
	var in wire.DeleteMessage
	if !h.decode(p, f, &in) {
		return
	}
	meta, ok := h.lookup(in.MessageID)
	switch {
	case !ok:
		p.ack(f, wire.Ack{Error: "message not found"})
	case meta.sender != p.user:
		p.ack(f, wire.Ack{Error: "only the sender can delete a message"})
	default:
		h.forget(in.MessageID)
		p.ack(f, wire.Ack{MessageID: in.MessageID})
	}
}
