package chat

import (
	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/wire"
)

// Effects collects what an action asks the outside world to do. They are
// executed after the action returns, on the loop goroutine.
type Effects struct {
	Emits   []Emit
	Sends   []SendRequest
	Deletes []DeleteRequest
	Notices []bus.Event
}

// Emit is a fire-and-forget emission. OnFail, when set, is dispatched if
// the manager refuses the frame.
type Emit struct {
	Event    string
	Payload  any
	Volatile bool
	OnFail   Action
}

// SendRequest asks for send_message with an ack that must come back as SendAcked.
type SendRequest struct {
	TempID  string
	Payload wire.SendMessage
}

// DeleteRequest asks for delete_message with an ack that must come back as DeleteSettled.
type DeleteRequest struct {
	MessageID string
}

// Empty reports whether there is nothing to execute.
func (fx *Effects) Empty() bool {
	return len(fx.Emits) == 0 && len(fx.Sends) == 0 && len(fx.Deletes) == 0 && len(fx.Notices) == 0
}

func (fx *Effects) emit(event string, payload any, volatile bool) {
	fx.Emits = append(fx.Emits, Emit{Event: event, Payload: payload, Volatile: volatile})
}

func (fx *Effects) notify(kind string, payload any) {
	fx.Notices = append(fx.Notices, bus.Event{Kind: kind, Payload: payload})
}

// Notice payloads. All carry copies.

type ContactUpdated struct {
	Contact Contact
}

type ActiveChanged struct {
	ContactID string
}

type MessageAppended struct {
	Message Message
	// Index is the slot in the contact's timeline.
	Index int
	// Visible is true when the contact is the active one.
	Visible bool
}

type MessageUpdated struct {
	Message Message
	// PrevID is the id the message had before this update.
	PrevID string
}

type MessageRemoved struct {
	ContactID string
	ID        string
}

type PresenceChanged struct {
	Online []string
}

type TypingChanged struct {
	ContactID string
	IsTyping  bool
}

type ScrollHint struct {
	ContactID string
}

type ReplyChanged struct {
	Reply *ReplyRef
}

func (fx *Effects) contactUpdated(c *Contact) {
	fx.notify(bus.KindContactUpdated, ContactUpdated{Contact: *c})
}

func (fx *Effects) messageUpdated(m *Message, prevID string) {
	fx.notify(bus.KindMessageUpdated, MessageUpdated{Message: *m, PrevID: prevID})
}
