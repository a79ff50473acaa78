package wire

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Content kinds.
const (
	KindText  = "text"
	KindImage = "image"
	KindFile  = "file"
)

var (
	ErrEmptyContent   = errors.New("content is empty")
	ErrUnknownKind    = errors.New("unknown content kind")
	ErrMixedContent   = errors.New("content mixes text and attachment")
	ErrMissingPayload = errors.New("required field missing")
)

// Content is a message body: text, or one image or file attachment.
type Content struct {
	Type     string `json:"type" validate:"oneof=text image file"`
	Text     string `json:"text,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty" validate:"gte=0"`
	MimeType string `json:"mimeType,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// Validate checks that exactly one kind of content is present.
func (c Content) Validate() error {
	switch c.Type {
	case KindText:
		if strings.TrimSpace(c.Text) == "" {
			return ErrEmptyContent
		}
		if c.Name != "" || len(c.Data) > 0 || c.URL != "" {
			return ErrMixedContent
		}
	case KindImage, KindFile:
		if c.Name == "" && c.URL == "" && len(c.Data) == 0 {
			return ErrEmptyContent
		}
		if c.Text != "" {
			return ErrMixedContent
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Type)
	}
	return nil
}

// ReplyRef points at the message being replied to.
type ReplyRef struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	PreviewText string `json:"previewText,omitempty"`
}

// Authenticate identifies the local user right after connecting.
type Authenticate struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

// SendMessage asks the server to deliver content to ReceiverID.
type SendMessage struct {
	ReceiverID string    `json:"receiverId" validate:"required,max=128"`
	Content    Content   `json:"content"`
	TempID     string    `json:"tempId" validate:"required"`
	ReplyingTo *ReplyRef `json:"replyingTo,omitempty"`
}

// Ack is the data of an ack frame. A non-empty Error means rejection.
type Ack struct {
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// MarkRead tells the server the local user has read a peer message.
type MarkRead struct {
	MessageID string `json:"messageId" validate:"required"`
	SenderID  string `json:"senderId" validate:"required"`
}

// TypingOut announces the local typing state to ReceiverID.
type TypingOut struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	IsTyping   bool   `json:"isTyping"`
}

// ConversationOpened tells the server which conversation is in view.
type ConversationOpened struct {
	ContactID string `json:"contactId"`
}

// DeleteMessage asks the server to remove a message.
type DeleteMessage struct {
	MessageID string `json:"messageId" validate:"required"`
}

// NewMessage is an inbound message.
type NewMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId,omitempty"`
	Content    Content   `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	ReplyingTo *ReplyRef `json:"replyingTo,omitempty"`
}

// Validate rejects frames that cannot be placed in a timeline.
func (m NewMessage) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: id", ErrMissingPayload)
	}
	if m.SenderID == "" {
		return fmt.Errorf("%w: senderId", ErrMissingPayload)
	}
	return m.Content.Validate()
}

// Receipt carries a delivered or read notification.
type Receipt struct {
	MessageID string `json:"messageId"`
}

// TypingIn is a peer typing notification.
type TypingIn struct {
	SenderID string `json:"senderId"`
	IsTyping bool   `json:"isTyping"`
}

// OnlineUsers is the full presence snapshot.
type OnlineUsers struct {
	IDs []string `json:"ids"`
}

// UserPresence names a user that came online or went offline.
type UserPresence struct {
	UserID string `json:"userId"`
}

// Reason explains a locally raised connect_error or disconnect.
type Reason struct {
	Reason string `json:"reason"`
}

// ServerError is the data of a server "error" event.
type ServerError struct {
	Message string `json:"message"`
}
