// Package chat holds the client-side conversation state and the reducers that
// change it. Every mutation is an Action applied by a single Loop goroutine.
package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/gigchat/internal/wire"
)

// Me is the SenderID of messages written by the local user. It is reserved:
// a peer whose server id is Me is refused, so FromMe is never ambiguous.
const Me = "me"

// ErrReservedID rejects a peer id that collides with Me.
var ErrReservedID = errors.New("peer id is reserved")

var (
	ErrNoActiveContact = errors.New("no active contact")
	ErrUnknownContact  = errors.New("unknown contact")
	ErrUnknownMessage  = errors.New("unknown message")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrMalformed       = errors.New("malformed event")
)

// Status is the delivery state of a message.
type Status string

const (
	Sending   Status = "sending"
	Sent      Status = "sent"
	Delivered Status = "delivered"
	Read      Status = "read"
	Failed    Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case Sending:
		return 0
	case Sent:
		return 1
	case Delivered:
		return 2
	case Read:
		return 3
	}
	return -1
}

// Advance returns the status after observing next. Status never moves
// backwards; Failed is reachable only from Sending and is terminal.
func (s Status) Advance(next Status) (Status, bool) {
	if s == Failed || s == next {
		return s, false
	}
	if next == Failed {
		if s == Sending {
			return Failed, true
		}
		return s, false
	}
	if next.rank() > s.rank() {
		return next, true
	}
	return s, false
}

// Kind is the type of message content.
type Kind string

const (
	KindText  Kind = wire.KindText
	KindImage Kind = wire.KindImage
	KindFile  Kind = wire.KindFile
)

// Attachment is an image or file carried by a message.
type Attachment struct {
	Name     string
	Size     int64
	MimeType string
	URL      string
	Data     []byte `json:"-"`
}

// Content is exactly one of text, image or file.
type Content struct {
	Kind       Kind
	Text       string
	Attachment *Attachment
}

// Text builds text content.
func Text(s string) Content {
	return Content{Kind: KindText, Text: s}
}

// Validate reports whether c holds exactly one non-empty kind of content.
func (c Content) Validate() error {
	switch c.Kind {
	case KindText:
		if strings.TrimSpace(c.Text) == "" {
			return ErrEmptyContent
		}
		if c.Attachment != nil {
			return fmt.Errorf("%w: text with attachment", ErrMalformed)
		}
	case KindImage, KindFile:
		if c.Attachment == nil || (c.Attachment.Name == "" && c.Attachment.URL == "" && len(c.Attachment.Data) == 0) {
			return ErrEmptyContent
		}
		if c.Text != "" {
			return fmt.Errorf("%w: attachment with text", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: content kind %q", ErrMalformed, c.Kind)
	}
	return nil
}

const previewRunes = 60

// Preview is the one-line summary shown in the contact list.
func (c Content) Preview() string {
	switch c.Kind {
	case KindImage, KindFile:
		name := ""
		if c.Attachment != nil {
			name = c.Attachment.Name
		}
		return strings.TrimSpace("[" + string(c.Kind) + "] " + name)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(c.Text), "\n")
	if utf8.RuneCountInString(line) > previewRunes {
		r := []rune(line)
		return string(r[:previewRunes-1]) + "…"
	}
	return line
}

// ToWire converts c for the realtime channel.
func (c Content) ToWire() wire.Content {
	w := wire.Content{Type: string(c.Kind), Text: c.Text}
	if a := c.Attachment; a != nil {
		w.Name = a.Name
		w.Size = a.Size
		w.MimeType = a.MimeType
		w.URL = a.URL
		w.Data = a.Data
	}
	return w
}

// ContentFromWire converts inbound content.
func ContentFromWire(w wire.Content) Content {
	c := Content{Kind: Kind(w.Type), Text: w.Text}
	if c.Kind == KindImage || c.Kind == KindFile {
		c.Text = ""
		c.Attachment = &Attachment{
			Name:     w.Name,
			Size:     w.Size,
			MimeType: w.MimeType,
			URL:      w.URL,
			Data:     w.Data,
		}
	}
	return c
}

// ReplyRef is a quoted parent message.
type ReplyRef struct {
	ID       string
	SenderID string
	Preview  string
}

func (r *ReplyRef) toWire(self string) *wire.ReplyRef {
	if r == nil {
		return nil
	}
	sender := r.SenderID
	if sender == Me {
		sender = self
	}
	return &wire.ReplyRef{ID: r.ID, SenderID: sender, PreviewText: r.Preview}
}

func replyFromWire(r *wire.ReplyRef, self string) *ReplyRef {
	if r == nil || r.ID == "" {
		return nil
	}
	sender := r.SenderID
	switch sender {
	case self:
		sender = Me
	case Me:
		sender = ""
	}
	return &ReplyRef{ID: r.ID, SenderID: sender, Preview: r.PreviewText}
}

// Message is one entry of a conversation timeline.
type Message struct {
	// ID is the server id, or TempID until the send is acknowledged.
	ID        string
	TempID    string
	ContactID string
	SenderID  string
	Content   Content
	Timestamp time.Time
	Status    Status
	ReplyTo   *ReplyRef
}

// FromMe reports whether the local user wrote m.
func (m Message) FromMe() bool { return m.SenderID == Me }

// Contact is a conversation partner.
type Contact struct {
	ID                 string
	DisplayName        string
	AvatarRef          string
	IsOnline           bool
	IsTyping           bool
	UnreadCount        int
	LastMessagePreview string
	LastMessageAt      time.Time
}
