package rpc

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/matheus3301/gigchat/internal/chat"
)

func timestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

// ContactFromChat converts a chat contact; active names the open conversation.
func ContactFromChat(c chat.Contact, active string) *Contact {
	return &Contact{
		ID:                 c.ID,
		DisplayName:        c.DisplayName,
		AvatarRef:          c.AvatarRef,
		IsOnline:           c.IsOnline,
		IsTyping:           c.IsTyping,
		UnreadCount:        c.UnreadCount,
		LastMessagePreview: c.LastMessagePreview,
		LastMessageAt:      timestamp(c.LastMessageAt),
		Active:             c.ID == active,
	}
}

func ReplyFromChat(r *chat.ReplyRef) *ReplyRef {
	if r == nil {
		return nil
	}
	return &ReplyRef{ID: r.ID, SenderID: r.SenderID, Preview: r.Preview}
}

func MessageFromChat(m chat.Message) *Message {
	out := &Message{
		ID:        m.ID,
		TempID:    m.TempID,
		ContactID: m.ContactID,
		SenderID:  m.SenderID,
		FromMe:    m.FromMe(),
		Kind:      string(m.Content.Kind),
		Text:      m.Content.Text,
		Status:    string(m.Status),
		Timestamp: timestamp(m.Timestamp),
		ReplyTo:   ReplyFromChat(m.ReplyTo),
	}
	if a := m.Content.Attachment; a != nil {
		out.AttachmentName = a.Name
		out.AttachmentSize = a.Size
		out.MimeType = a.MimeType
		out.URL = a.URL
	}
	return out
}
