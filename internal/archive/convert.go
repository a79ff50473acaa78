package archive

import (
	"time"

	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/store"
)

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func contactToStore(c chat.Contact) *store.Contact {
	return &store.Contact{
		ID:                 c.ID,
		DisplayName:        c.DisplayName,
		AvatarRef:          c.AvatarRef,
		UnreadCount:        c.UnreadCount,
		LastMessagePreview: c.LastMessagePreview,
		LastMessageAt:      millis(c.LastMessageAt),
	}
}

func contactFromStore(c store.Contact) chat.Contact {
	return chat.Contact{
		ID:                 c.ID,
		DisplayName:        c.DisplayName,
		AvatarRef:          c.AvatarRef,
		UnreadCount:        c.UnreadCount,
		LastMessagePreview: c.LastMessagePreview,
		LastMessageAt:      fromMillis(c.LastMessageAt),
	}
}

func messageToStore(m chat.Message) *store.Message {
	out := &store.Message{
		ID:        m.ID,
		ContactID: m.ContactID,
		SenderID:  m.SenderID,
		Kind:      string(m.Content.Kind),
		Body:      m.Content.Text,
		Status:    string(m.Status),
		Timestamp: millis(m.Timestamp),
	}
	if a := m.Content.Attachment; a != nil {
		out.AttachmentName = a.Name
		out.AttachmentSize = a.Size
		out.MimeType = a.MimeType
		out.URL = a.URL
	}
	if r := m.ReplyTo; r != nil {
		out.ReplyID = r.ID
		out.ReplySenderID = r.SenderID
		out.ReplyPreview = r.Preview
	}
	return out
}

func messageFromStore(m store.Message) chat.Message {
	out := chat.Message{
		ID:        m.ID,
		ContactID: m.ContactID,
		SenderID:  m.SenderID,
		Content:   chat.Content{Kind: chat.Kind(m.Kind), Text: m.Body},
		Timestamp: fromMillis(m.Timestamp),
		Status:    chat.Status(m.Status),
	}
	if chat.IsTempID(m.ID) {
		out.TempID = m.ID
	}
	if out.Content.Kind == chat.KindImage || out.Content.Kind == chat.KindFile {
		out.Content.Text = ""
		out.Content.Attachment = &chat.Attachment{
			Name:     m.AttachmentName,
			Size:     m.AttachmentSize,
			MimeType: m.MimeType,
			URL:      m.URL,
		}
	}
	if m.ReplyID != "" {
		out.ReplyTo = &chat.ReplyRef{ID: m.ReplyID, SenderID: m.ReplySenderID, Preview: m.ReplyPreview}
	}
	return out
}
