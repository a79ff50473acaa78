package daemon

import (
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/config"
)

// seedFromConfig converts a seed file into chat state. Senders and statuses
// are normalized by the chat state when applied.
func seedFromConfig(s *config.Seed) chat.Seed {
	out := chat.Seed{Active: s.Active}
	for _, c := range s.Contacts {
		out.Contacts = append(out.Contacts, chat.Contact{
			ID:          c.ID,
			DisplayName: c.DisplayName,
			AvatarRef:   c.AvatarRef,
		})
	}
	for _, m := range s.Messages {
		content := chat.Text(m.Text)
		if kind := chat.Kind(m.Kind); kind == chat.KindImage || kind == chat.KindFile {
			content = chat.Content{Kind: kind, Attachment: &chat.Attachment{
				Name:     m.Name,
				Size:     m.Size,
				MimeType: m.MimeType,
				URL:      m.URL,
			}}
		}
		out.Messages = append(out.Messages, chat.Message{
			ID:        m.ID,
			ContactID: m.Contact,
			SenderID:  m.From,
			Content:   content,
			Timestamp: m.At,
			Status:    chat.Status(m.Status),
		})
	}
	return out
}
