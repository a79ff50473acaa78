package api

import (
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/store"
)

// storedToRPC converts an archived row. Archived senders are already
// normalized to chat.Me for our own messages.
func storedToRPC(m store.Message) *rpc.Message {
	out := &rpc.Message{
		ID:             m.ID,
		ContactID:      m.ContactID,
		SenderID:       m.SenderID,
		FromMe:         m.SenderID == chat.Me,
		Kind:           m.Kind,
		Text:           m.Body,
		AttachmentName: m.AttachmentName,
		AttachmentSize: m.AttachmentSize,
		MimeType:       m.MimeType,
		URL:            m.URL,
		Status:         m.Status,
	}
	if m.Timestamp != 0 {
		out.Timestamp = timestamppb.New(time.UnixMilli(m.Timestamp))
	}
	if m.ReplyID != "" {
		out.ReplyTo = &rpc.ReplyRef{ID: m.ReplyID, SenderID: m.ReplySenderID, Preview: m.ReplyPreview}
	}
	return out
}
