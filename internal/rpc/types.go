package rpc

import (
	"encoding/json"

	"google.golang.org/protobuf/types/known/timestamppb"
)

type Status struct {
	Profile      string                 `json:"profile"`
	UserID       string                 `json:"user_id"`
	Endpoint     string                 `json:"endpoint"`
	State        string                 `json:"state"`
	StateSince   *timestamppb.Timestamp `json:"state_since,omitempty"`
	Connected    bool                   `json:"connected"`
	UptimeMs     int64                  `json:"uptime_ms"`
	Active       string                 `json:"active,omitempty"`
	Online       []string               `json:"online"`
	QueuedFrames int                    `json:"queued_frames"`
	ContactCount int64                  `json:"contact_count"`
	MessageCount int64                  `json:"message_count"`
}

type Contact struct {
	ID                 string                 `json:"id"`
	DisplayName        string                 `json:"display_name"`
	AvatarRef          string                 `json:"avatar_ref,omitempty"`
	IsOnline           bool                   `json:"is_online"`
	IsTyping           bool                   `json:"is_typing"`
	UnreadCount        int                    `json:"unread_count"`
	LastMessagePreview string                 `json:"last_message_preview,omitempty"`
	LastMessageAt      *timestamppb.Timestamp `json:"last_message_at,omitempty"`
	Active             bool                   `json:"active"`
}

type ContactList struct {
	Contacts []*Contact `json:"contacts"`
}

type ContactRef struct {
	ContactID string `json:"contact_id"`
}

type ReplyRef struct {
	ID       string `json:"id"`
	SenderID string `json:"sender_id"`
	Preview  string `json:"preview"`
}

type Message struct {
	ID             string                 `json:"id"`
	TempID         string                 `json:"temp_id,omitempty"`
	ContactID      string                 `json:"contact_id"`
	SenderID       string                 `json:"sender_id"`
	FromMe         bool                   `json:"from_me"`
	Kind           string                 `json:"kind"`
	Text           string                 `json:"text,omitempty"`
	AttachmentName string                 `json:"attachment_name,omitempty"`
	AttachmentSize int64                  `json:"attachment_size,omitempty"`
	MimeType       string                 `json:"mime_type,omitempty"`
	URL            string                 `json:"url,omitempty"`
	Status         string                 `json:"status"`
	Timestamp      *timestamppb.Timestamp `json:"timestamp,omitempty"`
	ReplyTo        *ReplyRef              `json:"reply_to,omitempty"`
}

// ListMessagesRequest reads the live timeline, or the archive when
// Archived is set (paged by BeforeMs).
type ListMessagesRequest struct {
	ContactID string `json:"contact_id,omitempty"`
	Archived  bool   `json:"archived,omitempty"`
	BeforeMs  int64  `json:"before_ms,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type MessageList struct {
	Messages []*Message `json:"messages"`
}

type SendTextRequest struct {
	Text string `json:"text"`
}

type SendResult struct {
	TempID string `json:"temp_id"`
}

// StageAttachmentRequest stages a file by path on the daemon host, or
// inline bytes under Name.
type StageAttachmentRequest struct {
	Path string `json:"path,omitempty"`
	Name string `json:"name,omitempty"`
	Data []byte `json:"data,omitempty"`
}

type UpdateDraftRequest struct {
	Text string `json:"text"`
}

type StagedAttachment struct {
	Kind     string `json:"kind"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type Draft struct {
	Text     string            `json:"text"`
	Staged   *StagedAttachment `json:"staged,omitempty"`
	IsTyping bool              `json:"is_typing"`
}

// MessageRef names a message; an empty id on SetReplyTarget clears it.
type MessageRef struct {
	MessageID string `json:"message_id"`
}

type Reply struct {
	Reply *ReplyRef `json:"reply,omitempty"`
}

type SearchRequest struct {
	Query     string `json:"query"`
	ContactID string `json:"contact_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type SearchResult struct {
	Message *Message `json:"message"`
	Snippet string   `json:"snippet"`
}

type SearchResults struct {
	Results []*SearchResult `json:"results"`
}

// WatchRequest filters events by kind prefix; empty means all.
type WatchRequest struct {
	Namespace string `json:"namespace,omitempty"`
}

type Event struct {
	ID         string                 `json:"id"`
	Profile    string                 `json:"profile"`
	Kind       string                 `json:"kind"`
	OccurredAt *timestamppb.Timestamp `json:"occurred_at"`
	Payload    json.RawMessage        `json:"payload,omitempty"`
}
