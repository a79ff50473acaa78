package store

// Contact is an archived directory entry.
type Contact struct {
	ID                 string
	DisplayName        string
	AvatarRef          string
	UnreadCount        int
	LastMessagePreview string
	LastMessageAt      int64 // unix millis
}

// Message is an archived message. Attachment bytes are not kept; only the
// metadata and the remote URL survive a restart.
type Message struct {
	ID             string
	ContactID      string
	SenderID       string
	Kind           string
	Body           string
	AttachmentName string
	AttachmentSize int64
	MimeType       string
	URL            string
	ReplyID        string
	ReplySenderID  string
	ReplyPreview   string
	Status         string
	Timestamp      int64 // unix millis
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
