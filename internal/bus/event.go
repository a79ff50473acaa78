package bus

import "time"

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Event kinds. The part before the first dot is the namespace used by
// Subscribe.
const (
	KindConnStatus  = "conn.status_changed"
	KindServerError = "conn.server_error"

	KindContactUpdated  = "chat.contact_updated"
	KindActiveChanged   = "chat.active_changed"
	KindMessageAppended = "chat.message_appended"
	KindMessageUpdated  = "chat.message_updated"
	KindMessageRemoved  = "chat.message_removed"
	KindPresence        = "chat.presence_changed"
	KindTyping          = "chat.typing_changed"
	KindScrollHint      = "chat.scroll_hint"
	KindReplyChanged    = "chat.reply_changed"

	KindDraftChanged = "composer.draft_changed"
)
