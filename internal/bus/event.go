package bus

import "time"

// Event kinds published by the daemon.
const (
	KindStatusChanged = "session.status_changed"
	KindChatsChanged  = "chats.changed"
	KindUsersChanged  = "users.changed"
	KindMessageStored = "message.archived"
	KindPipelineItem  = "enrich.pipeline_item"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// ChatsChanged is the payload of KindChatsChanged.
type ChatsChanged struct {
	ChatID  int64
	Update  string // update kind that caused the change
	Version uint64
}

// MessageArchived is the payload of KindMessageStored.
type MessageArchived struct {
	ChatID    int64
	MessageID int64
}
