package tg

// Update is one event from the platform's ordered update stream.
type Update interface {
	UpdateKind() string
}

// NewChat carries a full chat snapshot seen for the first time (or refreshed).
type NewChat struct {
	Chat      Chat
	Positions []Position
}

// ChatLastMessage replaces a chat's last message. Positions may be empty,
// in which case the current order is kept.
type ChatLastMessage struct {
	ChatID      int64
	LastMessage *Message
	Positions   []Position
}

// ChatPosition moves a chat within one list.
type ChatPosition struct {
	ChatID   int64
	Position Position
}

// ChatRemovedFromList drops a chat from one list.
type ChatRemovedFromList struct {
	ChatID int64
	List   ChatList
}

// ChatReadInbox reports a new unread counter.
type ChatReadInbox struct {
	ChatID      int64
	UnreadCount int
}

// UserUpdated carries a full user snapshot.
type UserUpdated struct {
	User User
}

// MessageEdited carries the new content of an existing message.
type MessageEdited struct {
	Message Message
}

// AuthorizationState reports an authorization state transition.
type AuthorizationState struct {
	State AuthState
}

func (NewChat) UpdateKind() string             { return "new_chat" }
func (ChatLastMessage) UpdateKind() string     { return "chat_last_message" }
func (ChatPosition) UpdateKind() string        { return "chat_position" }
func (ChatRemovedFromList) UpdateKind() string { return "chat_removed_from_list" }
func (ChatReadInbox) UpdateKind() string       { return "chat_read_inbox" }
func (UserUpdated) UpdateKind() string         { return "user_updated" }
func (MessageEdited) UpdateKind() string       { return "message_edited" }
func (AuthorizationState) UpdateKind() string  { return "authorization_state" }
