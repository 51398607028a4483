package tg

import "time"

// ChatType is the platform chat kind.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatBasicGroup ChatType = "basic_group"
	ChatSupergroup ChatType = "supergroup"
	ChatSecret     ChatType = "secret"
)

// Chat is the state store's view of one conversation.
type Chat struct {
	ID           int64
	Title        string
	Type         ChatType
	IsChannel    bool // only meaningful for supergroups
	UnreadCount  int
	LastMessage  *Message
	MemberCount  int // 0 when unknown
	Order        int64
	IsInMainList bool
	PhotoFileID  string
}

// IsGroup reports whether the chat is a basic group or a supergroup.
func (c Chat) IsGroup() bool {
	return c.Type == ChatBasicGroup || c.Type == ChatSupergroup
}

// IsDirect reports whether the chat is a one-to-one conversation.
func (c Chat) IsDirect() bool {
	return c.Type == ChatPrivate
}

// IsChannelChat reports whether the chat is a broadcast channel.
func (c Chat) IsChannelChat() bool {
	return c.Type == ChatSupergroup && c.IsChannel
}

// LastActivity returns the timestamp of the last message, or zero.
func (c Chat) LastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.Date
}

// SenderKind distinguishes user senders from chat senders (channels, anonymous admins).
type SenderKind string

const (
	SenderUser SenderKind = "user"
	SenderChat SenderKind = "chat"
)

// Sender identifies who posted a message.
type Sender struct {
	Kind SenderKind
	ID   int64
}

// MediaType labels non-text content.
type MediaType string

const (
	MediaNone     MediaType = ""
	MediaPhoto    MediaType = "Photo"
	MediaVideo    MediaType = "Video"
	MediaDocument MediaType = "Document"
	MediaAudio    MediaType = "Audio"
	MediaVoice    MediaType = "Voice"
	MediaSticker  MediaType = "Sticker"
	MediaGIF      MediaType = "GIF"
	MediaOther    MediaType = "Media"
)

// Message is one chat message. ChatTitle and SenderName are display caches
// filled by the state store, not platform data.
type Message struct {
	ID         int64
	ChatID     int64
	Sender     Sender
	Date       time.Time
	Text       string
	Media      MediaType
	Outgoing   bool
	ChatTitle  string
	SenderName string
}

// Preview returns text, falling back to a bracketed media label.
func (m Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	if m.Media != MediaNone {
		return "[" + string(m.Media) + "]"
	}
	return ""
}

// User is a cached platform user.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
	Phone     string
}

// DisplayName joins first and last name, falling back to the username.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}

// ChatList names the list a position refers to.
type ChatList string

const (
	ListMain    ChatList = "main"
	ListArchive ChatList = "archive"
	ListFolder  ChatList = "folder"
)

// Position is a chat's order within one list.
type Position struct {
	List  ChatList
	Order int64
}

// MainPosition returns the main-list position in ps, if any.
func MainPosition(ps []Position) (Position, bool) {
	for _, p := range ps {
		if p.List == ListMain {
			return p, true
		}
	}
	return Position{}, false
}

// AuthState mirrors the platform authorization states.
type AuthState string

const (
	AuthUninitialized    AuthState = "UNINITIALIZED"
	AuthWaitParameters   AuthState = "WAIT_PARAMETERS"
	AuthWaitPhoneNumber  AuthState = "WAIT_PHONE_NUMBER"
	AuthWaitCode         AuthState = "WAIT_CODE"
	AuthWaitPassword     AuthState = "WAIT_PASSWORD"
	AuthWaitRegistration AuthState = "WAIT_REGISTRATION"
	AuthReady            AuthState = "READY"
	AuthLoggingOut       AuthState = "LOGGING_OUT"
	AuthClosing          AuthState = "CLOSING"
	AuthClosed           AuthState = "CLOSED"
)
