package tg

import "context"

// Client is the messaging-platform collaborator. Request methods are raw
// calls; rate limiting and retries are applied by the caller.
type Client interface {
	// Updates returns the ordered update stream. It is closed when the
	// client shuts down.
	Updates() <-chan Update

	// LoadChats asks the platform to push up to limit chats of the main list
	// as NewChat updates.
	LoadChats(ctx context.Context, limit int) error
	ChatHistory(ctx context.Context, chatID int64, limit int) ([]Message, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]Message, error)
	SearchChatMessages(ctx context.Context, chatID int64, query string, limit int) ([]Message, error)
	// DownloadFile fetches a file by platform id and returns a local path.
	DownloadFile(ctx context.Context, fileID string) (string, error)
	User(ctx context.Context, userID int64) (User, error)
	Me(ctx context.Context) (User, error)
}
