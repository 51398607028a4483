package store

import "github.com/matheus3301/tgtriage/internal/tg"

// SearchResult is an archived message matching a keyword query.
type SearchResult struct {
	Message tg.Message
	// Snippet is the matching fragment with hits wrapped in << >>.
	Snippet string
}

// ChatRecord is an archived chat. LastMessageAt is unix seconds of the
// newest archived message, 0 when none.
type ChatRecord struct {
	Chat          tg.Chat
	LastMessageAt int64
}
