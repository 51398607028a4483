package store

import (
	"strings"

	"github.com/matheus3301/tgtriage/internal/tg"
)

// SearchMessages performs a full-text search on message text, newest
// first. chatID 0 searches every chat.
func (db *DB) SearchMessages(query string, chatID int64, limit int) ([]SearchResult, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT ` + messageColumns + `,
		       snippet(messages_fts, '<<', '>>', '...', -1, 16)
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.docid
		WHERE messages_fts MATCH ?`
	args := []any{match}
	if chatID != 0 {
		q += " AND m.chat_id = ?"
		args = append(args, chatID)
	}
	q += " ORDER BY m.date DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		m, err := scanMessage(rows, &r.Snippet)
		if err != nil {
			return nil, err
		}
		r.Message = m
		results = append(results, r)
	}
	return results, rows.Err()
}

// Messages returns the messages of results in order.
func Messages(results []SearchResult) []tg.Message {
	out := make([]tg.Message, len(results))
	for i, r := range results {
		out[i] = r.Message
	}
	return out
}

// ftsQuery quotes each term so user input never reaches the MATCH grammar.
// Terms are ANDed.
func ftsQuery(query string) string {
	var terms []string
	for _, f := range strings.Fields(query) {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}
