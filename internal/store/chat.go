package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/matheus3301/tgtriage/internal/tg"
)

// UpsertChat inserts or updates a chat's static attributes. Live fields
// like unread count and order are owned by the state store, not the archive.
func (db *DB) UpsertChat(c tg.Chat) error {
	_, err := db.Exec(`
		INSERT INTO chats (id, title, type, is_channel, member_count, photo_file_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chats.title END,
			type = excluded.type,
			is_channel = excluded.is_channel,
			member_count = CASE WHEN excluded.member_count > 0 THEN excluded.member_count ELSE chats.member_count END,
			photo_file_id = CASE WHEN excluded.photo_file_id != '' THEN excluded.photo_file_id ELSE chats.photo_file_id END,
			updated_at = excluded.updated_at`,
		c.ID, c.Title, string(c.Type), c.IsChannel, c.MemberCount, c.PhotoFileID, time.Now().UnixMilli())
	return err
}

// ListChats returns archived chats, most recently active first.
func (db *DB) ListChats(limit int) ([]ChatRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT c.id, c.title, c.type, c.is_channel, c.member_count, c.photo_file_id,
			COALESCE((SELECT MAX(m.date) FROM messages m WHERE m.chat_id = c.id), 0) AS last_at
		FROM chats c
		ORDER BY last_at DESC, c.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ChatRecord
	for rows.Next() {
		var (
			r   ChatRecord
			typ string
		)
		if err := rows.Scan(&r.Chat.ID, &r.Chat.Title, &typ, &r.Chat.IsChannel,
			&r.Chat.MemberCount, &r.Chat.PhotoFileID, &r.LastMessageAt); err != nil {
			return nil, err
		}
		r.Chat.Type = tg.ChatType(typ)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetChat returns one archived chat, or nil when unknown.
func (db *DB) GetChat(id int64) (*tg.Chat, error) {
	var (
		c   tg.Chat
		typ string
	)
	err := db.QueryRow(`
		SELECT id, title, type, is_channel, member_count, photo_file_id
		FROM chats WHERE id = ?`, id).
		Scan(&c.ID, &c.Title, &typ, &c.IsChannel, &c.MemberCount, &c.PhotoFileID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Type = tg.ChatType(typ)
	return &c, nil
}

// UpsertUser inserts or replaces a user record.
func (db *DB) UpsertUser(u tg.User) error {
	_, err := db.Exec(`
		INSERT INTO users (id, first_name, last_name, username, phone, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username,
			phone = excluded.phone,
			updated_at = excluded.updated_at`,
		u.ID, u.FirstName, u.LastName, u.Username, u.Phone, time.Now().UnixMilli())
	return err
}

// GetUser returns one archived user, or nil when unknown.
func (db *DB) GetUser(id int64) (*tg.User, error) {
	var u tg.User
	err := db.QueryRow(`
		SELECT id, first_name, last_name, username, phone
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
