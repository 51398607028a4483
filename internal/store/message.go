package store

import (
	"database/sql"
	"time"

	"github.com/matheus3301/tgtriage/internal/tg"
)

const messageColumns = `m.msg_id, m.chat_id, m.sender_kind, m.sender_id, m.text, m.media_type, m.outgoing, m.date`

// UpsertMessage inserts or updates a message (idempotent on chat_id + msg_id).
// Edits replace the text and media label.
func (db *DB) UpsertMessage(m tg.Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (chat_id, msg_id, sender_kind, sender_id, text, media_type, outgoing, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			text = excluded.text,
			media_type = excluded.media_type`,
		m.ChatID, m.ID, string(m.Sender.Kind), m.Sender.ID, m.Text, string(m.Media), m.Outgoing, m.Date.Unix())
	return err
}

// ListMessages returns messages of a chat older than before, newest first.
// A zero before means from the latest message.
func (db *DB) ListMessages(chatID int64, before time.Time, limit int) ([]tg.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	beforeTs := before.Unix()
	if before.IsZero() {
		beforeTs = time.Now().Unix() + 1
	}
	rows, err := db.Query(`
		SELECT `+messageColumns+`
		FROM messages m
		WHERE m.chat_id = ? AND m.date < ?
		ORDER BY m.date DESC, m.msg_id DESC
		LIMIT ?`, chatID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanMessages(rows)
}

// CountMessages returns the number of archived messages.
func (db *DB) CountMessages() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner, extra ...any) (tg.Message, error) {
	var (
		m           tg.Message
		kind, media string
		date        int64
	)
	dest := append([]any{&m.ID, &m.ChatID, &kind, &m.Sender.ID, &m.Text, &media, &m.Outgoing, &date}, extra...)
	if err := s.Scan(dest...); err != nil {
		return tg.Message{}, err
	}
	m.Sender.Kind = tg.SenderKind(kind)
	m.Media = tg.MediaType(media)
	m.Date = time.Unix(date, 0).UTC()
	return m, nil
}

func scanMessages(rows *sql.Rows) ([]tg.Message, error) {
	var msgs []tg.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
