package botapi

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/tgtriage/internal/tg"
)

func toChat(c *tgbotapi.Chat) tg.Chat {
	chat := tg.Chat{ID: c.ID, Title: c.Title}
	switch c.Type {
	case "private":
		chat.Type = tg.ChatPrivate
		chat.Title = joinName(c.FirstName, c.LastName, c.UserName)
	case "group":
		chat.Type = tg.ChatBasicGroup
	case "supergroup":
		chat.Type = tg.ChatSupergroup
	case "channel":
		chat.Type = tg.ChatSupergroup
		chat.IsChannel = true
	default:
		chat.Type = tg.ChatPrivate
	}
	return chat
}

func toUser(u *tgbotapi.User) tg.User {
	return tg.User{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}

// toMessage maps a Bot API message. Messages written by owner are outgoing.
func toMessage(m *tgbotapi.Message, owner int64) tg.Message {
	msg := tg.Message{
		ID:     int64(m.MessageID),
		ChatID: m.Chat.ID,
		Date:   time.Unix(int64(m.Date), 0).UTC(),
		Text:   m.Text,
		Media:  mediaOf(m),
	}
	if msg.Text == "" {
		msg.Text = m.Caption
	}
	switch {
	case m.SenderChat != nil:
		msg.Sender = tg.Sender{Kind: tg.SenderChat, ID: m.SenderChat.ID}
	case m.From != nil:
		msg.Sender = tg.Sender{Kind: tg.SenderUser, ID: m.From.ID}
		msg.Outgoing = owner != 0 && m.From.ID == owner
	default:
		// Channel posts carry neither; the channel is the sender.
		msg.Sender = tg.Sender{Kind: tg.SenderChat, ID: m.Chat.ID}
	}
	return msg
}

func mediaOf(m *tgbotapi.Message) tg.MediaType {
	switch {
	case len(m.Photo) > 0:
		return tg.MediaPhoto
	case m.Animation != nil:
		return tg.MediaGIF
	case m.Video != nil:
		return tg.MediaVideo
	case m.Voice != nil:
		return tg.MediaVoice
	case m.Audio != nil:
		return tg.MediaAudio
	case m.Sticker != nil:
		return tg.MediaSticker
	case m.Document != nil:
		return tg.MediaDocument
	case m.VideoNote != nil, m.Location != nil, m.Contact != nil, m.Poll != nil:
		return tg.MediaOther
	}
	return tg.MediaNone
}

// mainAt is a main-list position ordered by timestamp, so the most
// recently active chat sorts first.
func mainAt(t time.Time) []tg.Position {
	return []tg.Position{{List: tg.ListMain, Order: t.Unix()}}
}

func joinName(first, last, username string) string {
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		name = username
	}
	return name
}
