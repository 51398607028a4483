package state

import (
	"slices"
	"sync"

	"github.com/matheus3301/tgtriage/internal/metrics"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
)

// Limits bounds the lookup caches.
type Limits struct {
	MaxUsers int
	MaxChats int
}

// DefaultLimits returns 500 users and 200 chats.
func DefaultLimits() Limits {
	return Limits{MaxUsers: 500, MaxChats: 200}
}

// Store is the materialized view of chats and users built from the update
// stream. Apply must be called from a single goroutine; every other method
// is safe for concurrent readers and returns copies.
type Store struct {
	mu        sync.RWMutex
	chats     []tg.Chat
	index     map[int64]int
	chatCache *boundedCache[int64, tg.Chat]
	users     *boundedCache[int64, tg.User]
	version   uint64
	logger    *zap.Logger
}

// New creates an empty store.
func New(limits Limits, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		index:     make(map[int64]int),
		chatCache: newBoundedCache[int64, tg.Chat]("chats", limits.MaxChats),
		users:     newBoundedCache[int64, tg.User]("users", limits.MaxUsers),
		logger:    logger,
	}
}

// Apply merges one update into the view and reports whether the chat
// collection changed.
func (s *Store) Apply(u tg.Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed bool
	switch u := u.(type) {
	case tg.NewChat:
		changed = s.applyNewChat(u)
	case tg.ChatLastMessage:
		changed = s.applyLastMessage(u)
	case tg.ChatPosition:
		changed = s.applyPosition(u)
	case tg.ChatRemovedFromList:
		changed = s.applyRemoved(u)
	case tg.ChatReadInbox:
		changed = s.mutate(u.ChatID, func(c *tg.Chat) {
			c.UnreadCount = u.UnreadCount
		})
	case tg.MessageEdited:
		changed = s.applyEdit(u)
	case tg.UserUpdated:
		if n := s.users.put(u.User.ID, u.User); n > 0 {
			s.logger.Debug("evicted users", zap.Int("count", n))
		}
		s.version++
		metrics.UpdatesApplied.WithLabelValues(u.UpdateKind()).Inc()
		return false
	default:
		return false
	}

	if changed {
		s.resort()
		s.version++
		metrics.UpdatesApplied.WithLabelValues(u.UpdateKind()).Inc()
	}
	return changed
}

func (s *Store) applyNewChat(u tg.NewChat) bool {
	chat := u.Chat
	if pos, ok := tg.MainPosition(u.Positions); ok {
		chat.Order = pos.Order
		chat.IsInMainList = pos.Order > 0
	} else if len(u.Positions) == 0 {
		chat.IsInMainList = true
	} else {
		chat.Order = 0
		chat.IsInMainList = false
	}

	if i, ok := s.index[chat.ID]; ok {
		if chat.LastMessage == nil {
			chat.LastMessage = s.chats[i].LastMessage
		}
		if len(u.Positions) == 0 {
			chat.Order = s.chats[i].Order
			chat.IsInMainList = s.chats[i].IsInMainList
		}
		chat.LastMessage = s.denormalize(chat.LastMessage, chat.Title)
		s.chats[i] = chat
	} else {
		chat.LastMessage = s.denormalize(chat.LastMessage, chat.Title)
		s.index[chat.ID] = len(s.chats)
		s.chats = append(s.chats, chat)
	}

	if n := s.chatCache.put(chat.ID, chat); n > 0 {
		s.logger.Debug("evicted chats", zap.Int("count", n))
	}
	return true
}

func (s *Store) applyLastMessage(u tg.ChatLastMessage) bool {
	return s.mutate(u.ChatID, func(c *tg.Chat) {
		c.LastMessage = s.denormalize(u.LastMessage, c.Title)
		if len(u.Positions) == 0 {
			return
		}
		if pos, ok := tg.MainPosition(u.Positions); ok {
			c.Order = pos.Order
			c.IsInMainList = pos.Order > 0
		} else {
			c.Order = 0
			c.IsInMainList = false
		}
	})
}

// applyEdit only touches the chat when the edited message is its last one.
func (s *Store) applyEdit(u tg.MessageEdited) bool {
	i, ok := s.index[u.Message.ChatID]
	if !ok {
		return false
	}
	last := s.chats[i].LastMessage
	if last == nil || last.ID != u.Message.ID {
		return false
	}
	return s.mutate(u.Message.ChatID, func(c *tg.Chat) {
		edited := *c.LastMessage
		edited.Text = u.Message.Text
		edited.Media = u.Message.Media
		c.LastMessage = &edited
	})
}

func (s *Store) applyPosition(u tg.ChatPosition) bool {
	if u.Position.List != tg.ListMain {
		return false
	}
	return s.mutate(u.ChatID, func(c *tg.Chat) {
		c.Order = u.Position.Order
		c.IsInMainList = u.Position.Order > 0
	})
}

func (s *Store) applyRemoved(u tg.ChatRemovedFromList) bool {
	if u.List != tg.ListMain {
		return false
	}
	return s.mutate(u.ChatID, func(c *tg.Chat) {
		c.Order = 0
		c.IsInMainList = false
	})
}

// mutate edits a known chat in place and mirrors it into the chat cache.
func (s *Store) mutate(chatID int64, fn func(c *tg.Chat)) bool {
	i, ok := s.index[chatID]
	if !ok {
		return false
	}
	fn(&s.chats[i])
	updated := s.chats[i]
	s.chatCache.update(chatID, func(tg.Chat) tg.Chat { return updated })
	return true
}

// resort restores the display order: order desc, last activity desc, id desc.
func (s *Store) resort() {
	slices.SortStableFunc(s.chats, compareChats)
	for i, c := range s.chats {
		s.index[c.ID] = i
	}
}

func compareChats(a, b tg.Chat) int {
	if a.Order != b.Order {
		if a.Order > b.Order {
			return -1
		}
		return 1
	}
	at, bt := a.LastActivity(), b.LastActivity()
	if !at.Equal(bt) {
		if at.After(bt) {
			return -1
		}
		return 1
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// denormalize returns a copy of m with display names filled from the caches.
func (s *Store) denormalize(m *tg.Message, chatTitle string) *tg.Message {
	if m == nil {
		return nil
	}
	out := *m
	if chatTitle == "" {
		chatTitle = s.titleLocked(m.ChatID)
	}
	if chatTitle != "" {
		out.ChatTitle = chatTitle
	}
	if name := s.senderNameLocked(m.Sender); name != "" {
		out.SenderName = name
	}
	return &out
}

func (s *Store) titleLocked(chatID int64) string {
	if c, ok := s.chatCache.get(chatID); ok {
		return c.Title
	}
	// Cache miss: the collection never evicts.
	if i, ok := s.index[chatID]; ok {
		return s.chats[i].Title
	}
	return ""
}

func (s *Store) senderNameLocked(sender tg.Sender) string {
	switch sender.Kind {
	case tg.SenderUser:
		if u, ok := s.users.get(sender.ID); ok {
			return u.DisplayName()
		}
	case tg.SenderChat:
		return s.titleLocked(sender.ID)
	}
	return ""
}
