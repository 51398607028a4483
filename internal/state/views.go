package state

import "github.com/matheus3301/tgtriage/internal/tg"

// Chats returns every known chat in display order, archived ones included.
func (s *Store) Chats() []tg.Chat {
	return s.filter(func(tg.Chat) bool { return true })
}

// Visible returns chats in the main list.
func (s *Store) Visible() []tg.Chat {
	return s.filter(func(c tg.Chat) bool { return c.IsInMainList })
}

// Groups returns visible basic groups and supergroups.
func (s *Store) Groups() []tg.Chat {
	return s.filter(func(c tg.Chat) bool { return c.IsInMainList && c.IsGroup() })
}

// Direct returns visible private chats.
func (s *Store) Direct() []tg.Chat {
	return s.filter(func(c tg.Chat) bool { return c.IsInMainList && c.IsDirect() })
}

func (s *Store) filter(keep func(tg.Chat) bool) []tg.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tg.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Chat looks up a chat by id.
func (s *Store) Chat(id int64) (tg.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.chatCache.get(id); ok {
		return c, true
	}
	if i, ok := s.index[id]; ok {
		return s.chats[i], true
	}
	return tg.Chat{}, false
}

// User looks up a cached user.
func (s *Store) User(id int64) (tg.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users.get(id)
}

// Denormalize fills ChatTitle and SenderName on msgs from the current view.
func (s *Store) Denormalize(msgs []tg.Message) []tg.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tg.Message, len(msgs))
	for i := range msgs {
		out[i] = *s.denormalize(&msgs[i], "")
	}
	return out
}

// Stats is a point-in-time size report.
type Stats struct {
	Chats       int
	Visible     int
	CachedChats int
	CachedUsers int
	Version     uint64
}

// Stats reports collection and cache sizes.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Chats:       len(s.chats),
		CachedChats: s.chatCache.len(),
		CachedUsers: s.users.len(),
		Version:     s.version,
	}
	for _, c := range s.chats {
		if c.IsInMainList {
			st.Visible++
		}
	}
	return st
}
