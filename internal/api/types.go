package api

import (
	"github.com/matheus3301/tgtriage/internal/enrich"
	"github.com/matheus3301/tgtriage/internal/tg"
)

type Empty struct{}

type StatusResponse struct {
	Session          string  `json:"session"`
	State            string  `json:"state"`
	NeedsUserAction  bool    `json:"needsUserAction"`
	SinceUnix        int64   `json:"sinceUnix"`
	UptimeMs         int64   `json:"uptimeMs"`
	Chats            int     `json:"chats"`
	VisibleChats     int     `json:"visibleChats"`
	CachedChats      int     `json:"cachedChats"`
	CachedUsers      int     `json:"cachedUsers"`
	ArchivedMessages int     `json:"archivedMessages"`
	StateVersion     uint64  `json:"stateVersion"`
	AIProvider       string  `json:"aiProvider"`
	AIConfigured     bool    `json:"aiConfigured"`
	RateTokens       float64 `json:"rateTokens"`
}

type TestConnectionResponse struct {
	Provider string `json:"provider"`
	OK       bool   `json:"ok"`
}

// Chat filters for ListChats.
const (
	FilterAll     = "all"
	FilterVisible = "visible"
	FilterGroups  = "groups"
	FilterDirect  = "direct"
)

type ListChatsRequest struct {
	Filter string `json:"filter,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ListChatsResponse struct {
	Chats []Chat `json:"chats"`
}

type Chat struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Type         string   `json:"type"`
	IsChannel    bool     `json:"isChannel,omitempty"`
	UnreadCount  int      `json:"unreadCount"`
	MemberCount  int      `json:"memberCount,omitempty"`
	IsInMainList bool     `json:"isInMainList"`
	LastMessage  *Message `json:"lastMessage,omitempty"`
}

type Message struct {
	ID         int64  `json:"id"`
	ChatID     int64  `json:"chatId"`
	ChatTitle  string `json:"chatTitle,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	DateUnix   int64  `json:"dateUnix"`
	Text       string `json:"text,omitempty"`
	Media      string `json:"media,omitempty"`
	Outgoing   bool   `json:"outgoing,omitempty"`
}

type SummarizeRequest struct {
	ChatID int64 `json:"chatId"`
}

type SummarizeResponse struct {
	ChatID  int64  `json:"chatId"`
	Summary string `json:"summary"`
}

type RouteRequest struct {
	Query string `json:"query"`
}

type RouteResponse struct {
	Intent string `json:"intent"`
	Query  string `json:"query"`
	ByAI   bool   `json:"byAi"`
}

type SearchRequest struct {
	Query  string `json:"query"`
	ChatID int64  `json:"chatId,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type SearchResponse struct {
	Messages []Message `json:"messages"`
}

type ActionItem struct {
	ChatName        string `json:"chatName"`
	SenderName      string `json:"senderName"`
	Summary         string `json:"summary"`
	SuggestedAction string `json:"suggestedAction"`
	Urgency         string `json:"urgency"`
}

type PriorityResponse struct {
	Items []ActionItem `json:"items"`
}

type SemanticStartRequest struct {
	Query string `json:"query"`
}

type SemanticNextRequest struct {
	SearchID string `json:"searchId"`
}

type SemanticResult struct {
	ChatID    int64    `json:"chatId,omitempty"`
	ChatTitle string   `json:"chatTitle"`
	Reason    string   `json:"reason"`
	Relevance string   `json:"relevance"`
	Excerpts  []string `json:"excerpts,omitempty"`
}

type SemanticPage struct {
	SearchID string           `json:"searchId"`
	Query    string           `json:"query"`
	Results  []SemanticResult `json:"results"`
	Scanned  int              `json:"scanned"`
	Total    int              `json:"total"`
	HasMore  bool             `json:"hasMore"`
}

type FollowUpItem struct {
	Chat            Chat    `json:"chat"`
	Category        string  `json:"category"`
	LastMessage     Message `json:"lastMessage"`
	AgeSeconds      int64   `json:"ageSeconds"`
	SuggestedAction string  `json:"suggestedAction,omitempty"`
}

type PipelineSnapshot struct {
	RunID   string         `json:"runId"`
	Items   []FollowUpItem `json:"items"`
	Pending int            `json:"pending"`
	Done    bool           `json:"done"`
}

type DigestRequest struct {
	Period string `json:"period,omitempty"`
}

type DigestSection struct {
	Emoji   string `json:"emoji"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type DigestResponse struct {
	Period          string          `json:"period"`
	Sections        []DigestSection `json:"sections"`
	GeneratedAtUnix int64           `json:"generatedAtUnix"`
}

type CategorizedMessage struct {
	Message  Message `json:"message"`
	Category string  `json:"category"`
	Reason   string  `json:"reason"`
}

type CategorizeResponse struct {
	Messages []CategorizedMessage `json:"messages"`
}

type WatchEventsRequest struct {
	// Prefix selects event kinds, like "chats." or "pipeline.".
	Prefix string `json:"prefix,omitempty"`
}

type Event struct {
	ID             string `json:"id"`
	Session        string `json:"session"`
	Kind           string `json:"kind"`
	OccurredAtUnix int64  `json:"occurredAtUnix"`
	ChatID         int64  `json:"chatId,omitempty"`
}

func chatOut(c tg.Chat) Chat {
	out := Chat{
		ID:           c.ID,
		Title:        c.Title,
		Type:         string(c.Type),
		IsChannel:    c.IsChannel,
		UnreadCount:  c.UnreadCount,
		MemberCount:  c.MemberCount,
		IsInMainList: c.IsInMainList,
	}
	if c.LastMessage != nil {
		m := messageOut(*c.LastMessage)
		out.LastMessage = &m
	}
	return out
}

func messageOut(m tg.Message) Message {
	return Message{
		ID:         m.ID,
		ChatID:     m.ChatID,
		ChatTitle:  m.ChatTitle,
		SenderName: m.SenderName,
		DateUnix:   m.Date.Unix(),
		Text:       m.Text,
		Media:      string(m.Media),
		Outgoing:   m.Outgoing,
	}
}

func messagesOut(msgs []tg.Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = messageOut(m)
	}
	return out
}

func semanticPageOut(p enrich.SemanticPage) SemanticPage {
	out := SemanticPage{
		SearchID: p.SearchID,
		Query:    p.Query,
		Results:  make([]SemanticResult, len(p.Results)),
		Scanned:  p.Scanned,
		Total:    p.Total,
		HasMore:  p.HasMore,
	}
	for i, r := range p.Results {
		out.Results[i] = SemanticResult{
			ChatID:    r.ChatID,
			ChatTitle: r.ChatTitle,
			Reason:    r.Reason,
			Relevance: string(r.Relevance),
			Excerpts:  r.Excerpts,
		}
	}
	return out
}

func snapshotOut(s enrich.PipelineSnapshot) PipelineSnapshot {
	out := PipelineSnapshot{
		RunID:   s.RunID,
		Items:   make([]FollowUpItem, len(s.Items)),
		Pending: s.Pending,
		Done:    s.Done,
	}
	for i, it := range s.Items {
		out.Items[i] = FollowUpItem{
			Chat:            chatOut(it.Chat),
			Category:        string(it.Category),
			LastMessage:     messageOut(it.LastMessage),
			AgeSeconds:      int64(it.Age.Seconds()),
			SuggestedAction: it.SuggestedAction,
		}
	}
	return out
}
