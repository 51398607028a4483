// Package enrich runs the AI triage pipelines over the chat view: priority
// ranking, follow-up pipeline, paged semantic search, digests, chat
// summaries and direct-message categorization.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/config"
	"github.com/matheus3301/tgtriage/internal/retry"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
)

// Source fetches messages from the platform. telegram.Service implements it.
type Source interface {
	ChatHistory(ctx context.Context, chatID int64, limit int) ([]tg.Message, error)
	RecentMessagesAcross(ctx context.Context, chatIDs []int64, perChat int) ([]tg.Message, error)
}

// ChatView is the read side of the chat state.
type ChatView interface {
	Visible() []tg.Chat
	Direct() []tg.Chat
}

// Rules holds the follow-up pipeline thresholds.
type Rules struct {
	FollowUpAfter   time.Duration
	StaleAfter      time.Duration
	MaxAge          time.Duration
	MaxGroupMembers int
	MaxGroupUnread  int
}

// Config sizes the pipelines.
type Config struct {
	PriorityChats    int
	PriorityMessages int
	SnippetBudget    int
	HistoryLimit     int

	Rules            Rules
	MaxAISuggestions int
	PipelineMessages int

	SemanticBatchSize   int
	SemanticConcurrency int
	SemanticMessages    int
}

// DefaultConfig returns the built-in sizes.
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// ConfigFrom derives pipeline sizes from the daemon configuration.
func ConfigFrom(c *config.Config) Config {
	return Config{
		PriorityChats:    c.Fetch.ActionItemChatCount,
		PriorityMessages: c.Fetch.ActionItemPerChat,
		SnippetBudget:    c.Fetch.SnippetBudgetChars,
		HistoryLimit:     c.Fetch.ChatHistoryLimit,
		Rules: Rules{
			FollowUpAfter:   time.Duration(c.FollowUp.FollowUpHours) * time.Hour,
			StaleAfter:      time.Duration(c.FollowUp.StaleHours) * time.Hour,
			MaxAge:          time.Duration(c.FollowUp.MaxAgeDays) * 24 * time.Hour,
			MaxGroupMembers: c.FollowUp.MaxGroupMembers,
			MaxGroupUnread:  c.FollowUp.MaxGroupUnread,
		},
		MaxAISuggestions:    c.FollowUp.MaxAISuggestions,
		PipelineMessages:    c.FollowUp.MessagesPerChat,
		SemanticBatchSize:   c.Semantic.BatchSize,
		SemanticConcurrency: c.Semantic.ConcurrentBatches,
		SemanticMessages:    c.Semantic.MessagesPerChat,
	}
}

// Orchestrator owns the pipelines and their cancellation scopes.
type Orchestrator struct {
	source   Source
	chats    ChatView
	provider ai.Provider
	policy   retry.Policy
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	pipelines Scopes
	semantic  semanticSessions
}

// Options configures an Orchestrator. Source, Chats and Provider are required.
type Options struct {
	Source   Source
	Chats    ChatView
	Provider ai.Provider
	Retry    retry.Policy
	Config   Config
	Logger   *zap.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	policy := opts.Retry
	if policy.Logger == nil {
		policy.Logger = logger
	}
	provider := opts.Provider
	if provider == nil {
		provider = ai.None{}
	}
	return &Orchestrator{
		source:   opts.Source,
		chats:    opts.Chats,
		provider: provider,
		policy:   policy,
		cfg:      opts.Config,
		logger:   logger.Named("enrich"),
		now:      now,
	}
}

// Provider returns the AI provider in use.
func (o *Orchestrator) Provider() ai.Provider { return o.provider }

// complete runs one AI call under the retry policy.
func (o *Orchestrator) complete(ctx context.Context, op string, req ai.Request) (string, error) {
	return retry.Do(ctx, o.policy, op, func(ctx context.Context) (string, error) {
		return o.provider.Complete(ctx, req)
	})
}

func recentVisible(chats []tg.Chat, n int) []tg.Chat {
	if n > 0 && len(chats) > n {
		chats = chats[:n]
	}
	return chats
}

func chatIDs(chats []tg.Chat) []int64 {
	ids := make([]int64, len(chats))
	for i, c := range chats {
		ids[i] = c.ID
	}
	return ids
}

func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
