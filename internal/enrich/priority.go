package enrich

import (
	"context"
	"slices"
	"strings"

	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/metrics"
	"go.uber.org/zap"
)

type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

func (u Urgency) rank() int {
	switch u {
	case UrgencyHigh:
		return 0
	case UrgencyMedium:
		return 1
	default:
		return 2
	}
}

func parseUrgency(s string) Urgency {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case UrgencyHigh, UrgencyMedium, UrgencyLow:
		return u
	default:
		return UrgencyMedium
	}
}

// ActionItem is a conversation that needs the user's attention.
type ActionItem struct {
	ChatName        string  `json:"chatName"`
	SenderName      string  `json:"senderName"`
	Summary         string  `json:"summary"`
	SuggestedAction string  `json:"suggestedAction"`
	Urgency         Urgency `json:"urgency"`
}

// Priority ranks what needs attention across the most recent visible chats.
// Items come back high, medium, then low, keeping the model's order within
// each urgency.
func (o *Orchestrator) Priority(ctx context.Context) ([]ActionItem, error) {
	const op = "ai.priority"

	chats := recentVisible(o.chats.Visible(), o.cfg.PriorityChats)
	if len(chats) == 0 {
		return nil, nil
	}
	msgs, err := o.source.RecentMessagesAcross(ctx, chatIDs(chats), o.cfg.PriorityMessages)
	if err != nil {
		return nil, err
	}
	snips := TruncateToBudget(Snippets(msgs, o.now(), SnippetOptions{}), o.cfg.SnippetBudget)
	if len(snips) == 0 {
		return nil, nil
	}

	out, err := o.complete(ctx, op, ai.Request{
		System: prioritySystemPrompt,
		User:   priorityUserPrompt(snips),
	})
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("priority", "failed").Inc()
		return nil, err
	}
	items, err := ai.Decode[[]ActionItem](op, out)
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("priority", "unparsable").Inc()
		o.logger.Warn("priority response not parsable", zap.Error(err))
		return nil, err
	}

	for i := range items {
		items[i].Urgency = parseUrgency(string(items[i].Urgency))
	}
	slices.SortStableFunc(items, func(a, b ActionItem) int {
		return a.Urgency.rank() - b.Urgency.rank()
	})
	metrics.EnrichOutcomes.WithLabelValues("priority", "ok").Inc()
	o.logger.Debug("priority ranked",
		zap.Int("chats", len(chats)),
		zap.Int("snippets", len(snips)),
		zap.Int("items", len(items)),
	)
	return items, nil
}
