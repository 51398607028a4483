package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/metrics"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
)

// Period is the window a digest covers.
type Period string

const (
	PeriodDaily  Period = "Daily"
	PeriodWeekly Period = "Weekly"
)

// ParsePeriod accepts "daily" or "weekly" in any case.
func ParsePeriod(s string) (Period, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "daily":
		return PeriodDaily, true
	case "weekly":
		return PeriodWeekly, true
	}
	return "", false
}

func (p Period) window() time.Duration {
	if p == PeriodWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

type DigestSection struct {
	Emoji   string `json:"emoji"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Digest struct {
	Period      Period
	Sections    []DigestSection
	GeneratedAt time.Time
}

// quietSection is returned when the window holds no messages.
var quietSection = DigestSection{
	Emoji:   "📭",
	Title:   "All Quiet",
	Content: "- No significant activity to report",
}

// Digest summarizes activity in the recent visible chats over the period.
func (o *Orchestrator) Digest(ctx context.Context, period Period) (Digest, error) {
	const op = "ai.digest"

	now := o.now()
	d := Digest{Period: period, GeneratedAt: now}

	chats := recentVisible(o.chats.Visible(), o.cfg.PriorityChats)
	var msgs []tg.Message
	if len(chats) > 0 {
		var err error
		msgs, err = o.source.RecentMessagesAcross(ctx, chatIDs(chats), o.cfg.PriorityMessages)
		if err != nil {
			return Digest{}, err
		}
	}
	cutoff := now.Add(-period.window())
	inWindow := msgs[:0:0]
	for _, m := range msgs {
		if !m.Date.Before(cutoff) {
			inWindow = append(inWindow, m)
		}
	}
	snips := TruncateToBudget(Snippets(inWindow, now, SnippetOptions{}), o.cfg.SnippetBudget)
	if len(snips) == 0 {
		d.Sections = []DigestSection{quietSection}
		return d, nil
	}

	out, err := o.complete(ctx, op, ai.Request{
		System: digestSystemPrompt(period),
		User:   digestUserPrompt(snips),
	})
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("digest", "failed").Inc()
		return Digest{}, err
	}
	sections, err := ai.Decode[[]DigestSection](op, out)
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("digest", "unparsable").Inc()
		return Digest{}, err
	}
	if len(sections) == 0 {
		sections = []DigestSection{quietSection}
	}
	metrics.EnrichOutcomes.WithLabelValues("digest", "ok").Inc()
	d.Sections = sections
	return d, nil
}

const noRecentActivity = "No recent activity"

// SummarizeChat writes a one or two line summary of a chat's recent
// history.
func (o *Orchestrator) SummarizeChat(ctx context.Context, chatID int64, title string) (string, error) {
	msgs, err := o.source.ChatHistory(ctx, chatID, o.cfg.HistoryLimit)
	if err != nil {
		return "", err
	}
	snips := TruncateToBudget(Snippets(msgs, o.now(), SnippetOptions{ChatName: title}), o.cfg.SnippetBudget)
	if len(snips) == 0 {
		return noRecentActivity, nil
	}

	out, err := o.complete(ctx, "ai.summary", ai.Request{
		System: summarySystemPrompt,
		User:   summaryUserPrompt(snips),
		Fast:   true,
	})
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("summary", "failed").Inc()
		return "", err
	}
	metrics.EnrichOutcomes.WithLabelValues("summary", "ok").Inc()
	return strings.TrimSpace(out), nil
}

type DMCategory string

const (
	DMNeedsReply DMCategory = "Needs Reply"
	DMFYI        DMCategory = "FYI"
	DMResolved   DMCategory = "Resolved"
	DMBusiness   DMCategory = "Business"
)

func parseDMCategory(s string) DMCategory {
	for _, c := range []DMCategory{DMNeedsReply, DMFYI, DMResolved, DMBusiness} {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c
		}
	}
	return DMFYI
}

// CategorizedMessage is a direct message with its assigned bucket.
type CategorizedMessage struct {
	Message  tg.Message
	Category DMCategory
	Reason   string
}

type categoryDTO struct {
	Index    int    `json:"index"`
	Category string `json:"category"`
	Reason   string `json:"reason"`
}

// CategorizeDirect buckets the last message of each unread direct chat.
// Indexes the model invents are ignored and messages it skips are absent.
func (o *Orchestrator) CategorizeDirect(ctx context.Context) ([]CategorizedMessage, error) {
	const op = "ai.categorize"

	var msgs []tg.Message
	for _, c := range o.chats.Direct() {
		if c.UnreadCount == 0 || c.LastMessage == nil || strings.TrimSpace(c.LastMessage.Text) == "" {
			continue
		}
		m := *c.LastMessage
		if m.ChatTitle == "" {
			m.ChatTitle = c.Title
		}
		msgs = append(msgs, m)
		if n := o.cfg.PriorityChats; n > 0 && len(msgs) == n {
			break
		}
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	snips := Snippets(msgs, o.now(), SnippetOptions{})
	out, err := o.complete(ctx, op, ai.Request{
		System: categorizeSystemPrompt,
		User:   categorizeUserPrompt(snips),
	})
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("categorize", "failed").Inc()
		return nil, err
	}
	dtos, err := ai.Decode[[]categoryDTO](op, out)
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("categorize", "unparsable").Inc()
		return nil, err
	}

	seen := make(map[int]bool, len(dtos))
	result := make([]CategorizedMessage, 0, len(dtos))
	for _, d := range dtos {
		if d.Index < 0 || d.Index >= len(msgs) || seen[d.Index] {
			o.logger.Debug("dropping categorization", zap.Int("index", d.Index))
			continue
		}
		seen[d.Index] = true
		result = append(result, CategorizedMessage{
			Message:  msgs[d.Index],
			Category: parseDMCategory(d.Category),
			Reason:   d.Reason,
		})
	}
	metrics.EnrichOutcomes.WithLabelValues("categorize", "ok").Inc()
	return result, nil
}
