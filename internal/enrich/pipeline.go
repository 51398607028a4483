package enrich

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/metrics"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Category buckets a follow-up candidate.
type Category string

const (
	CategoryReply    Category = "reply"
	CategoryFollowUp Category = "follow_up"
	CategoryStale    Category = "stale"
)

func (c Category) rank() int {
	switch c {
	case CategoryReply:
		return 0
	case CategoryFollowUp:
		return 1
	default:
		return 2
	}
}

// FollowUpItem is one chat in the follow-up pipeline.
type FollowUpItem struct {
	Chat            tg.Chat
	Category        Category
	LastMessage     tg.Message
	Age             time.Duration
	SuggestedAction string
}

// PipelineSnapshot is the full pipeline state at one point of a run.
type PipelineSnapshot struct {
	RunID   string
	Items   []FollowUpItem
	Pending int
	Done    bool
}

// Classify decides whether chat belongs in the pipeline and in which
// bucket. Rules apply in order and the first match wins.
func Classify(chat tg.Chat, now time.Time, r Rules) (Category, bool) {
	last := chat.LastMessage
	if last == nil || chat.IsChannelChat() {
		return "", false
	}
	age := now.Sub(last.Date)
	if r.MaxAge > 0 && age > r.MaxAge {
		return "", false
	}
	if chat.IsGroup() {
		if r.MaxGroupMembers > 0 && chat.MemberCount > r.MaxGroupMembers {
			return "", false
		}
		if chat.UnreadCount > r.MaxGroupUnread {
			return "", false
		}
	}
	switch {
	case !last.Outgoing && chat.UnreadCount > 0:
		return CategoryReply, true
	case last.Outgoing && age > r.FollowUpAfter:
		return CategoryFollowUp, true
	case age > r.StaleAfter:
		return CategoryStale, true
	}
	return "", false
}

// Candidates classifies chats and returns the pipeline items in order.
func Candidates(chats []tg.Chat, now time.Time, r Rules) []FollowUpItem {
	var out []FollowUpItem
	for _, c := range chats {
		cat, ok := Classify(c, now, r)
		if !ok {
			continue
		}
		out = append(out, FollowUpItem{
			Chat:        c,
			Category:    cat,
			LastMessage: *c.LastMessage,
			Age:         now.Sub(c.LastMessage.Date),
		})
	}
	SortFollowUps(out)
	return out
}

// SortFollowUps orders by category, then by age with the freshest first.
func SortFollowUps(items []FollowUpItem) {
	slices.SortStableFunc(items, func(a, b FollowUpItem) int {
		if d := a.Category.rank() - b.Category.rank(); d != 0 {
			return d
		}
		switch {
		case a.Age < b.Age:
			return -1
		case a.Age > b.Age:
			return 1
		}
		return 0
	})
}

type followUpVerdict struct {
	Relevant        bool   `json:"relevant"`
	SuggestedAction string `json:"suggestedAction"`
}

// Pipeline classifies the visible chats and streams snapshots to publish:
// once with every candidate, then after each AI suggestion lands. Starting
// a new run cancels the previous one; a cancelled run publishes nothing
// more. Only the first MaxAISuggestions candidates are sent to the model.
//
// publish runs on a single delivery goroutine, one snapshot at a time and
// in order. It may block without holding up the run or a newer one.
func (o *Orchestrator) Pipeline(ctx context.Context, publish func(PipelineSnapshot)) error {
	scope := o.pipelines.Begin(ctx)
	defer scope.End()
	ctx = scope.Context()

	run := &pipelineRun{
		id:      uuid.NewString(),
		items:   Candidates(o.chats.Visible(), o.now(), o.cfg.Rules),
		scope:   scope,
		publish: publish,
		wake:    make(chan struct{}, 1),
	}
	stop := make(chan struct{})
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		run.deliver(stop)
	}()
	// Publishing must be over before the scope ends.
	drain := func() {
		close(stop)
		<-delivered
	}
	head := run.items
	if n := o.cfg.MaxAISuggestions; n >= 0 && len(head) > n {
		head = head[:n]
	}
	targets := slices.Clone(head)
	run.pending = len(targets)

	logger := o.logger.With(zap.String("run", run.id))
	logger.Info("pipeline started",
		zap.Int("candidates", len(run.items)),
		zap.Int("enriching", len(targets)),
	)
	run.emit(false)

	var g errgroup.Group
	g.SetLimit(max(len(targets), 1))
	for _, item := range targets {
		g.Go(func() error {
			verdict, err := o.suggest(ctx, item)
			switch {
			case err != nil && ctx.Err() != nil:
				run.finish(item.Chat.ID, nil)
			case err != nil:
				metrics.EnrichOutcomes.WithLabelValues("pipeline", "failed").Inc()
				logger.Warn("follow-up suggestion failed",
					zap.Int64("chat", item.Chat.ID),
					zap.Error(err),
				)
				run.finish(item.Chat.ID, nil)
			case !verdict.Relevant:
				metrics.EnrichOutcomes.WithLabelValues("pipeline", "irrelevant").Inc()
				run.drop(item.Chat.ID)
			default:
				metrics.EnrichOutcomes.WithLabelValues("pipeline", "suggested").Inc()
				run.finish(item.Chat.ID, &verdict)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		drain()
		logger.Debug("pipeline superseded", zap.Error(err))
		return err
	}
	run.emit(true)
	drain()
	if err := ctx.Err(); err != nil {
		logger.Debug("pipeline superseded during delivery", zap.Error(err))
		return err
	}
	logger.Info("pipeline finished", zap.Int("items", len(run.items)))
	return nil
}

// CancelPipeline stops the live pipeline run.
func (o *Orchestrator) CancelPipeline() { o.pipelines.Cancel() }

func (o *Orchestrator) suggest(ctx context.Context, item FollowUpItem) (followUpVerdict, error) {
	const op = "ai.follow_up"

	msgs, err := o.source.ChatHistory(ctx, item.Chat.ID, o.cfg.PipelineMessages)
	if err != nil {
		return followUpVerdict{}, err
	}
	slices.Reverse(msgs)
	snips := Snippets(msgs, o.now(), SnippetOptions{ChatName: item.Chat.Title, MarkSelf: true})
	if len(snips) == 0 {
		return followUpVerdict{Relevant: true}, nil
	}

	out, err := o.complete(ctx, op, ai.Request{
		System: followUpSystemPrompt,
		User:   followUpUserPrompt(item.Chat.Title, snips),
		Fast:   true,
	})
	if err != nil {
		return followUpVerdict{}, err
	}
	return ai.Decode[followUpVerdict](op, out)
}

type pipelineRun struct {
	id      string
	scope   *Scope
	publish func(PipelineSnapshot)

	mu      sync.Mutex
	items   []FollowUpItem
	pending int

	qmu   sync.Mutex
	queue []PipelineSnapshot
	wake  chan struct{}
}

func (r *pipelineRun) finish(chatID int64, v *followUpVerdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	if v != nil {
		for i := range r.items {
			if r.items[i].Chat.ID == chatID {
				r.items[i].SuggestedAction = v.SuggestedAction
				break
			}
		}
	}
	r.emitLocked(false)
}

func (r *pipelineRun) drop(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending--
	r.items = slices.DeleteFunc(r.items, func(it FollowUpItem) bool {
		return it.Chat.ID == chatID
	})
	r.emitLocked(false)
}

func (r *pipelineRun) emit(done bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitLocked(done)
}

func (r *pipelineRun) emitLocked(done bool) {
	if r.publish == nil {
		return
	}
	snap := PipelineSnapshot{
		RunID:   r.id,
		Items:   slices.Clone(r.items),
		Pending: r.pending,
		Done:    done,
	}
	SortFollowUps(snap.Items)
	r.scope.Publish(func() { r.enqueue(snap) })
}

func (r *pipelineRun) enqueue(snap PipelineSnapshot) {
	r.qmu.Lock()
	r.queue = append(r.queue, snap)
	r.qmu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// deliver hands queued snapshots to publish until stop is closed, then
// flushes what is left.
func (r *pipelineRun) deliver(stop <-chan struct{}) {
	for {
		select {
		case <-r.wake:
			r.flush()
		case <-stop:
			r.flush()
			return
		}
	}
}

func (r *pipelineRun) flush() {
	for {
		r.qmu.Lock()
		if len(r.queue) == 0 {
			r.qmu.Unlock()
			return
		}
		snap := r.queue[0]
		r.queue = r.queue[1:]
		r.qmu.Unlock()

		if !r.scope.Current() {
			r.qmu.Lock()
			r.queue = nil
			r.qmu.Unlock()
			return
		}
		r.publish(snap)
	}
}
