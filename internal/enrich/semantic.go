package enrich

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/metrics"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownSearch is returned for a page request on a search that is not
// the live one.
var ErrUnknownSearch = errors.New("enrich: unknown or superseded search")

type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
)

func (r Relevance) rank() int {
	if r == RelevanceHigh {
		return 0
	}
	return 1
}

// SemanticResult is one chat that matches a semantic query.
type SemanticResult struct {
	ChatID    int64
	ChatTitle string
	Reason    string
	Relevance Relevance
	Excerpts  []string
}

// SemanticPage is the accumulated result set after a page of batches.
type SemanticPage struct {
	SearchID string
	Query    string
	Results  []SemanticResult
	Scanned  int
	Total    int
	HasMore  bool
}

type semanticDTO struct {
	ChatName         string   `json:"chatName"`
	Reason           string   `json:"reason"`
	Relevance        string   `json:"relevance"`
	MatchingMessages []string `json:"matchingMessages"`
}

type semanticSearch struct {
	id      string
	query   string
	scope   *Scope
	byTitle map[string]tg.Chat

	mu      sync.Mutex
	batches [][]tg.Chat
	next    int
	scanned int
	total   int
	order   []string
	results map[string]SemanticResult
}

type semanticSessions struct {
	scopes Scopes

	mu      sync.Mutex
	current *semanticSearch
}

// StartSemanticSearch begins a paged search over the visible chats and runs
// its first page. It supersedes any search in progress.
func (o *Orchestrator) StartSemanticSearch(ctx context.Context, query string) (SemanticPage, error) {
	chats := o.chats.Visible()
	s := &semanticSearch{
		id:      uuid.NewString(),
		query:   strings.TrimSpace(query),
		scope:   o.semantic.scopes.Begin(context.WithoutCancel(ctx)),
		byTitle: make(map[string]tg.Chat, len(chats)),
		batches: partition(chats, o.cfg.SemanticBatchSize),
		total:   len(chats),
		results: make(map[string]SemanticResult),
	}
	for _, c := range chats {
		if key := normalizeTitle(c.Title); key != "" {
			if _, dup := s.byTitle[key]; !dup {
				s.byTitle[key] = c
			}
		}
	}

	o.semantic.mu.Lock()
	o.semantic.current = s
	o.semantic.mu.Unlock()

	o.logger.Info("semantic search started",
		zap.String("search", s.id),
		zap.Int("chats", s.total),
		zap.Int("batches", len(s.batches)),
	)
	return o.runPage(ctx, s)
}

// NextSemanticPage runs the next page of a live search.
func (o *Orchestrator) NextSemanticPage(ctx context.Context, searchID string) (SemanticPage, error) {
	o.semantic.mu.Lock()
	s := o.semantic.current
	o.semantic.mu.Unlock()
	if s == nil || s.id != searchID || !s.scope.Current() {
		return SemanticPage{}, ErrUnknownSearch
	}
	return o.runPage(ctx, s)
}

// CancelSemanticSearch stops the live search.
func (o *Orchestrator) CancelSemanticSearch() {
	o.semantic.mu.Lock()
	defer o.semantic.mu.Unlock()
	if o.semantic.current != nil {
		o.semantic.current.scope.End()
		o.semantic.current = nil
	}
}

type batchResult struct {
	fetched bool
	matches []SemanticResult
}

func (o *Orchestrator) runPage(reqCtx context.Context, s *semanticSearch) (SemanticPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The page ends with either the request or the search scope.
	ctx, cancel := context.WithCancel(reqCtx)
	defer cancel()
	stop := context.AfterFunc(s.scope.Context(), cancel)
	defer stop()

	end := min(s.next+max(o.cfg.SemanticConcurrency, 1), len(s.batches))
	page := s.batches[s.next:end]
	if len(page) == 0 {
		return s.snapshot(), nil
	}

	results := make([]batchResult, len(page))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.cfg.SemanticConcurrency, 1))
	for i, batch := range page {
		g.Go(func() error {
			res, err := o.searchBatch(gctx, s, batch)
			if err != nil && apperr.IsTerminal(err) {
				return err
			}
			if err != nil {
				o.logger.Warn("semantic batch failed", zap.String("search", s.id), zap.Error(err))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SemanticPage{}, err
	}
	if err := ctx.Err(); err != nil {
		return SemanticPage{}, err
	}

	fetched := false
	for _, r := range results {
		fetched = fetched || r.fetched
	}

	var out SemanticPage
	committed := s.scope.Publish(func() {
		s.next = end
		for i, r := range results {
			s.scanned += len(page[i])
			for _, m := range r.matches {
				s.merge(m)
			}
		}
		out = s.snapshot()
	})
	if !committed {
		return SemanticPage{}, ErrUnknownSearch
	}
	if !fetched {
		return out, apperr.New(apperr.AllCandidatesFailed, "semantic.page", nil)
	}
	return out, nil
}

func (o *Orchestrator) searchBatch(ctx context.Context, s *semanticSearch, batch []tg.Chat) (batchResult, error) {
	const op = "ai.semantic"

	msgs, err := o.source.RecentMessagesAcross(ctx, chatIDs(batch), o.cfg.SemanticMessages)
	if err != nil {
		return batchResult{}, err
	}
	res := batchResult{fetched: true}
	snips := TruncateToBudget(Snippets(msgs, o.now(), SnippetOptions{}), o.cfg.SnippetBudget)
	if len(snips) == 0 {
		return res, nil
	}

	out, err := o.complete(ctx, op, ai.Request{
		System: semanticSystemPrompt,
		User:   semanticUserPrompt(s.query, snips),
	})
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("semantic", "failed").Inc()
		if apperr.IsTerminal(err) {
			return res, err
		}
		return res, nil
	}
	dtos, err := ai.Decode[[]semanticDTO](op, out)
	if err != nil {
		metrics.EnrichOutcomes.WithLabelValues("semantic", "unparsable").Inc()
		o.logger.Warn("semantic response not parsable", zap.Error(err))
		return res, nil
	}
	metrics.EnrichOutcomes.WithLabelValues("semantic", "ok").Inc()

	for _, d := range dtos {
		if strings.TrimSpace(d.ChatName) == "" {
			continue
		}
		r := SemanticResult{
			ChatTitle: d.ChatName,
			Reason:    d.Reason,
			Relevance: parseRelevance(d.Relevance),
			Excerpts:  d.MatchingMessages,
		}
		if c, ok := s.byTitle[normalizeTitle(d.ChatName)]; ok {
			r.ChatID = c.ID
			r.ChatTitle = c.Title
		}
		res.matches = append(res.matches, r)
	}
	return res, nil
}

func parseRelevance(s string) Relevance {
	if Relevance(strings.ToLower(strings.TrimSpace(s))) == RelevanceHigh {
		return RelevanceHigh
	}
	return RelevanceMedium
}

func resultKey(r SemanticResult) string {
	if r.ChatID != 0 {
		return "id:" + strconv.FormatInt(r.ChatID, 10)
	}
	return "title:" + normalizeTitle(r.ChatTitle)
}

// merge keeps one result per chat, preferring the higher relevance.
func (s *semanticSearch) merge(r SemanticResult) {
	key := resultKey(r)
	prev, ok := s.results[key]
	if !ok {
		s.order = append(s.order, key)
		s.results[key] = r
		return
	}
	if r.Relevance.rank() < prev.Relevance.rank() {
		s.results[key] = r
	}
}

func (s *semanticSearch) snapshot() SemanticPage {
	results := make([]SemanticResult, 0, len(s.order))
	for _, k := range s.order {
		results = append(results, s.results[k])
	}
	slices.SortStableFunc(results, func(a, b SemanticResult) int {
		return a.Relevance.rank() - b.Relevance.rank()
	})
	return SemanticPage{
		SearchID: s.id,
		Query:    s.query,
		Results:  results,
		Scanned:  s.scanned,
		Total:    s.total,
		HasMore:  s.next < len(s.batches),
	}
}

func partition(chats []tg.Chat, size int) [][]tg.Chat {
	if size <= 0 {
		size = 10
	}
	var out [][]tg.Chat
	for start := 0; start < len(chats); start += size {
		out = append(out, chats[start:min(start+size, len(chats))])
	}
	return out
}
