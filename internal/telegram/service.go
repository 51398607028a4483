// Package telegram fronts a tg.Client with rate limiting, retries, call
// timeouts and denormalization against the chat state.
package telegram

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/metrics"
	"github.com/matheus3301/tgtriage/internal/ratelimit"
	"github.com/matheus3301/tgtriage/internal/retry"
	"github.com/matheus3301/tgtriage/internal/state"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Readiness reports whether the platform session is authorized.
type Readiness interface {
	IsReady() bool
}

// Injector feeds a synthetic update through the single state writer.
type Injector interface {
	Inject(u tg.Update)
}

// Options configures a Service. Client, State and Limiter are required.
type Options struct {
	Client      tg.Client
	State       *state.Store
	Limiter     *ratelimit.Limiter
	Retry       retry.Policy
	CallTimeout time.Duration
	Ready       Readiness
	Logger      *zap.Logger
}

// Service is the only path from the core to the platform.
type Service struct {
	client      tg.Client
	state       *state.Store
	limiter     *ratelimit.Limiter
	policy      retry.Policy
	callTimeout time.Duration
	ready       Readiness
	logger      *zap.Logger

	mu       sync.RWMutex
	injector Injector
}

// fanout bounds concurrent per-chat fetches; the limiter still gates each.
const fanout = 5

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := opts.Retry
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Service{
		client:      opts.Client,
		state:       opts.State,
		limiter:     opts.Limiter,
		policy:      policy,
		callTimeout: opts.CallTimeout,
		ready:       opts.Ready,
		logger:      logger.Named("telegram"),
	}
}

// SetInjector sets where re-fetched users are sent. Without one they are
// returned but not cached.
func (s *Service) SetInjector(in Injector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injector = in
}

// State exposes the chat view backing this service.
func (s *Service) State() *state.Store { return s.state }

// call runs one platform request with readiness check, rate limit, retries
// and a per-attempt timeout.
func call[T any](ctx context.Context, s *Service, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if s.ready != nil && !s.ready.IsReady() {
		metrics.PlatformCalls.WithLabelValues(op, "not_ready").Inc()
		return zero, apperr.New(apperr.ClientNotReady, op, nil)
	}

	v, err := retry.Do(ctx, s.policy, op, func(ctx context.Context) (T, error) {
		if err := s.limiter.Acquire(ctx); err != nil {
			return zero, err
		}
		if s.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
			defer cancel()
		}
		return fn(ctx)
	})

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.PlatformCalls.WithLabelValues(op, result).Inc()
	return v, err
}

// LoadChats asks the platform to stream up to limit main-list chats.
func (s *Service) LoadChats(ctx context.Context, limit int) error {
	_, err := call(ctx, s, "load_chats", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.client.LoadChats(ctx, limit)
	})
	return err
}

// ChatHistory returns up to limit messages of chatID, newest first.
func (s *Service) ChatHistory(ctx context.Context, chatID int64, limit int) ([]tg.Message, error) {
	msgs, err := call(ctx, s, "chat_history", func(ctx context.Context) ([]tg.Message, error) {
		return s.client.ChatHistory(ctx, chatID, limit)
	})
	if err != nil {
		return nil, err
	}
	return s.state.Denormalize(msgs), nil
}

// SearchMessages runs a keyword search across all chats.
func (s *Service) SearchMessages(ctx context.Context, query string, limit int) ([]tg.Message, error) {
	msgs, err := call(ctx, s, "search_messages", func(ctx context.Context) ([]tg.Message, error) {
		return s.client.SearchMessages(ctx, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return s.state.Denormalize(msgs), nil
}

// SearchChatMessages runs a keyword search within one chat.
func (s *Service) SearchChatMessages(ctx context.Context, chatID int64, query string, limit int) ([]tg.Message, error) {
	msgs, err := call(ctx, s, "search_chat_messages", func(ctx context.Context) ([]tg.Message, error) {
		return s.client.SearchChatMessages(ctx, chatID, query, limit)
	})
	if err != nil {
		return nil, err
	}
	return s.state.Denormalize(msgs), nil
}

// DownloadFile fetches a file and returns its local path.
func (s *Service) DownloadFile(ctx context.Context, fileID string) (string, error) {
	return call(ctx, s, "download_file", func(ctx context.Context) (string, error) {
		return s.client.DownloadFile(ctx, fileID)
	})
}

// User returns a user from the cache, re-fetching on a miss. Fetched users
// go back into the view through the injector.
func (s *Service) User(ctx context.Context, userID int64) (tg.User, error) {
	if u, ok := s.state.User(userID); ok {
		return u, nil
	}
	u, err := call(ctx, s, "user", func(ctx context.Context) (tg.User, error) {
		return s.client.User(ctx, userID)
	})
	if err != nil {
		return tg.User{}, err
	}
	s.mu.RLock()
	in := s.injector
	s.mu.RUnlock()
	if in != nil {
		in.Inject(tg.UserUpdated{User: u})
	}
	return u, nil
}

// Me returns the local account.
func (s *Service) Me(ctx context.Context) (tg.User, error) {
	return call(ctx, s, "me", func(ctx context.Context) (tg.User, error) {
		return s.client.Me(ctx)
	})
}

// RecentMessagesAcross fetches up to perChat messages from each chat and
// merges them newest first. Per-chat failures are logged and skipped; when
// every chat fails the result is AllCandidatesFailed.
func (s *Service) RecentMessagesAcross(ctx context.Context, chatIDs []int64, perChat int) ([]tg.Message, error) {
	if len(chatIDs) == 0 {
		return nil, nil
	}

	var (
		mu     sync.Mutex
		out    []tg.Message
		failed int
		last   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanout)
	for _, id := range chatIDs {
		g.Go(func() error {
			msgs, err := s.ChatHistory(gctx, id, perChat)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				last = err
				s.logger.Warn("chat fetch failed", zap.Int64("chat_id", id), zap.Error(err))
				return nil
			}
			out = append(out, msgs...)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if failed == len(chatIDs) {
		return nil, apperr.New(apperr.AllCandidatesFailed, "recent_messages", last)
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders messages by date desc, then chat and id desc.
func SortNewestFirst(msgs []tg.Message) {
	slices.SortStableFunc(msgs, func(a, b tg.Message) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		if a.ChatID != b.ChatID {
			if a.ChatID > b.ChatID {
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
	})
}
