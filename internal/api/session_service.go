// Package api exposes the triage core to local clients over gRPC on the
// session's unix socket.
package api

import (
	"context"
	"time"

	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/bus"
	"github.com/matheus3301/tgtriage/internal/config"
	"github.com/matheus3301/tgtriage/internal/enrich"
	"github.com/matheus3301/tgtriage/internal/ratelimit"
	"github.com/matheus3301/tgtriage/internal/router"
	"github.com/matheus3301/tgtriage/internal/state"
	"github.com/matheus3301/tgtriage/internal/status"
	"github.com/matheus3301/tgtriage/internal/store"
	"github.com/matheus3301/tgtriage/internal/telegram"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// Deps are the core components behind the service. Archive, Limiter and
// Bus may be nil.
type Deps struct {
	SessionName string
	Machine     *status.Machine
	State       *state.Store
	Telegram    *telegram.Service
	Archive     *store.DB
	Router      *router.Router
	Enrich      *enrich.Orchestrator
	Limiter     *ratelimit.Limiter
	Bus         *bus.Bus
	Fetch       config.FetchConfig
	Logger      *zap.Logger
}

// Service implements TriageServer.
type Service struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	state       *state.Store
	telegram    *telegram.Service
	archive     *store.DB
	router      *router.Router
	enrich      *enrich.Orchestrator
	limiter     *ratelimit.Limiter
	bus         *bus.Bus
	fetch       config.FetchConfig
	logger      *zap.Logger
}

var _ TriageServer = (*Service)(nil)

// NewService creates the RPC service.
func NewService(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessionName: d.SessionName,
		startedAt:   time.Now(),
		machine:     d.Machine,
		state:       d.State,
		telegram:    d.Telegram,
		archive:     d.Archive,
		router:      d.Router,
		enrich:      d.Enrich,
		limiter:     d.Limiter,
		bus:         d.Bus,
		fetch:       d.Fetch,
		logger:      logger.Named("api"),
	}
}

func (s *Service) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	current := s.machine.Current()
	stats := s.state.Stats()

	resp := StatusResponse{
		Session:         s.sessionName,
		State:           string(current),
		NeedsUserAction: status.NeedsUserAction(current),
		SinceUnix:       s.machine.Since().Unix(),
		UptimeMs:        time.Since(s.startedAt).Milliseconds(),
		Chats:           stats.Chats,
		VisibleChats:    stats.Visible,
		CachedChats:     stats.CachedChats,
		CachedUsers:     stats.CachedUsers,
		StateVersion:    stats.Version,
	}
	if s.archive != nil {
		if n, err := s.archive.CountMessages(); err == nil {
			resp.ArchivedMessages = n
		}
	}
	if s.enrich != nil {
		p := s.enrich.Provider()
		resp.AIProvider = p.Name()
		resp.AIConfigured = ai.IsConfigured(p)
	}
	if s.limiter != nil {
		resp.RateTokens = s.limiter.Available()
	}
	return encode(resp)
}

func (s *Service) TestConnection(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p := s.enrich.Provider()
	ok, err := ai.TestConnection(ctx, p)
	if err != nil {
		s.logger.Warn("ai connection test failed", zap.String("provider", p.Name()), zap.Error(err))
		return nil, toStatus(err)
	}
	return encode(TestConnectionResponse{Provider: p.Name(), OK: ok})
}
