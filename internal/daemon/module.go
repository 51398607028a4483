package daemon

import (
	"context"
	"errors"

	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/api"
	"github.com/matheus3301/tgtriage/internal/botapi"
	"github.com/matheus3301/tgtriage/internal/bus"
	"github.com/matheus3301/tgtriage/internal/config"
	"github.com/matheus3301/tgtriage/internal/enrich"
	"github.com/matheus3301/tgtriage/internal/lock"
	"github.com/matheus3301/tgtriage/internal/logging"
	"github.com/matheus3301/tgtriage/internal/ratelimit"
	"github.com/matheus3301/tgtriage/internal/retry"
	"github.com/matheus3301/tgtriage/internal/router"
	"github.com/matheus3301/tgtriage/internal/session"
	"github.com/matheus3301/tgtriage/internal/state"
	"github.com/matheus3301/tgtriage/internal/status"
	"github.com/matheus3301/tgtriage/internal/store"
	intsync "github.com/matheus3301/tgtriage/internal/sync"
	"github.com/matheus3301/tgtriage/internal/telegram"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
	ConfigPath  string // optional override; empty = ~/.tgtriage/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideState,
			provideLimiter,
			provideRetry,
			provideBot,
			provideAdapter,
			provideClient,
			provideSyncEngine,
			provideTelegram,
			provideAI,
			provideRouter,
			provideOrchestrator,
			provideService,
			NewServer,
			NewMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	return config.LoadOrDefault(path)
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.Daemon.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName), p.SessionName)
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore depends on the lock so only the lock holder opens the archive.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.ArchiveDBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideState(cfg *config.Config, logger *zap.Logger) *state.Store {
	return state.New(state.Limits{
		MaxUsers: cfg.Cache.MaxUsers,
		MaxChats: cfg.Cache.MaxChats,
	}, logger.Named("state"))
}

func provideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.MaxTokens, cfg.RateLimit.RefillRate)
}

func provideRetry(cfg *config.Config, logger *zap.Logger) retry.Policy {
	p := retry.DefaultPolicy()
	if cfg.Retry.MaxAttempts > 0 {
		p.MaxAttempts = cfg.Retry.MaxAttempts
	}
	if d := cfg.Retry.InitialDelay(); d > 0 {
		p.InitialDelay = d
	}
	p.Logger = logger.Named("retry")
	return p
}

var errNoBotToken = errors.New("telegram.bot_token is not set in config.toml")

func provideBot(cfg *config.Config) (botapi.Bot, error) {
	if cfg.Telegram.BotToken == "" {
		return nil, errNoBotToken
	}
	return botapi.NewBot(cfg.Telegram.BotToken, nil)
}

func provideAdapter(p Params, cfg *config.Config, bot botapi.Bot, db *store.DB, limiter *ratelimit.Limiter, logger *zap.Logger) *botapi.Adapter {
	return botapi.New(botapi.Options{
		Bot:         bot,
		Archive:     db,
		Limiter:     limiter,
		Token:       cfg.Telegram.BotToken,
		OwnerUserID: cfg.Telegram.OwnerUserID,
		PollTimeout: cfg.Telegram.PollTimeoutSec,
		FilesDir:    session.FilesDir(p.SessionName),
		Logger:      logger,
	})
}

func provideClient(a *botapi.Adapter) tg.Client {
	return a
}

func provideSyncEngine(client tg.Client, st *state.Store, m *status.Machine, db *store.DB, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(client, st, m, db, b, logger)
}

func provideTelegram(client tg.Client, st *state.Store, limiter *ratelimit.Limiter, policy retry.Policy, cfg *config.Config, m *status.Machine, engine *intsync.Engine, logger *zap.Logger) *telegram.Service {
	svc := telegram.New(telegram.Options{
		Client:      client,
		State:       st,
		Limiter:     limiter,
		Retry:       policy,
		CallTimeout: cfg.Telegram.CallTimeout(),
		Ready:       m,
		Logger:      logger,
	})
	svc.SetInjector(engine)
	return svc
}

func provideAI(cfg *config.Config, logger *zap.Logger) ai.Provider {
	p := ai.New(cfg.AI, logger)
	logger.Info("ai provider selected",
		zap.String("provider", p.Name()),
		zap.Bool("configured", ai.IsConfigured(p)),
	)
	return p
}

func provideRouter(p ai.Provider, logger *zap.Logger) *router.Router {
	return router.New(p, logger)
}

func provideOrchestrator(svc *telegram.Service, st *state.Store, p ai.Provider, policy retry.Policy, cfg *config.Config, logger *zap.Logger) *enrich.Orchestrator {
	return enrich.New(enrich.Options{
		Source:   svc,
		Chats:    st,
		Provider: p,
		Retry:    policy,
		Config:   enrich.ConfigFrom(cfg),
		Logger:   logger,
	})
}

func provideService(p Params, cfg *config.Config, m *status.Machine, st *state.Store, svc *telegram.Service, db *store.DB, rt *router.Router, orch *enrich.Orchestrator, limiter *ratelimit.Limiter, b *bus.Bus, logger *zap.Logger) *api.Service {
	return api.NewService(api.Deps{
		SessionName: p.SessionName,
		Machine:     m,
		State:       st,
		Telegram:    svc,
		Archive:     db,
		Router:      rt,
		Enrich:      orch,
		Limiter:     limiter,
		Bus:         b,
		Fetch:       cfg.Fetch,
		Logger:      logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, ms *MetricsServer, lk *lock.Lock, db *store.DB, adapter *botapi.Adapter, engine *intsync.Engine, orch *enrich.Orchestrator, cfg *config.Config, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// The engine must be draining before the adapter emits.
			engine.Start(runCtx)

			// Archived chats land in state before live updates resume.
			if err := adapter.LoadChats(runCtx, cfg.Fetch.ChatListLimit); err != nil {
				logger.Warn("archive replay failed", zap.Error(err))
			}
			if err := adapter.Start(runCtx); err != nil {
				cancel()
				engine.Stop()
				return err
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			ms.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			orch.CancelPipeline()
			orch.CancelSemanticSearch()
			srv.Stop(ctx)
			ms.Stop(ctx)
			// The adapter closes its stream first so the engine archives
			// every update whose offset was already committed.
			adapter.Stop()
			engine.Stop()
			cancel()
			if err := db.Close(); err != nil {
				logger.Warn("error closing archive", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
