// Package daemon composes the long-running process: profile lock, cache
// db, gateway connections, reconciliation engine, and the reaper, wired
// together with fx lifecycle hooks.
package daemon

import (
	"context"

	"github.com/quillchat/quill/internal/bus"
	"github.com/quillchat/quill/internal/config"
	"github.com/quillchat/quill/internal/engine"
	"github.com/quillchat/quill/internal/gateway"
	"github.com/quillchat/quill/internal/lock"
	"github.com/quillchat/quill/internal/logging"
	"github.com/quillchat/quill/internal/presence"
	"github.com/quillchat/quill/internal/reaper"
	"github.com/quillchat/quill/internal/session"
	"github.com/quillchat/quill/internal/status"
	"github.com/quillchat/quill/internal/store"
	"github.com/quillchat/quill/internal/unread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideBackendClient,
			provideSocket,
			provideCounter,
			provideTracker,
			provideEngine,
			provideReaper,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.ProfileName), p.ProfileName)
}

func provideConfig(logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(session.ConfigPath())
	if err != nil {
		return nil, err
	}
	logger.Info("config loaded", zap.String("path", session.ConfigPath()))
	return cfg, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(session.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CacheDBPath(p.ProfileName)
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
	logger.Info("cache store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBackendClient(cfg *config.Config) *gateway.Client {
	return gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Token)
}

func provideSocket(cfg *config.Config, b *bus.Bus, machine *status.Machine, logger *zap.Logger) *gateway.Socket {
	return gateway.NewSocket(cfg.Gateway.WSURL, cfg.Gateway.Token, b, machine, logger)
}

func provideCounter() *unread.Counter {
	return unread.NewCounter()
}

func provideTracker(cfg *config.Config) *presence.Tracker {
	return presence.NewTracker(presence.WithTypingTimeout(cfg.Sync.TypingTimeout()))
}

func provideEngine(cfg *config.Config, client *gateway.Client, db *store.DB, b *bus.Bus, counter *unread.Counter, tracker *presence.Tracker, logger *zap.Logger) *engine.Engine {
	return engine.New(engine.Options{
		SelfID:        cfg.Gateway.SelfID,
		PollInterval:  cfg.Sync.PollInterval(),
		PendingMaxAge: cfg.Sync.PendingMaxAge(),
	}, client, db, b, counter, tracker, logger)
}

func provideReaper(cfg *config.Config, eng *engine.Engine, logger *zap.Logger) *reaper.Reaper {
	return reaper.New(eng, cfg.Sync.ReapInterval(), cfg.Sync.PendingMaxAge(), logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *store.DB, eng *engine.Engine, socket *gateway.Socket, rp *reaper.Reaper, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := eng.LoadCache(); err != nil {
				logger.Warn("cache restore failed, starting cold", zap.Error(err))
			}

			// Engine first, so it is subscribed before the push channel
			// starts publishing.
			eng.Start(context.Background())
			socket.Start(context.Background())
			rp.Start(context.Background())

			logger.Info("daemon started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			rp.Stop()
			socket.Stop()
			eng.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
