package daemon

import (
	"context"
	"errors"

	"github.com/matheus3301/phonecontact/internal/api"
	"github.com/matheus3301/phonecontact/internal/bus"
	"github.com/matheus3301/phonecontact/internal/config"
	"github.com/matheus3301/phonecontact/internal/device"
	"github.com/matheus3301/phonecontact/internal/lock"
	"github.com/matheus3301/phonecontact/internal/logging"
	"github.com/matheus3301/phonecontact/internal/remote"
	"github.com/matheus3301/phonecontact/internal/session"
	"github.com/matheus3301/phonecontact/internal/status"
	"github.com/matheus3301/phonecontact/internal/store"
	intsync "github.com/matheus3301/phonecontact/internal/sync"
	"github.com/matheus3301/phonecontact/internal/usecase"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	SocketPath  string // optional override for testing; empty = use default
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
			provideRemote,
			provideRepository,
			provideAddressBook,
			provideUseCases,
			provideContactService,
			NewServer,
		),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(session.ConfigPath())
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName, cfg.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus, logger *zap.Logger) *status.Machine {
	return status.NewMachine(b, logger.Named("status"))
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.LockPath(p.SessionName))
	if err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			logger.Error("session already running", zap.Int("owner_pid", held.Owner.PID))
		}
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideStore takes the lock so the database is never opened by a second
// daemon for the same session.
func provideStore(p Params, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath, b)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		logger.Warn("migration failed, resetting cache", zap.Error(err))
		result, err = db.Reset()
		if err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemote(cfg *config.Config, logger *zap.Logger) (*remote.Client, error) {
	timeout, err := cfg.APITimeout()
	if err != nil {
		return nil, err
	}
	return remote.New(remote.Options{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.Key,
		Timeout: timeout,
		Logger:  logger.Named("remote"),
	})
}

func provideRepository(db *store.DB, rc *remote.Client, b *bus.Bus, logger *zap.Logger) *intsync.Repository {
	return intsync.NewRepository(db, rc, b, logger.Named("repository"))
}

func provideAddressBook(p Params, logger *zap.Logger) *device.VCardDirectory {
	return device.NewVCardDirectory(session.AddressBookDir(p.SessionName), logger.Named("device"))
}

func provideUseCases(repo *intsync.Repository, book *device.VCardDirectory, cfg *config.Config, logger *zap.Logger) *usecase.Service {
	return usecase.NewService(repo, book, logger.Named("usecase"), usecase.Options{
		HistoryLimit:    cfg.Search.HistoryLimit,
		SuggestionLimit: cfg.Search.SuggestionLimit,
	})
}

func provideContactService(p Params, svc *usecase.Service, repo *intsync.Repository, machine *status.Machine, logger *zap.Logger) *api.ContactService {
	return api.NewContactService(p.SessionName, svc, repo, machine, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *store.DB, svc *usecase.Service, machine *status.Machine, cfg *config.Config, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	syncDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Follow sync and remote outcomes on the bus.
			machine.Start(ctx)

			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			if cfg.Sync.SkipOnStart {
				close(syncDone)
				logger.Info("startup sync skipped")
				_ = machine.Transition(status.Ready)
				return nil
			}
			go func() {
				defer close(syncDone)
				contacts, err := svc.Sync(ctx)
				if err != nil {
					logger.Warn("startup sync failed, serving cached contacts", zap.Error(err))
					return
				}
				logger.Info("startup sync completed", zap.Int("count", len(contacts)))
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-syncDone:
			case <-stopCtx.Done():
			}
			srv.Stop(stopCtx)
			machine.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
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
