package daemon

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/api"
	"github.com/matheus3301/gigchat/internal/archive"
	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/config"
	"github.com/matheus3301/gigchat/internal/lock"
	"github.com/matheus3301/gigchat/internal/logging"
	"github.com/matheus3301/gigchat/internal/messenger"
	"github.com/matheus3301/gigchat/internal/profile"
	"github.com/matheus3301/gigchat/internal/realtime"
	"github.com/matheus3301/gigchat/internal/socket"
	"github.com/matheus3301/gigchat/internal/status"
	"github.com/matheus3301/gigchat/internal/store"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	ProfileName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideProfile,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideArchive,
			provideRealtime,
			provideMessenger,
			provideMessengerService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideProfile(p Params) (*config.Profile, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	return config.LoadProfile(profile.Dir(p.ProfileName))
}

func provideLogger(p Params, prof *config.Profile) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName, prof.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.ArchivePath(p.ProfileName)
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
	logger.Info("archive opened", zap.String("path", dbPath))
	return db, nil
}

func provideArchive(db *store.DB, b *bus.Bus, logger *zap.Logger) *archive.Engine {
	return archive.NewEngine(db, b, logger.Named("archive"))
}

func provideRealtime(prof *config.Profile, machine *status.Machine, logger *zap.Logger) *realtime.Manager {
	return realtime.NewManager(realtimeConfig(prof), socket.WebSocketDialer{}, machine, logger.Named("realtime"))
}

func realtimeConfig(prof *config.Profile) realtime.Config {
	return realtime.Config{
		Endpoint:       prof.Endpoint,
		UserID:         prof.User.ID,
		ReconnectDelay: prof.Realtime.ReconnectDelay,
		AckTimeout:     prof.Realtime.AckTimeout,
		DialTimeout:    prof.Realtime.DialTimeout,
		PingPeriod:     prof.Realtime.PingPeriod,
		QueueSize:      prof.Realtime.QueueSize,
	}
}

func provideMessenger(mgr *realtime.Manager, b *bus.Bus, prof *config.Profile, logger *zap.Logger) *messenger.Client {
	return messenger.New(mgr, b, messenger.Options{
		Self:               prof.User.ID,
		TypingDebounce:     prof.Composer.TypingDebounce,
		MaxAttachmentBytes: prof.Composer.MaxAttachmentBytes,
	}, logger.Named("messenger"))
}

func provideMessengerService(p Params, prof *config.Profile, client *messenger.Client, machine *status.Machine, db *store.DB, b *bus.Bus) *api.MessengerService {
	return api.NewMessengerService(api.Identity{
		Profile:  p.ProfileName,
		UserID:   prof.User.ID,
		Endpoint: prof.Endpoint,
	}, client, machine, db, b)
}

// loadSeed merges the archive with the profile's seed file. Archived
// entries win on id collisions.
func loadSeed(ctx context.Context, engine *archive.Engine, prof *config.Profile, logger *zap.Logger) (chat.Seed, error) {
	seed, err := engine.Load(ctx)
	if err != nil {
		return seed, err
	}
	if prof.SeedFile == "" {
		return seed, nil
	}
	file, err := config.LoadSeed(prof.SeedFile)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("seed file not found", zap.String("path", prof.SeedFile))
		return seed, nil
	}
	if err != nil {
		return seed, err
	}
	extra := seedFromConfig(file)
	seed.Contacts = append(seed.Contacts, extra.Contacts...)
	seed.Messages = append(seed.Messages, extra.Messages...)
	if seed.Active == "" {
		seed.Active = extra.Active
	}
	logger.Info("seed file loaded",
		zap.String("path", prof.SeedFile),
		zap.Int("contacts", len(extra.Contacts)),
		zap.Int("messages", len(extra.Messages)),
	)
	return seed, nil
}

func registerLifecycle(lc fx.Lifecycle, p Params, prof *config.Profile, srv *Server, svc *api.MessengerService, lk *lock.Lock, db *store.DB, engine *archive.Engine, client *messenger.Client, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			seed, err := loadSeed(ctx, engine, prof, logger)
			if err != nil {
				cancel()
				return err
			}

			// Start archiving before the seed lands so restored contacts are
			// written back with any merged seed data.
			engine.Start(runCtx)

			if err := client.Start(runCtx); err != nil {
				cancel()
				return err
			}
			if err := client.Seed(ctx, seed); err != nil {
				cancel()
				return err
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			logger.Info("daemon started",
				zap.String("profile", p.ProfileName),
				zap.String("user", prof.User.ID),
				zap.String("endpoint", prof.Endpoint),
				zap.Int("pid", os.Getpid()),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			svc.Close()
			srv.Stop(ctx)
			client.Stop()
			engine.Stop()
			cancel()
			if err := db.Close(); err != nil {
				logger.Warn("error closing archive", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
