package daemon

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/lock"
	"github.com/matheus3301/convo/internal/logging"
	"github.com/matheus3301/convo/internal/profile"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/remote/redisch"
	"github.com/matheus3301/convo/internal/remote/sqlch"
	"github.com/matheus3301/convo/internal/status"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	Config      *config.Config
	SocketPath  string // optional override for testing; empty = use default
	// LogStderr mirrors logs to stderr.
	LogStderr bool
}

func (p Params) socketPath() string {
	if p.SocketPath != "" {
		return p.SocketPath
	}
	return profile.SocketPath(p.ProfileName)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideBackend,
			provideChannelService,
			NewServer,
			NewAdminServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName, "convod"), p.ProfileName, logging.Options{
		Level:  p.Config.LogLevel,
		Stderr: p.LogStderr,
	})
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b, "daemon")
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName), lock.Owner{
		Program: "convod",
		Backend: p.Config.Backend,
		Socket:  p.socketPath(),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideBackend opens the backend the daemon multiplexes for its clients.
// The lock is a dependency so a second daemon never touches the backend.
func provideBackend(p Params, _ *lock.Lock, b *bus.Bus, logger *zap.Logger) (remote.Channel, error) {
	cfg := p.Config
	switch cfg.Backend {
	case config.BackendSQL:
		path := cfg.DatabasePath
		if path == "" {
			path = profile.DBPath(p.ProfileName)
		}
		ch, err := sqlch.Open(path, b, sqlch.Options{}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("store initialized", zap.String("path", path))
		return ch, nil
	case config.BackendRedis:
		ch, err := redisch.Open(context.Background(), cfg.RedisURL, redisch.Options{}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("redis connected")
		return ch, nil
	default:
		return nil, fmt.Errorf("daemon cannot serve backend %q", cfg.Backend)
	}
}

func provideChannelService(p Params, ch remote.Channel, m *status.Machine, logger *zap.Logger) *api.ChannelService {
	return api.NewChannelService(p.ProfileName, p.Config.Backend, ch, m, logger.Named("api"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, admin *AdminServer, lk *lock.Lock, backend remote.Channel, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start gRPC server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			admin.Start()
			_ = machine.Transition(status.Live)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			admin.Stop(ctx)
			_ = machine.Transition(status.Closed)
			if err := backend.Close(); err != nil {
				logger.Warn("error closing backend", zap.Error(err))
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
