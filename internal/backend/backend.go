// Package backend opens the remote channel a profile is configured for.
package backend

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/profile"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/remote/grpcch"
	"github.com/matheus3301/convo/internal/remote/redisch"
	"github.com/matheus3301/convo/internal/remote/sqlch"
)

// Options selects and configures the backend.
type Options struct {
	Profile string
	Config  *config.Config
	// Bus receives sqlite change-log events. May be nil.
	Bus    *bus.Bus
	Logger *zap.Logger
	// AutoStart launches convod when the daemon backend is selected and no daemon answers.
	AutoStart bool
	// SocketPath overrides the profile's daemon socket.
	SocketPath string
}

// Open connects to the configured backend.
func Open(ctx context.Context, opts Options) (remote.Channel, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	switch cfg.Backend {
	case config.BackendSQL:
		path := cfg.DatabasePath
		if path == "" {
			if err := profile.EnsureDir(opts.Profile); err != nil {
				return nil, err
			}
			path = profile.DBPath(opts.Profile)
		}
		ch, err := sqlch.Open(path, opts.Bus, sqlch.Options{}, logger.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		return ch, nil
	case config.BackendRedis:
		ch, err := redisch.Open(ctx, cfg.RedisURL, redisch.Options{}, logger.Named("redis"))
		if err != nil {
			return nil, err
		}
		return ch, nil
	case config.BackendDaemon:
		sock := opts.SocketPath
		if sock == "" {
			sock = profile.SocketPath(opts.Profile)
		}
		if !ProbeDaemon(sock) {
			if !opts.AutoStart {
				return nil, fmt.Errorf("no daemon answering for profile %q", opts.Profile)
			}
			logger.Info("starting daemon", zap.String("profile", opts.Profile))
			if err := StartDaemon(opts.Profile); err != nil {
				return nil, fmt.Errorf("start daemon: %w", err)
			}
			if !WaitForDaemon(sock, 10*time.Second) {
				return nil, fmt.Errorf("daemon for profile %q did not become ready", opts.Profile)
			}
		}
		ch, err := grpcch.Dial(sock, grpcch.Options{}, logger.Named("grpc"))
		if err != nil {
			return nil, err
		}
		return ch, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// ProbeDaemon reports whether a daemon answers a Status call on the socket.
func ProbeDaemon(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	c, err := grpcch.Dial(socketPath, grpcch.Options{}, nil)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = c.Status(ctx)
	return err == nil
}

// StartDaemon launches convod for the profile in the background. A convod binary
// next to the running executable wins over one on PATH.
func StartDaemon(profileName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	convod := filepath.Join(filepath.Dir(executable), "convod")
	if _, err := os.Stat(convod); err != nil {
		convod = "convod"
	}

	cmd := exec.Command(convod, "--profile", profileName)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// WaitForDaemon polls ProbeDaemon until it succeeds or timeout passes.
func WaitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ProbeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
