package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/backend"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/logging"
	"github.com/matheus3301/convo/internal/profile"
	"github.com/matheus3301/convo/internal/tui"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	userFlag := flag.String("user", "", "user id (overrides config)")
	backendFlag := flag.String("backend", "", "backend: sql, redis or daemon (overrides config)")
	flag.Parse()

	cfg, err := config.Resolve(profile.ConfigPath())
	if err != nil {
		fatal(err)
	}
	profileName := profile.Resolve(*profileFlag, cfg)
	if err := profile.ValidateName(profileName); err != nil {
		fatal(err)
	}
	if *userFlag != "" {
		cfg.UserID = *userFlag
	}
	if *backendFlag != "" {
		cfg.Backend = *backendFlag
	}
	if cfg.UserID == "" {
		fatal(fmt.Errorf("no user id: set user_id in %s, CONVO_USER_ID or --user", profile.ConfigPath()))
	}

	// The TUI owns the terminal, so logs only go to the file.
	logger, err := logging.New(profile.LogPath(profileName, "convotui"), profileName, logging.Options{Level: cfg.LogLevel})
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	b := bus.New()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	ch, err := backend.Open(ctx, backend.Options{
		Profile:   profileName,
		Config:    cfg,
		Bus:       b,
		Logger:    logger,
		AutoStart: true,
	})
	cancel()
	if err != nil {
		fatal(fmt.Errorf("open %s backend for profile %q: %w", cfg.Backend, profileName, err))
	}
	defer func() { _ = ch.Close() }()

	logger.Info("tui starting", zap.String("backend", cfg.Backend), zap.String("user", cfg.UserID))
	app := tui.NewApp(tui.Options{
		Profile: profileName,
		Config:  cfg,
		Channel: ch,
		Bus:     b,
		Logger:  logger,
	})
	if err := app.Run(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
