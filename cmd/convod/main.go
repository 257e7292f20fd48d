package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/daemon"
	"github.com/matheus3301/convo/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	backendFlag := flag.String("backend", "", "backend to serve: sql or redis (overrides config)")
	verbose := flag.Bool("v", false, "mirror logs to stderr")
	flag.Parse()

	cfg, err := config.Resolve(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	profileName := profile.Resolve(*profileFlag, cfg)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *backendFlag != "" {
		cfg.Backend = *backendFlag
	}
	// Clients that talk to the daemon get the shared SQLite store behind it.
	if cfg.Backend == config.BackendDaemon {
		cfg.Backend = config.BackendSQL
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: profileName,
			Config:      cfg,
			LogStderr:   *verbose,
		}),
	)

	app.Run()
}
