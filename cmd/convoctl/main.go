package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/backend"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/logging"
	"github.com/matheus3301/convo/internal/profile"
	"github.com/matheus3301/convo/internal/remote"
)

// cli carries what every command needs.
type cli struct {
	profile string
	cfg     *config.Config
	bus     *bus.Bus
	logger  *zap.Logger
	jsonOut bool
}

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	userFlag := flag.String("user", "", "user id (overrides config)")
	backendFlag := flag.String("backend", "", "backend: sql, redis or daemon (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
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

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	logger, err := logging.New(profile.LogPath(profileName, "convoctl"), profileName, logging.Options{Level: cfg.LogLevel})
	if err != nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	c := &cli{profile: profileName, cfg: cfg, bus: bus.New(), logger: logger, jsonOut: *jsonFlag}

	// watch runs until interrupted; everything else gets a deadline.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if args[0] != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	switch args[0] {
	case "status":
		err = c.cmdStatus(ctx)
	case "conversations":
		err = c.cmdConversations(ctx)
	case "new":
		err = c.cmdNew(ctx, args[1:])
	case "history":
		err = c.cmdHistory(ctx, args[1:])
	case "send":
		err = c.cmdSend(ctx, args[1:])
	case "edit":
		err = c.cmdEdit(ctx, args[1:])
	case "delete":
		err = c.cmdDelete(ctx, args[1:])
	case "watch":
		err = c.cmdWatch(ctx, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: convoctl [--profile <name>] [--user <id>] [--backend <sql|redis|daemon>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                              Show profile, backend and daemon status")
	fmt.Fprintln(os.Stderr, "  conversations                       List your conversations")
	fmt.Fprintln(os.Stderr, "  new <id> <user[:name]>...           Create a conversation")
	fmt.Fprintln(os.Stderr, "  history <conv> [-limit n] [-before t] Show messages, newest last")
	fmt.Fprintln(os.Stderr, "  send <conv> <text>                  Send a message")
	fmt.Fprintln(os.Stderr, "  edit <conv> <msg-id> <text>         Edit one of your messages")
	fmt.Fprintln(os.Stderr, "  delete <conv> <msg-id>              Delete one of your messages")
	fmt.Fprintln(os.Stderr, "  watch <conv>                        Stream events until interrupted")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func (c *cli) open(ctx context.Context) (remote.Channel, error) {
	ch, err := backend.Open(ctx, backend.Options{
		Profile:   c.profile,
		Config:    c.cfg,
		Bus:       c.bus,
		Logger:    c.logger,
		AutoStart: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s backend for profile %q: %w", c.cfg.Backend, c.profile, err)
	}
	return ch, nil
}

func (c *cli) requireUser() error {
	if c.cfg.UserID == "" {
		return fmt.Errorf("no user id: set user_id in %s, CONVO_USER_ID or --user", profile.ConfigPath())
	}
	return nil
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func printMessage(m chat.Message) {
	name := m.SenderName
	if name == "" {
		name = m.SenderID
	}
	var flags []string
	if m.Edited {
		flags = append(flags, "edited")
	}
	if m.IsRead {
		flags = append(flags, "read")
	}
	suffix := ""
	if len(flags) > 0 {
		suffix = " (" + strings.Join(flags, ", ") + ")"
	}
	fmt.Printf("%s  %-26s %s: %s%s\n", m.CreatedAt.Local().Format("2006-01-02 15:04:05"), m.ID, name, m.Content, suffix)
}
