package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/convo/internal/backend"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/conversation"
	"github.com/matheus3301/convo/internal/lock"
	"github.com/matheus3301/convo/internal/profile"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/remote/grpcch"
	"github.com/matheus3301/convo/internal/wire"
)

func (c *cli) cmdStatus(ctx context.Context) error {
	out := map[string]any{
		"profile": c.profile,
		"backend": c.cfg.Backend,
		"user_id": c.cfg.UserID,
		"config":  profile.ConfigPath(),
	}
	owner, err := lock.Holder(profile.Dir(c.profile))
	if err != nil {
		return err
	}
	if owner != nil {
		out["daemon_pid"] = owner.PID
		out["daemon_since"] = owner.Since
	}
	profiles, err := profile.List()
	if err != nil {
		return err
	}
	out["profiles"] = profiles

	sock := profile.SocketPath(c.profile)
	if owner != nil && owner.Socket != "" {
		sock = owner.Socket
	}
	if owner != nil && backend.ProbeDaemon(sock) {
		gc, err := grpcch.Dial(sock, grpcch.Options{}, c.logger)
		if err != nil {
			return err
		}
		defer func() { _ = gc.Close() }()
		st, err := gc.Status(ctx)
		if err != nil {
			return err
		}
		out["daemon"] = st.AsMap()
	}

	if c.jsonOut {
		outputJSON(out)
		return nil
	}
	fmt.Printf("Profile: %s\n", c.profile)
	fmt.Printf("Backend: %s\n", c.cfg.Backend)
	fmt.Printf("User:    %s\n", c.cfg.UserID)
	if len(profiles) > 0 {
		fmt.Printf("Known:   %s\n", strings.Join(profiles, ", "))
	}
	if owner == nil {
		fmt.Println("Daemon:  not running")
		return nil
	}
	fmt.Printf("Daemon:  running (pid %d, since %s)\n", owner.PID, owner.Since.Local().Format(time.DateTime))
	if st, ok := out["daemon"].(map[string]any); ok {
		fmt.Printf("Serving: %v\n", st["backend"])
		fmt.Printf("Link:    %v\n", st["link"])
		fmt.Printf("Streams: %v\n", st["streams"])
		fmt.Printf("Uptime:  %vms\n", st["uptime_ms"])
	}
	return nil
}

func (c *cli) cmdConversations(ctx context.Context) error {
	if err := c.requireUser(); err != nil {
		return err
	}
	ch, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	convs, err := ch.ListConversations(ctx, c.cfg.UserID)
	if err != nil {
		return err
	}
	if c.jsonOut {
		outputJSON(convs)
		return nil
	}
	if len(convs) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}
	for _, cv := range convs {
		var names []string
		for _, p := range cv.Participants {
			if p.UserID == c.cfg.UserID {
				continue
			}
			if p.Username != "" {
				names = append(names, p.Username)
			} else {
				names = append(names, p.UserID)
			}
		}
		last := ""
		if !cv.LastAt.IsZero() {
			last = cv.LastAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-20s %-24s %-16s %s\n", cv.ID, strings.Join(names, ", "), last, cv.LastMessage)
	}
	return nil
}

// cmdNew creates a conversation. The caller is always a participant.
func (c *cli) cmdNew(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errors.New("usage: convoctl new [-name n] <id> <user[:name]>...")
	}
	if err := c.requireUser(); err != nil {
		return err
	}

	conv := chat.Conversation{ID: fs.Arg(0), Name: *name}
	conv.Participants = append(conv.Participants, chat.Participant{UserID: c.cfg.UserID, Username: c.cfg.Username})
	for _, arg := range fs.Args()[1:] {
		id, username, _ := strings.Cut(arg, ":")
		if id == "" || id == c.cfg.UserID {
			continue
		}
		conv.Participants = append(conv.Participants, chat.Participant{UserID: id, Username: username})
	}

	ch, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	dir, ok := ch.(remote.Directory)
	if !ok {
		return fmt.Errorf("backend %s cannot create conversations", c.cfg.Backend)
	}
	if err := dir.EnsureConversation(ctx, conv); err != nil {
		return err
	}
	fmt.Printf("Conversation %s ready with %d participants.\n", conv.ID, len(conv.Participants))
	return nil
}

func (c *cli) cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("limit", c.cfg.PageSize, "number of messages")
	beforeFlag := fs.String("before", "", "only messages older than this RFC 3339 time")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: convoctl history [-limit n] [-before t] <conv>")
	}
	var before *time.Time
	if *beforeFlag != "" {
		t, err := time.Parse(time.RFC3339Nano, *beforeFlag)
		if err != nil {
			return fmt.Errorf("before: %w", err)
		}
		before = &t
	}

	ch, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	page, err := ch.FetchPage(ctx, fs.Arg(0), before, *limit)
	if err != nil {
		return err
	}
	if c.jsonOut {
		outputJSON(page)
		return nil
	}
	for i := len(page) - 1; i >= 0; i-- {
		printMessage(page[i])
	}
	return nil
}

// withSession opens a headless session on the conversation for the duration of fn.
func (c *cli) withSession(ctx context.Context, convID string, fn func(*conversation.Session) error) error {
	if err := c.requireUser(); err != nil {
		return err
	}
	ch, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	cfg := conversation.FromConfig(c.cfg, convID)
	// A one-shot command has no use for periodic refreshes.
	cfg.RefreshInterval = 0
	s, err := conversation.Open(ctx, ch, conversation.Headless(), c.bus, cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close(context.Background()) }()
	return fn(s)
}

func (c *cli) cmdSend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: convoctl send <conv> <text>")
	}
	content := strings.Join(args[1:], " ")
	return c.withSession(ctx, args[0], func(s *conversation.Session) error {
		failed, unsubscribe := c.bus.Subscribe("notice.send_failed", 4)
		defer unsubscribe()

		pending, err := s.Send(ctx, content)
		if err != nil {
			return err
		}
		m, err := awaitConfirmation(ctx, s, pending, failed)
		if err != nil {
			return err
		}
		if c.jsonOut {
			outputJSON(m)
			return nil
		}
		printMessage(m)
		return nil
	})
}

// awaitConfirmation waits until the provisional record is replaced by the stored one
// or the session gives up on it.
func awaitConfirmation(ctx context.Context, s *conversation.Session, pending chat.Message, failed <-chan bus.Event) (chat.Message, error) {
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case evt := <-failed:
			if n, ok := evt.Payload.(conversation.Notice); ok && n.MessageID == pending.ID {
				if n.Err != nil {
					return chat.Message{}, fmt.Errorf("%s: %w", n.Text, n.Err)
				}
				return chat.Message{}, errors.New(n.Text)
			}
		case <-tick.C:
			st, err := s.State(ctx)
			if err != nil {
				return chat.Message{}, err
			}
			if m, ok := confirmedFor(st.Messages, pending); ok {
				return m, nil
			}
		case <-ctx.Done():
			return chat.Message{}, ctx.Err()
		}
	}
}

// confirmedFor finds the stored record that replaced pending, once pending is gone.
func confirmedFor(msgs []chat.Message, pending chat.Message) (chat.Message, bool) {
	for _, m := range msgs {
		if m.ID == pending.ID {
			return chat.Message{}, false
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Settled() && m.SenderID == pending.SenderID && m.Content == pending.Content {
			return m, true
		}
	}
	return chat.Message{}, false
}

func (c *cli) cmdEdit(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: convoctl edit <conv> <msg-id> <text>")
	}
	return c.withSession(ctx, args[0], func(s *conversation.Session) error {
		if err := s.Edit(ctx, args[1], strings.Join(args[2:], " ")); err != nil {
			return err
		}
		fmt.Printf("Edited %s.\n", args[1])
		return nil
	})
}

func (c *cli) cmdDelete(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: convoctl delete <conv> <msg-id>")
	}
	return c.withSession(ctx, args[0], func(s *conversation.Session) error {
		if err := s.Delete(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s.\n", args[1])
		return nil
	})
}

// cmdWatch prints pushed events as they arrive.
func (c *cli) cmdWatch(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: convoctl watch <conv>")
	}
	ch, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	msgs, err := ch.Subscribe(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = msgs.Close() }()
	typing, err := ch.SubscribeTyping(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = typing.Close() }()

	fmt.Printf("Watching %s. Press Ctrl-C to stop.\n", args[0])
	for {
		var evt chat.Event
		select {
		case evt = <-msgs.Events():
		case evt = <-typing.Events():
		case <-ctx.Done():
			return nil
		}
		if c.jsonOut {
			outputJSON(wire.EncodeEvent(evt).AsMap())
			continue
		}
		printEvent(evt)
	}
}

func printEvent(evt chat.Event) {
	switch evt.Kind {
	case chat.EventInsert:
		printMessage(evt.Message)
	case chat.EventUpdate:
		var parts []string
		if evt.Patch.Content != nil {
			parts = append(parts, fmt.Sprintf("content=%q", *evt.Patch.Content))
		}
		if evt.Patch.IsRead != nil {
			parts = append(parts, fmt.Sprintf("read=%t", *evt.Patch.IsRead))
		}
		fmt.Printf("~ %s %s\n", evt.ID, strings.Join(parts, " "))
	case chat.EventDelete:
		fmt.Printf("- %s\n", evt.ID)
	case chat.EventTyping:
		verb := "stopped typing"
		if evt.Typing.IsTyping {
			verb = "is typing"
		}
		fmt.Printf("* %s %s\n", evt.Typing.UserID, verb)
	case chat.EventLink:
		if evt.Err != nil {
			fmt.Printf("! link %s: %v\n", evt.Link, evt.Err)
		} else {
			fmt.Printf("! link %s\n", evt.Link)
		}
	}
}
