package grpcch

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"

	"github.com/matheus3301/convo/internal/api"
	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/remote/sqlch"
	"github.com/matheus3301/convo/internal/status"
	"github.com/matheus3301/convo/internal/wire"
)

type daemon struct {
	t       *testing.T
	socket  string
	backend *sqlch.Channel
	svc     *api.ChannelService
	srv     *grpc.Server
}

func (d *daemon) serve() {
	d.t.Helper()
	lis, err := net.Listen("unix", d.socket)
	if err != nil {
		d.t.Fatal(err)
	}
	d.srv = grpc.NewServer()
	wire.RegisterChannelServer(d.srv, d.svc)
	go func() { _ = d.srv.Serve(lis) }()
}

// startDaemon serves a SQLite-backed channel on a Unix socket.
func startDaemon(t *testing.T) *daemon {
	t.Helper()
	// Short path to stay under the Unix socket path limit.
	dir, err := os.MkdirTemp("/tmp", "convo-grpcch-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	b := bus.New()
	backend, err := sqlch.Open(filepath.Join(dir, "convo.db"), b, sqlch.Options{PollInterval: 10 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	if err := backend.EnsureConversation(context.Background(), chat.Conversation{
		ID:           "c1",
		Participants: []chat.Participant{{UserID: "alice", Username: "Alice"}, {UserID: "bob", Username: "Bob"}},
	}); err != nil {
		t.Fatal(err)
	}

	d := &daemon{
		t:       t,
		socket:  filepath.Join(dir, "d.sock"),
		backend: backend,
		svc:     api.NewChannelService("test", "sqlite", backend, status.NewMachine(b, "daemon"), nil),
	}
	d.serve()
	t.Cleanup(func() { d.srv.Stop() })
	return d
}

func dial(t *testing.T, d *daemon) *Channel {
	t.Helper()
	c, err := Dial(d.socket, Options{MinBackoff: 20 * time.Millisecond, MaxBackoff: 100 * time.Millisecond}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func next(t *testing.T, sub remote.Subscription) chat.Event {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return chat.Event{}
	}
}

func TestRoundTripThroughDaemon(t *testing.T) {
	d := startDaemon(t)
	c := dial(t, d)
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	m, err := c.InsertMessage(ctx, "c1", "alice", "over the socket")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == "" || m.CreatedAt.IsZero() || m.SenderName != "Alice" {
		t.Fatalf("inserted = %+v", m)
	}
	evt := next(t, sub)
	if evt.Kind != chat.EventInsert || evt.Message.ID != m.ID {
		t.Fatalf("got %+v, want insert", evt)
	}

	page, err := c.FetchPage(ctx, "c1", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != m.ID || !page[0].CreatedAt.Equal(m.CreatedAt) {
		t.Fatalf("page = %+v", page)
	}
	before := m.CreatedAt
	page, err = c.FetchPage(ctx, "c1", &before, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 0 {
		t.Errorf("page before the only message = %d rows, want 0", len(page))
	}

	if err := c.UpdateMessage(ctx, m.ID, chat.ReadPatch()); err != nil {
		t.Fatal(err)
	}
	if evt := next(t, sub); evt.Kind != chat.EventUpdate || evt.Patch.IsRead == nil || !*evt.Patch.IsRead {
		t.Fatalf("got %+v, want read update", evt)
	}
}

func TestErrorsMapBackToDomain(t *testing.T) {
	d := startDaemon(t)
	c := dial(t, d)
	ctx := context.Background()

	if err := c.UpdateMessage(ctx, "missing", chat.ContentPatch("x")); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}
	if _, err := c.InsertMessage(ctx, "c1", "alice", "   "); !errors.Is(err, chat.ErrEmptyContent) {
		t.Errorf("insert blank = %v, want ErrEmptyContent", err)
	}
}

func TestTypingAndConversations(t *testing.T) {
	d := startDaemon(t)
	c := dial(t, d)
	ctx := context.Background()

	sub, err := c.SubscribeTyping(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	at := time.UnixMilli(time.Now().UnixMilli()).UTC()
	if err := c.PublishTyping(ctx, chat.TypingRecord{ConversationID: "c1", UserID: "bob", IsTyping: true, UpdatedAt: at}); err != nil {
		t.Fatal(err)
	}
	evt := next(t, sub)
	if evt.Kind != chat.EventTyping || evt.Typing.UserID != "bob" || !evt.Typing.UpdatedAt.Equal(at) {
		t.Fatalf("got %+v", evt)
	}
	recs, err := c.FetchTyping(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || !recs[0].IsTyping {
		t.Errorf("records = %+v", recs)
	}

	if err := c.EnsureConversation(ctx, chat.Conversation{ID: "c2", Name: "new", Participants: []chat.Participant{{UserID: "bob"}}}); err != nil {
		t.Fatal(err)
	}
	convs, err := c.ListConversations(ctx, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Errorf("bob has %d conversations, want 2", len(convs))
	}

	st, err := c.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if wire.String(st, "profile") != "test" || wire.String(st, "backend") != "sqlite" {
		t.Errorf("status = %v", st)
	}
	if wire.Int(st, "streams") != 1 {
		t.Errorf("streams = %d, want 1", wire.Int(st, "streams"))
	}
}

// TestStreamRecoversAfterDaemonRestart covers a daemon restart under an open
// subscription: the client must see the drop, reattach on its own, and keep
// receiving pushes afterwards.
func TestStreamRecoversAfterDaemonRestart(t *testing.T) {
	d := startDaemon(t)
	c := dial(t, d)
	ctx := context.Background()

	sub, err := c.Subscribe(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	d.srv.Stop()
	evt := next(t, sub)
	if evt.Kind != chat.EventLink || evt.Link != chat.LinkDown {
		t.Fatalf("got %+v, want link down", evt)
	}

	d.serve()
	evt = next(t, sub)
	if evt.Kind != chat.EventLink || evt.Link != chat.LinkUp {
		t.Fatalf("got %+v, want link up", evt)
	}

	m, err := c.InsertMessage(ctx, "c1", "bob", "after restart")
	if err != nil {
		t.Fatal(err)
	}
	evt = next(t, sub)
	if evt.Kind != chat.EventInsert || evt.Message.ID != m.ID {
		t.Fatalf("got %+v, want insert after restart", evt)
	}
}

func TestSubscribeFailsWithoutDaemon(t *testing.T) {
	c, err := Dial(filepath.Join(t.TempDir(), "absent.sock"), Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.Subscribe(ctx, "c1"); err == nil {
		t.Fatal("subscribe succeeded with no daemon")
	}
}
