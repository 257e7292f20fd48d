package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/config"
	"github.com/matheus3301/convo/internal/profile"
	"github.com/matheus3301/convo/internal/remote"
)

func roundTrip(t *testing.T, ch remote.Channel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dir, ok := ch.(remote.Directory)
	if !ok {
		t.Fatalf("%T does not create conversations", ch)
	}
	if err := dir.EnsureConversation(ctx, chat.Conversation{ID: "c1", Participants: []chat.Participant{{UserID: "alice", Username: "Alice"}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := ch.InsertMessage(ctx, "c1", "alice", "hello"); err != nil {
		t.Fatal(err)
	}
	page, err := ch.FetchPage(ctx, "c1", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Content != "hello" {
		t.Errorf("page = %+v", page)
	}
}

func TestOpenSQLUsesProfileDatabase(t *testing.T) {
	t.Setenv("CONVO_HOME", t.TempDir())
	cfg := config.Default()

	ch, err := Open(context.Background(), Options{Profile: "p1", Config: cfg})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = ch.Close() }()
	roundTrip(t, ch)

	if _, err := os.Stat(profile.DBPath("p1")); err != nil {
		t.Errorf("profile database missing: %v", err)
	}
}

func TestOpenSQLExplicitPath(t *testing.T) {
	cfg := config.Default()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "shared.db")

	ch, err := Open(context.Background(), Options{Profile: "p1", Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ch.Close() }()
	roundTrip(t, ch)

	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		t.Errorf("database_path not used: %v", err)
	}
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Backend = config.BackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	ch, err := Open(context.Background(), Options{Profile: "p1", Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ch.Close() }()
	roundTrip(t, ch)
}

func TestOpenDaemonWithoutAutoStart(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "convo-backend-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	cfg := config.Default()
	cfg.Backend = config.BackendDaemon
	_, err = Open(context.Background(), Options{Profile: "p1", Config: cfg, SocketPath: filepath.Join(dir, "none.sock")})
	if err == nil {
		t.Fatal("expected error when no daemon answers")
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = "carrier-pigeon"
	if _, err := Open(context.Background(), Options{Profile: "p1", Config: cfg}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestWaitForDaemonTimesOut(t *testing.T) {
	start := time.Now()
	if WaitForDaemon(filepath.Join(t.TempDir(), "none.sock"), 400*time.Millisecond) {
		t.Fatal("WaitForDaemon() = true with no daemon")
	}
	if time.Since(start) < 400*time.Millisecond {
		t.Error("WaitForDaemon() returned before the timeout")
	}
}
