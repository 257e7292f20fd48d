package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/timeline"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newEngine(t *testing.T, self string) (*Engine, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: t0}
	e := NewEngine(timeline.New(), Options{SelfID: self, SelfName: self, Now: clk.Now}, nil)
	return e, clk
}

func row(id, sender, content string, at time.Time) chat.Message {
	return chat.Message{ID: id, ConversationID: "c1", SenderID: sender, Content: content, CreatedAt: at}
}

func TestSendConfirmedBeforePush(t *testing.T) {
	e, _ := newEngine(t, "A")
	p, err := e.BeginSend("c1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if p.State != chat.Pending || !p.IsProvisional() {
		t.Fatalf("provisional record = %+v", p)
	}

	confirmed := row("m-42", "A", "hi", t0.Add(50*time.Millisecond))
	if got := e.ConfirmSend(p.ID, confirmed); got != Replaced {
		t.Errorf("ConfirmSend = %s, want replaced", got)
	}
	if got := e.ApplyInsert(confirmed); got != Duplicate {
		t.Errorf("ApplyInsert after confirm = %s, want duplicate", got)
	}

	snap := e.Timeline().Snapshot()
	if len(snap) != 1 || snap[0].ID != "m-42" || snap[0].State != chat.Confirmed {
		t.Fatalf("timeline = %+v, want one confirmed m-42", snap)
	}
}

// TestPushBeforeConfirm covers the push arriving while the insert call is still
// in flight: the push settles the provisional record and the late response is a no-op.
func TestPushBeforeConfirm(t *testing.T) {
	e, _ := newEngine(t, "A")
	p, _ := e.BeginSend("c1", "hi")

	pushed := row("m-42", "A", "hi", t0.Add(50*time.Millisecond))
	if got := e.ApplyInsert(pushed); got != Replaced {
		t.Errorf("ApplyInsert = %s, want replaced", got)
	}
	if got := e.ConfirmSend(p.ID, pushed); got != Duplicate {
		t.Errorf("ConfirmSend after push = %s, want duplicate", got)
	}

	snap := e.Timeline().Snapshot()
	if len(snap) != 1 || snap[0].ID != "m-42" {
		t.Fatalf("timeline = %+v, want only m-42", snap)
	}
	if snap[0].SenderName != "A" {
		t.Errorf("sender name = %q, want inherited from provisional record", snap[0].SenderName)
	}
}

func TestPushFromOtherAppends(t *testing.T) {
	e, _ := newEngine(t, "A")
	e.BeginSend("c1", "hi")

	effect := e.Dispatch(chat.InsertEvent(row("m-1", "B", "hi", t0.Add(time.Second))))
	if effect.Outcome != Appended {
		t.Errorf("outcome = %s, want appended", effect.Outcome)
	}
	if !effect.FromOther("A") {
		t.Error("FromOther = false for a message from B")
	}
	if e.Timeline().Len() != 2 {
		t.Errorf("Len = %d, want 2 (B's message must not settle A's send)", e.Timeline().Len())
	}
}

func TestRapidIdenticalSendsPairInOrder(t *testing.T) {
	e, clk := newEngine(t, "A")
	p1, _ := e.BeginSend("c1", "ok")
	clk.now = clk.now.Add(10 * time.Millisecond)
	p2, _ := e.BeginSend("c1", "ok")

	e.ApplyInsert(row("m-1", "A", "ok", t0.Add(20*time.Millisecond)))
	if e.Timeline().Has(p1.ID) {
		t.Error("first push should settle the oldest provisional record")
	}
	if !e.Timeline().Has(p2.ID) {
		t.Error("second provisional record settled too early")
	}

	e.ConfirmSend(p1.ID, row("m-1", "A", "ok", t0.Add(20*time.Millisecond)))
	e.ConfirmSend(p2.ID, row("m-2", "A", "ok", t0.Add(30*time.Millisecond)))
	e.ApplyInsert(row("m-2", "A", "ok", t0.Add(30*time.Millisecond)))

	snap := e.Timeline().Snapshot()
	if len(snap) != 2 || snap[0].ID != "m-1" || snap[1].ID != "m-2" {
		t.Fatalf("timeline = %+v, want m-1, m-2", snap)
	}
}

func TestFailedSendLifecycle(t *testing.T) {
	e, _ := newEngine(t, "A")
	p, _ := e.BeginSend("c1", "hello")

	if !e.FailSend(p.ID) {
		t.Fatal("FailSend returned false")
	}
	got, _ := e.Timeline().Get(p.ID)
	if got.State != chat.Failed {
		t.Errorf("state = %s, want failed", got.State)
	}

	retried, err := e.Retry(p.ID)
	if err != nil || retried.State != chat.Pending {
		t.Fatalf("Retry = %+v, %v", retried, err)
	}
	e.FailSend(p.ID)
	if err := e.Dismiss(p.ID); err != nil {
		t.Fatal(err)
	}
	if e.Timeline().Len() != 0 {
		t.Error("dismissed record still held")
	}
}

// TestLateConfirmationOfFailedSend covers a send whose response was lost but whose
// row reached the store: the push replaces the failed record.
func TestLateConfirmationOfFailedSend(t *testing.T) {
	e, _ := newEngine(t, "A")
	p, _ := e.BeginSend("c1", "hello")
	e.FailSend(p.ID)

	if got := e.ApplyInsert(row("m-9", "A", "hello", t0.Add(time.Second))); got != Replaced {
		t.Errorf("ApplyInsert = %s, want replaced", got)
	}
	snap := e.Timeline().Snapshot()
	if len(snap) != 1 || snap[0].State != chat.Confirmed {
		t.Fatalf("timeline = %+v, want a single confirmed record", snap)
	}
}

func TestMatchWindowBoundsPairing(t *testing.T) {
	clk := &fakeClock{now: t0}
	e := NewEngine(timeline.New(), Options{SelfID: "A", MatchWindow: time.Minute, Now: clk.Now}, nil)
	e.BeginSend("c1", "hi")

	if got := e.ApplyInsert(row("m-old", "A", "hi", t0.Add(-time.Hour))); got != Appended {
		t.Errorf("row an hour older paired with provisional record: %s", got)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	e, _ := newEngine(t, "A")
	e.ApplyInsert(row("m-1", "B", "hello", t0))

	effect := e.Dispatch(chat.UpdateEvent("m-1", chat.ContentPatch("hello!")))
	if !effect.Changed || effect.Message.Content != "hello!" || !effect.Message.Edited {
		t.Errorf("update effect = %+v", effect)
	}
	if e.Dispatch(chat.UpdateEvent("m-1", chat.ContentPatch("hello!"))).Changed {
		t.Error("repeating an update reported a change")
	}
	if e.Dispatch(chat.UpdateEvent("missing", chat.ReadPatch())).Changed {
		t.Error("update of unknown id reported a change")
	}

	if !e.Dispatch(chat.DeleteEvent("m-1")).Changed {
		t.Error("delete reported no change")
	}
	if e.Dispatch(chat.DeleteEvent("m-1")).Changed {
		t.Error("second delete reported a change")
	}
}

func TestAuthorize(t *testing.T) {
	e, clk := newEngine(t, "A")
	e.ApplyInsert(row("mine", "A", "x", t0))
	e.ApplyInsert(row("theirs", "B", "y", t0))
	p, _ := e.BeginSend("c1", "z")

	tests := []struct {
		name    string
		id      string
		elapsed time.Duration
		want    error
	}{
		{"own message at 14:59", "mine", 14*time.Minute + 59*time.Second, nil},
		{"own message at 15:01", "mine", 15*time.Minute + time.Second, chat.ErrEditWindowExpired},
		{"other user's message", "theirs", time.Minute, chat.ErrNotAuthor},
		{"unknown message", "nope", 0, chat.ErrNotFound},
		{"provisional message", p.ID, 0, chat.ErrNotConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk.now = t0.Add(tt.elapsed)
			_, err := e.Authorize(tt.id)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authorize(%s) = %v, want %v", tt.id, err, tt.want)
			}
		})
	}
}

func TestUnreadFromOthers(t *testing.T) {
	e, _ := newEngine(t, "A")
	e.ApplyInsert(row("m-1", "B", "x", t0))
	e.ApplyInsert(row("m-2", "A", "y", t0.Add(time.Second)))
	read := row("m-3", "B", "z", t0.Add(2*time.Second))
	read.IsRead = true
	e.ApplyInsert(read)

	got := e.UnreadFromOthers()
	if len(got) != 1 || got[0] != "m-1" {
		t.Errorf("UnreadFromOthers = %v, want [m-1]", got)
	}
}

func TestEmptySendRejected(t *testing.T) {
	e, _ := newEngine(t, "A")
	if _, err := e.BeginSend("c1", "   "); !errors.Is(err, chat.ErrEmptyContent) {
		t.Errorf("BeginSend = %v, want ErrEmptyContent", err)
	}
}
