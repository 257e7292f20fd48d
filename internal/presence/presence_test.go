package presence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/chat"
)

type recorder struct {
	mu     sync.Mutex
	values []bool
}

func (r *recorder) publish(_ context.Context, isTyping bool, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, isTyping)
	return nil
}

func (r *recorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.values...)
}

func (r *recorder) waitFor(t *testing.T, n int) []bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d publishes, got %v", n, r.snapshot())
	return nil
}

func TestPublisherPublishesOnlyOnChange(t *testing.T) {
	rec := &recorder{}
	p := NewPublisher(rec.publish, time.Minute, time.Minute, nil)

	text := ""
	for i := 0; i < 50; i++ {
		text += "a"
		p.Input(text)
		time.Sleep(4 * time.Millisecond)
	}
	rec.waitFor(t, 1)

	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := rec.snapshot()
	if fmt.Sprint(got) != "[true false]" {
		t.Errorf("publishes = %v, want [true false]", got)
	}
}

func TestPublisherClearingInputStops(t *testing.T) {
	rec := &recorder{}
	p := NewPublisher(rec.publish, time.Minute, time.Minute, nil)
	defer p.Close(context.Background())

	p.Input("h")
	rec.waitFor(t, 1)
	p.Input("")
	got := rec.waitFor(t, 2)
	if got[1] {
		t.Errorf("second publish = true, want false")
	}
	if p.Typing() {
		t.Error("Typing() = true after clearing input")
	}
}

func TestPublisherIdleTimeout(t *testing.T) {
	rec := &recorder{}
	p := NewPublisher(rec.publish, 50*time.Millisecond, time.Minute, nil)
	defer p.Close(context.Background())

	p.Input("hello")
	got := rec.waitFor(t, 2)
	if fmt.Sprint(got) != "[true false]" {
		t.Errorf("publishes = %v, want [true false]", got)
	}
}

func TestPublisherKeystrokesRearmIdleTimer(t *testing.T) {
	rec := &recorder{}
	p := NewPublisher(rec.publish, 150*time.Millisecond, time.Minute, nil)
	defer p.Close(context.Background())

	text := ""
	for i := 0; i < 10; i++ {
		text += "x"
		p.Input(text)
		time.Sleep(30 * time.Millisecond)
	}
	if got := rec.snapshot(); fmt.Sprint(got) != "[true]" {
		t.Errorf("publishes while typing = %v, want [true]", got)
	}
}

func TestPublisherHeartbeat(t *testing.T) {
	rec := &recorder{}
	p := NewPublisher(rec.publish, time.Minute, 30*time.Millisecond, nil)
	defer p.Close(context.Background())

	p.Input("x")
	got := rec.waitFor(t, 3)
	for i, v := range got {
		if !v {
			t.Fatalf("publish %d = false while still typing", i)
		}
	}
}

func TestPublisherCloseWhileIdlePublishesNothing(t *testing.T) {
	rec := &recorder{}
	p := NewPublisher(rec.publish, time.Minute, time.Minute, nil)
	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	p.Input("late")
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("publishes = %v, want none", got)
	}
}

func TestTimerCancelAndRearm(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	var tm *Timer
	tm = NewTimer(40*time.Millisecond, func(token uint64) {
		if tm.Claim(token) {
			mu.Lock()
			fired++
			mu.Unlock()
		}
	})

	tm.Arm()
	tm.Cancel()
	time.Sleep(80 * time.Millisecond)
	mu.Lock()
	if fired != 0 {
		t.Errorf("cancelled timer fired %d times", fired)
	}
	mu.Unlock()

	tm.Arm()
	time.Sleep(10 * time.Millisecond)
	tm.Arm()
	time.Sleep(120 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Errorf("re-armed timer fired %d times, want 1", fired)
	}
	if tm.Armed() {
		t.Error("timer still armed after firing")
	}
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func typing(user string, on bool, at time.Time) chat.TypingRecord {
	return chat.TypingRecord{ConversationID: "c1", UserID: user, IsTyping: on, UpdatedAt: at}
}

func TestRosterLastWriteWins(t *testing.T) {
	r := NewRoster("A", 10*time.Second)

	if !r.Apply(typing("B", true, t0.Add(2*time.Second))) {
		t.Error("first record should change the roster")
	}
	if r.Apply(typing("B", false, t0.Add(time.Second))) {
		t.Error("older record was applied")
	}
	if !r.IsTyping("B", t0.Add(3*time.Second)) {
		t.Error("B should still be typing")
	}
	if r.Apply(typing("B", true, t0.Add(2*time.Second))) {
		t.Error("duplicate record reported a change")
	}
	if r.Apply(typing("B", true, t0.Add(4*time.Second))) {
		t.Error("refresh of the same value reported a change")
	}
	if !r.Apply(typing("B", false, t0.Add(5*time.Second))) {
		t.Error("newer stop was not applied")
	}
}

func TestRosterIgnoresSelf(t *testing.T) {
	r := NewRoster("A", 10*time.Second)
	if r.Apply(typing("A", true, t0)) {
		t.Error("own record changed the roster")
	}
	if len(r.Typing(t0)) != 0 {
		t.Error("own record is listed as typing")
	}
}

func TestRosterExpiresLazily(t *testing.T) {
	r := NewRoster("A", 10*time.Second)
	r.Apply(typing("B", true, t0))
	r.Apply(typing("C", true, t0.Add(5*time.Second)))

	if got := fmt.Sprint(r.Typing(t0.Add(9 * time.Second))); got != "[B C]" {
		t.Errorf("Typing at +9s = %s, want [B C]", got)
	}
	if got := fmt.Sprint(r.Typing(t0.Add(11 * time.Second))); got != "[C]" {
		t.Errorf("Typing at +11s = %s, want [C]", got)
	}
	next, ok := r.NextExpiry(t0.Add(11 * time.Second))
	if !ok || !next.Equal(t0.Add(15*time.Second)) {
		t.Errorf("NextExpiry = %v %v, want +15s", next, ok)
	}
}

func TestRosterResync(t *testing.T) {
	r := NewRoster("A", 10*time.Second)
	r.Apply(typing("B", true, t0.Add(5*time.Second)))
	r.Apply(typing("C", true, t0))

	r.Resync([]chat.TypingRecord{
		typing("B", false, t0.Add(time.Second)),
		typing("D", true, t0.Add(2*time.Second)),
	})

	now := t0.Add(6 * time.Second)
	if got := fmt.Sprint(r.Typing(now)); got != "[B D]" {
		t.Errorf("Typing after resync = %s, want [B D]", got)
	}
}
