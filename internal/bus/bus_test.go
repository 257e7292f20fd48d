package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("link.", 10)
	defer unsub()

	b.Publish(Event{Kind: "link.status_changed", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "link.status_changed" {
			t.Errorf("got kind %q, want link.status_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("notice.", 10)
	defer unsub()

	b.Publish(Event{Kind: "link.status_changed"})
	b.Publish(Event{Kind: "notice.reconnected"})

	select {
	case evt := <-ch:
		if evt.Kind != "notice.reconnected" {
			t.Errorf("got kind %q, want notice.reconnected", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("link.", 10)
	unsub()

	b.Publish(Event{Kind: "link.status_changed"})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
	if b.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", b.Dropped())
	}
}

func TestPublishCountsDeliveries(t *testing.T) {
	b := New()
	ns := Namespace("conversation", "c1")
	_, unsubA := b.Subscribe(ns, 1)
	defer unsubA()
	_, unsubB := b.Subscribe("conversation.", 1)
	defer unsubB()
	_, unsubC := b.Subscribe(Namespace("conversation", "c2"), 1)
	defer unsubC()

	kind := Kind(ns, "insert")
	if kind != "conversation.c1.insert" {
		t.Fatalf("Kind = %q", kind)
	}
	if got := b.Subscribers(kind); got != 2 {
		t.Errorf("Subscribers = %d, want 2", got)
	}
	if got := b.Publish(Event{Kind: kind}); got != 2 {
		t.Errorf("Publish delivered to %d, want 2", got)
	}
}

func TestUnsubscribeTwice(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("x.", 1)
	unsub()
	unsub()
	if b.Subscribers("x.y") != 0 {
		t.Error("subscription still registered")
	}
}
