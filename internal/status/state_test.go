package status

import (
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil, "c1")
	if m.Current() != Connecting {
		t.Errorf("initial state = %s, want CONNECTING", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{Live}},
		{[]State{Reconnecting}},
		{[]State{Closed}},
		{[]State{Live, Reconnecting, Live}},
		{[]State{Live, Reconnecting, Closed}},
		{[]State{Live, Closed}},
	}
	for _, tt := range tests {
		name := string(Connecting)
		for _, s := range tt.path {
			name += "->" + string(s)
		}
		t.Run(name, func(t *testing.T) {
			m := NewMachine(nil, "c1")
			for _, s := range tt.path {
				if err := m.Transition(s); err != nil {
					t.Fatalf("Transition(%s) error = %v", s, err)
				}
			}
			if m.Current() != tt.path[len(tt.path)-1] {
				t.Errorf("state = %s", m.Current())
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	m := NewMachine(nil, "c1")
	if err := m.Transition(Connecting); err == nil {
		t.Error("Transition(CONNECTING -> CONNECTING) should fail")
	}
	if err := m.Transition(Closed); err != nil {
		t.Fatal(err)
	}
	for _, to := range []State{Connecting, Live, Reconnecting} {
		if err := m.Transition(to); err == nil {
			t.Errorf("Transition(CLOSED -> %s) should fail", to)
		}
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("link.", 10)
	defer unsub()

	m := NewMachine(b, "c1")
	if err := m.Transition(Live); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
		}
		if change.Scope != "c1" || change.From != Connecting || change.To != Live {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for link.status_changed")
	}
}
