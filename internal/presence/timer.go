package presence

import (
	"sync"
	"time"
)

// Timer is a re-armable one-shot timer. Each Arm supersedes the previous one.
// fire receives the token of the arm that expired; the owner passes it to Claim
// under its own lock so a fire racing a re-arm is dropped.
type Timer struct {
	mu    sync.Mutex
	d     time.Duration
	fire  func(token uint64)
	t     *time.Timer
	gen   uint64
	armed bool
}

// NewTimer creates a disarmed timer that calls fire d after the latest Arm.
func NewTimer(d time.Duration, fire func(token uint64)) *Timer {
	return &Timer{d: d, fire: fire}
}

// Arm starts or restarts the countdown.
func (t *Timer) Arm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.armed = true
	t.t = time.AfterFunc(t.d, func() { t.expire(gen) })
}

// Cancel stops the countdown. Cancelling a disarmed timer is a no-op.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	t.armed = false
}

// Armed reports whether a countdown is running.
func (t *Timer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

// Claim reports whether token belongs to the latest arm and, if so, disarms the timer.
func (t *Timer) Claim(token uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if token != t.gen || !t.armed {
		return false
	}
	t.armed = false
	return true
}

func (t *Timer) expire(gen uint64) {
	t.mu.Lock()
	live := gen == t.gen && t.armed
	t.mu.Unlock()
	if live {
		t.fire(gen)
	}
}
