package presence

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/convo/internal/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultIdleTimeout ends typing after this long without a keystroke.
	DefaultIdleTimeout = 10 * time.Second
	// DefaultHeartbeat is how often an ongoing typing state is re-published.
	DefaultHeartbeat = 5 * time.Second
)

// PublishFunc sends the local typing state. at is when the state was decided.
type PublishFunc func(ctx context.Context, isTyping bool, at time.Time) error

// Publisher turns composer input into typing publishes. It publishes only when the
// typing value changes, re-publishes an ongoing state every heartbeat, and stops
// after an idle timeout.
type Publisher struct {
	mu      sync.Mutex
	typing  bool
	closed  bool
	publish PublishFunc
	idle    *Timer
	beat    *Timer
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewPublisher creates a publisher. Zero durations take the defaults.
func NewPublisher(publish PublishFunc, idleTimeout, heartbeat time.Duration, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	p := &Publisher{publish: publish, now: time.Now, logger: logger}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.idle = NewTimer(idleTimeout, p.idleExpired)
	p.beat = NewTimer(heartbeat, p.heartbeat)
	return p
}

// Typing reports the last published state.
func (p *Publisher) Typing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typing
}

// Input records the composer contents after a keystroke.
func (p *Publisher) Input(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	isTyping := len(text) > 0
	if isTyping {
		p.idle.Arm()
	} else {
		p.idle.Cancel()
	}
	p.setLocked(isTyping)
}

func (p *Publisher) idleExpired(token uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.idle.Claim(token) {
		return
	}
	p.setLocked(false)
}

func (p *Publisher) heartbeat(token uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.beat.Claim(token) || !p.typing {
		return
	}
	p.sendAsyncLocked(true)
	p.beat.Arm()
}

func (p *Publisher) setLocked(isTyping bool) {
	if isTyping == p.typing {
		return
	}
	p.typing = isTyping
	if isTyping {
		p.beat.Arm()
	} else {
		p.beat.Cancel()
	}
	p.sendAsyncLocked(isTyping)
}

func (p *Publisher) sendAsyncLocked(isTyping bool) {
	at := p.now()
	metrics.TypingPublishes.WithLabelValues(strconv.FormatBool(isTyping)).Inc()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.publish(p.ctx, isTyping, at); err != nil && p.ctx.Err() == nil {
			p.logger.Warn("typing publish failed", zap.Error(err), zap.Bool("typing", isTyping))
		}
	}()
}

// Close stops the timers and, if the user was typing, publishes the stop before returning.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.idle.Cancel()
	p.beat.Cancel()
	wasTyping := p.typing
	p.typing = false
	p.mu.Unlock()

	var err error
	if wasTyping {
		metrics.TypingPublishes.WithLabelValues("false").Inc()
		err = p.publish(ctx, false, p.now())
	}
	p.cancel()
	p.wg.Wait()
	return err
}
