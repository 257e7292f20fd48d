package outbox

import (
	"context"
	"time"

	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/metrics"
	"go.uber.org/zap"
)

// Inserter stores a message in the remote store.
type Inserter interface {
	InsertMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error)
}

// Job is one queued send.
type Job struct {
	ProvisionalID  string
	ConversationID string
	SenderID       string
	Content        string
	Attempt        int
	Queued         time.Time
}

// Result reports how a job ended.
type Result struct {
	Job     Job
	Message chat.Message
	Err     error
}

// Sender drains queued sends one at a time so confirmations arrive in send order.
type Sender struct {
	ins     Inserter
	bus     *bus.Bus
	report  func(Result)
	timeout time.Duration
	logger  *zap.Logger
	queue   chan Job
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSender creates a sender. report is called from the sender goroutine for every job.
func NewSender(ins Inserter, b *bus.Bus, report func(Result), timeout time.Duration, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Sender{
		ins:     ins,
		bus:     b,
		report:  report,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan Job, 64),
		done:    make(chan struct{}),
	}
}

// Start begins draining the queue.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop and waits for it to exit. Queued jobs are dropped.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Enqueue queues a job. It returns false when the queue is full.
func (s *Sender) Enqueue(job Job) bool {
	if job.Queued.IsZero() {
		job.Queued = time.Now()
	}
	select {
	case s.queue <- job:
		return true
	default:
		return false
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case job := <-s.queue:
			s.process(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) process(ctx context.Context, job Job) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	msg, err := s.ins.InsertMessage(callCtx, job.ConversationID, job.SenderID, job.Content)
	cancel()
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		metrics.SendsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("failed to send message", zap.Error(err),
			zap.String("provisional_id", job.ProvisionalID), zap.Int("attempt", job.Attempt))
		s.publish("message.send_failed", map[string]string{
			"provisional_id": job.ProvisionalID,
			"error":          err.Error(),
		})
		s.report(Result{Job: job, Err: err})
		return
	}

	metrics.SendsTotal.WithLabelValues("confirmed").Inc()
	metrics.SendLatency.Observe(time.Since(job.Queued).Seconds())
	s.logger.Info("message sent", zap.String("provisional_id", job.ProvisionalID), zap.String("msg_id", msg.ID))
	s.publish("message.send_ack", map[string]string{
		"provisional_id": job.ProvisionalID,
		"msg_id":         msg.ID,
	})
	s.report(Result{Job: job, Message: msg})
}

func (s *Sender) publish(kind string, payload map[string]string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
