// Package conversation runs one open conversation: a single goroutine owns the
// timeline, reconciliation, pagination and presence state, and every network
// result is posted back to it.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/outbox"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/presence"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/status"
	intsync "github.com/matheus3301/convo/internal/sync"
	"github.com/matheus3301/convo/internal/timeline"
	"go.uber.org/zap"
)

// Session is one open conversation.
type Session struct {
	cfg    Config
	ch     remote.Channel
	view   View
	bus    *bus.Bus
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan func()
	done   chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error

	sender    *outbox.Sender
	typing    *presence.Publisher
	link      *status.Machine
	msgSub    remote.Subscription
	typingSub remote.Subscription

	// Owned by the loop goroutine.
	active     bool
	tl         *timeline.Timeline
	engine     *intsync.Engine
	pager      *pager.Controller
	roster     *presence.Roster
	refreshing bool
	expiry     *time.Timer
}

// Open subscribes to the conversation, loads the newest page and starts the session loop.
func Open(ctx context.Context, ch remote.Channel, view View, b *bus.Bus, cfg Config, logger *zap.Logger) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if view == nil {
		view = Headless()
	}
	if b == nil {
		b = bus.New()
	}
	logger = logger.With(zap.String("conversation", cfg.ConversationID))

	tl := timeline.New()
	s := &Session{
		cfg:    cfg,
		ch:     ch,
		view:   view,
		bus:    b,
		logger: logger,
		ops:    make(chan func(), 256),
		done:   make(chan struct{}),
		link:   status.NewMachine(b, cfg.ConversationID),
		active: true,
		tl:     tl,
		engine: intsync.NewEngine(tl, intsync.Options{
			SelfID:      cfg.SelfID,
			SelfName:    cfg.SelfName,
			MatchWindow: cfg.MatchWindow,
			EditWindow:  cfg.EditWindow,
			Now:         cfg.Now,
		}, logger),
		pager:  pager.New(tl, cfg.PageSize, cfg.TopThreshold),
		roster: presence.NewRoster(cfg.SelfID, 2*cfg.Heartbeat),
	}

	// Subscriptions live as long as the session, not the caller's context.
	s.ctx, s.cancel = context.WithCancel(context.Background())
	msgSub, err := ch.Subscribe(s.ctx, cfg.ConversationID)
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("subscribe messages: %w", err)
	}
	typingSub, err := ch.SubscribeTyping(s.ctx, cfg.ConversationID)
	if err != nil {
		_ = msgSub.Close()
		s.cancel()
		return nil, fmt.Errorf("subscribe typing: %w", err)
	}
	page, err := ch.FetchPage(ctx, cfg.ConversationID, nil, cfg.PageSize)
	if err != nil {
		_ = msgSub.Close()
		_ = typingSub.Close()
		s.cancel()
		return nil, fmt.Errorf("fetch initial page: %w", err)
	}
	typingRecs, err := ch.FetchTyping(ctx, cfg.ConversationID)
	if err != nil {
		// Presence is advisory; the subscription fills it in.
		logger.Warn("initial typing fetch failed", zap.Error(err))
	}

	s.msgSub, s.typingSub = msgSub, typingSub
	s.sender = outbox.NewSender(ch, b, s.onSendResult, cfg.CallTimeout, logger)
	s.typing = presence.NewPublisher(s.publishTyping, cfg.TypingTimeout, cfg.Heartbeat, logger)

	s.pager.Initial(page)
	s.roster.Resync(typingRecs)
	_ = s.link.Transition(status.Live)

	s.sender.Start(s.ctx)
	go s.run()
	s.post(func() {
		s.render(Frame{Scroll: ScrollBottom, Initial: true})
		s.markConversationRead()
		s.scheduleExpiry()
	})
	s.pump(msgSub)
	s.pump(typingSub)

	logger.Info("conversation opened", zap.Int("messages", tl.Len()), zap.Bool("has_more_older", s.pager.HasMoreOlder()))
	return s, nil
}

func (s *Session) run() {
	defer close(s.done)

	var tick <-chan time.Time
	if s.cfg.RefreshInterval > 0 {
		ticker := time.NewTicker(s.cfg.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case op := <-s.ops:
			op()
		case <-tick:
			s.refresh()
		case <-s.ctx.Done():
			return
		}
	}
}

// pump forwards subscription events onto the loop.
func (s *Session) pump(sub remote.Subscription) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case evt := <-sub.Events():
				s.post(func() {
					if s.active {
						s.handleEvent(evt)
					}
				})
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// post queues fn on the loop. It returns false once the session has stopped.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.ctx.Done():
		return false
	default:
	}
	select {
	case s.ops <- fn:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// call runs fn on the loop and waits for it.
func (s *Session) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !s.post(func() {
		if !s.active {
			result <- chat.ErrClosed
			return
		}
		result <- fn()
	}) {
		return chat.ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		return chat.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// async runs op off the loop and posts then back to it. then is skipped once the
// session is no longer active.
func (s *Session) async(op func(ctx context.Context) error, then func(error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CallTimeout)
		err := op(ctx)
		cancel()
		s.post(func() {
			if s.active {
				then(err)
			}
		})
	}()
}

func (s *Session) publishTyping(ctx context.Context, isTyping bool, at time.Time) error {
	return s.ch.PublishTyping(ctx, chat.TypingRecord{
		ConversationID: s.cfg.ConversationID,
		UserID:         s.cfg.SelfID,
		IsTyping:       isTyping,
		UpdatedAt:      at,
	})
}

// render builds a frame from the loop-owned state and hands it to the view.
func (s *Session) render(f Frame) {
	f.ConversationID = s.cfg.ConversationID
	f.Messages = s.tl.Snapshot()
	f.Typing = s.roster.Typing(s.cfg.Now())
	f.HasMoreOlder = s.pager.HasMoreOlder()
	f.LoadingOlder = s.pager.InFlight()
	f.Link = s.link.Current()
	s.view.Render(f)
}

func (s *Session) notify(kind string, n Notice) {
	n.ConversationID = s.cfg.ConversationID
	s.bus.Publish(bus.Event{Kind: "notice." + kind, Timestamp: time.Now(), Payload: n})
}

// Close publishes a pending typing stop, tears down subscriptions and stops the loop.
// Results of in-flight calls are discarded.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		deactivated := make(chan struct{})
		if s.post(func() {
			s.active = false
			if s.expiry != nil {
				s.expiry.Stop()
			}
			close(deactivated)
		}) {
			select {
			case <-deactivated:
			case <-s.done:
			}
		}

		s.closeErr = s.typing.Close(ctx)
		s.sender.Stop()
		_ = s.msgSub.Close()
		_ = s.typingSub.Close()
		s.cancel()
		<-s.done
		s.wg.Wait()
		_ = s.link.Transition(status.Closed)
		s.logger.Info("conversation closed")
	})
	return s.closeErr
}

// Done is closed once the session loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// ID returns the conversation id.
func (s *Session) ID() string { return s.cfg.ConversationID }
