package sync

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/metrics"
	"github.com/matheus3301/convo/internal/timeline"
	"go.uber.org/zap"
)

// Outcome describes how an incoming message landed in the timeline.
type Outcome string

const (
	Duplicate Outcome = "duplicate"
	Replaced  Outcome = "replaced"
	Appended  Outcome = "appended"
	Ignored   Outcome = "ignored"
)

// Options configures an Engine.
type Options struct {
	// SelfID is the local user.
	SelfID string
	// SelfName is attached to provisional records.
	SelfName string
	// MatchWindow bounds how far apart a provisional record and a pushed row may be
	// for the content match to pair them. Zero disables the bound.
	MatchWindow time.Duration
	// EditWindow defaults to chat.EditWindow.
	EditWindow time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// Effect reports what dispatching one event did.
type Effect struct {
	Kind    chat.EventKind
	Outcome Outcome
	// Message is the record as held after the event, when one is held.
	Message chat.Message
	Changed bool
}

// FromOther reports whether the effect inserted a message written by someone else.
func (f Effect) FromOther(self string) bool {
	return f.Kind == chat.EventInsert && f.Outcome != Duplicate && f.Message.SenderID != self
}

// Engine reconciles optimistic local sends with what the store confirms and pushes.
// It owns no goroutine; the conversation loop calls it.
type Engine struct {
	tl          *timeline.Timeline
	self        string
	selfName    string
	matchWindow time.Duration
	editWindow  time.Duration
	now         func() time.Time
	logger      *zap.Logger

	// gen counts changes; touched maps ids to the gen of their last change
	// while reads opened by Mark are outstanding.
	gen     uint64
	touched map[string]uint64
	open    map[uint64]int
}

// NewEngine creates a reconciliation engine over tl.
func NewEngine(tl *timeline.Timeline, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.EditWindow <= 0 {
		opts.EditWindow = chat.EditWindow
	}
	return &Engine{
		tl:          tl,
		self:        opts.SelfID,
		selfName:    opts.SelfName,
		matchWindow: opts.MatchWindow,
		editWindow:  opts.EditWindow,
		now:         opts.Now,
		logger:      logger,
		touched:     make(map[string]uint64),
		open:        make(map[uint64]int),
	}
}

// Timeline returns the store the engine writes to.
func (e *Engine) Timeline() *timeline.Timeline { return e.tl }

// BeginSend appends a pending record for content and returns it.
func (e *Engine) BeginSend(conversationID, content string) (chat.Message, error) {
	if strings.TrimSpace(content) == "" {
		return chat.Message{}, chat.ErrEmptyContent
	}
	m := chat.Message{
		ID:             chat.ProvisionalPrefix + uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       e.self,
		SenderName:     e.selfName,
		Content:        content,
		CreatedAt:      e.now(),
		IsRead:         true,
		State:          chat.Pending,
	}
	e.tl.Append(m)
	return m, nil
}

// ConfirmSend settles the provisional record with the row the store returned.
// It commutes with ApplyInsert of the same row.
func (e *Engine) ConfirmSend(provisionalID string, confirmed chat.Message) Outcome {
	confirmed.State = chat.Confirmed
	e.touch(confirmed.ID)
	if e.tl.Has(confirmed.ID) {
		// The push arrived first and already settled the send.
		e.tl.Remove(provisionalID)
		metrics.Reconciled.WithLabelValues(string(Duplicate)).Inc()
		return Duplicate
	}
	pending, ok := e.tl.Get(provisionalID)
	if !ok {
		e.tl.Append(confirmed)
		metrics.Reconciled.WithLabelValues(string(Appended)).Inc()
		return Appended
	}
	if confirmed.SenderName == "" {
		confirmed.SenderName = pending.SenderName
	}
	e.tl.Replace(provisionalID, confirmed)
	metrics.Reconciled.WithLabelValues(string(Replaced)).Inc()
	return Replaced
}

// FailSend marks a pending record failed. It returns false if the record is gone or settled.
func (e *Engine) FailSend(provisionalID string) bool {
	m, ok := e.tl.Get(provisionalID)
	if !ok || m.State != chat.Pending {
		return false
	}
	return e.tl.Update(provisionalID, func(m chat.Message) chat.Message {
		m.State = chat.Failed
		return m
	})
}

// Retry moves a failed record back to pending and returns it for resending.
func (e *Engine) Retry(id string) (chat.Message, error) {
	m, ok := e.tl.Get(id)
	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	if m.State != chat.Failed {
		return chat.Message{}, chat.ErrNotConfirmed
	}
	m.State = chat.Pending
	e.tl.Update(id, func(chat.Message) chat.Message { return m })
	return m, nil
}

// Dismiss drops a failed record.
func (e *Engine) Dismiss(id string) error {
	m, ok := e.tl.Get(id)
	if !ok {
		return chat.ErrNotFound
	}
	if m.State != chat.Failed {
		return chat.ErrNotConfirmed
	}
	e.tl.Remove(id)
	return nil
}

// Dispatch applies one pushed message event. Typing and link events are not the engine's.
func (e *Engine) Dispatch(evt chat.Event) Effect {
	metrics.PushEvents.WithLabelValues(string(evt.Kind)).Inc()
	switch evt.Kind {
	case chat.EventInsert:
		outcome := e.ApplyInsert(evt.Message)
		held, _ := e.tl.Get(evt.Message.ID)
		return Effect{Kind: evt.Kind, Outcome: outcome, Message: held, Changed: outcome != Duplicate}
	case chat.EventUpdate:
		changed := e.ApplyUpdate(evt.ID, evt.Patch)
		held, _ := e.tl.Get(evt.ID)
		return Effect{Kind: evt.Kind, Message: held, Changed: changed}
	case chat.EventDelete:
		held, _ := e.tl.Get(evt.ID)
		return Effect{Kind: evt.Kind, Message: held, Changed: e.ApplyDelete(evt.ID)}
	default:
		e.logger.Debug("event not handled by engine", zap.String("kind", string(evt.Kind)))
		return Effect{Kind: evt.Kind, Outcome: Ignored}
	}
}

// ApplyInsert reconciles a pushed row: dedup by id, else settle the matching
// provisional record, else append.
func (e *Engine) ApplyInsert(m chat.Message) Outcome {
	m.State = chat.Confirmed
	if e.tl.Has(m.ID) {
		metrics.Reconciled.WithLabelValues(string(Duplicate)).Inc()
		return Duplicate
	}
	e.touch(m.ID)
	if p, ok := e.matchProvisional(m); ok {
		if m.SenderName == "" {
			m.SenderName = p.SenderName
		}
		e.tl.Replace(p.ID, m)
		e.logger.Debug("provisional record settled by push",
			zap.String("provisional_id", p.ID), zap.String("msg_id", m.ID))
		metrics.Reconciled.WithLabelValues(string(Replaced)).Inc()
		return Replaced
	}
	e.tl.Append(m)
	metrics.Reconciled.WithLabelValues(string(Appended)).Inc()
	return Appended
}

// matchProvisional finds the provisional record a pushed row settles: same sender,
// identical content, pending before failed, oldest first. Rapid identical sends pair
// in send order because the outbox confirms them in that order.
func (e *Engine) matchProvisional(m chat.Message) (chat.Message, bool) {
	for _, state := range []chat.State{chat.Pending, chat.Failed} {
		p, ok := e.tl.Find(func(c chat.Message) bool {
			return c.IsProvisional() && c.State == state &&
				c.SenderID == m.SenderID && c.Content == m.Content &&
				e.withinMatchWindow(c.CreatedAt, m.CreatedAt)
		})
		if ok {
			return p, true
		}
	}
	return chat.Message{}, false
}

func (e *Engine) withinMatchWindow(a, b time.Time) bool {
	if e.matchWindow <= 0 {
		return true
	}
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= e.matchWindow
}

// ApplyUpdate shallow-merges patch into the record held under id.
func (e *Engine) ApplyUpdate(id string, patch chat.Patch) bool {
	m, ok := e.tl.Get(id)
	if !ok || !patch.Changes(m) {
		return false
	}
	e.touch(id)
	return e.tl.Update(id, patch.Apply)
}

// ApplyDelete removes the record held under id. Unknown ids are a no-op for the
// timeline but still shadow the id in reads that are in flight.
func (e *Engine) ApplyDelete(id string) bool {
	e.touch(id)
	return e.tl.Remove(id)
}

// Authorize checks that the local user may edit or delete id right now.
// It runs before any network call.
func (e *Engine) Authorize(id string) (chat.Message, error) {
	m, ok := e.tl.Get(id)
	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	if !m.Settled() {
		return m, chat.ErrNotConfirmed
	}
	if err := chat.CanModify(m, e.self, e.now(), e.editWindow); err != nil {
		reason := "window"
		if err == chat.ErrNotAuthor {
			reason = "author"
		}
		metrics.ModifyRejected.WithLabelValues(reason).Inc()
		return m, err
	}
	return m, nil
}

// UnreadFromOthers returns ids of settled messages from other users not yet read.
func (e *Engine) UnreadFromOthers() []string {
	var ids []string
	for _, m := range e.tl.Filter(func(m chat.Message) bool {
		return m.Settled() && !m.IsRead && m.SenderID != e.self
	}) {
		ids = append(ids, m.ID)
	}
	return ids
}
