package presence

import (
	"sort"
	"time"

	"github.com/matheus3301/convo/internal/chat"
)

// Roster holds the typing state of remote participants, last write wins by timestamp.
// Expiry is evaluated when read. It is owned by one goroutine.
type Roster struct {
	self    string
	ttl     time.Duration
	records map[string]chat.TypingRecord
}

// NewRoster creates a roster that ignores self. Records older than ttl read as not typing.
func NewRoster(self string, ttl time.Duration) *Roster {
	if ttl <= 0 {
		ttl = 2 * DefaultHeartbeat
	}
	return &Roster{self: self, ttl: ttl, records: make(map[string]chat.TypingRecord)}
}

// Apply folds in one record and reports whether the visible typing state changed.
// Records older than the held one are discarded.
func (r *Roster) Apply(rec chat.TypingRecord) bool {
	if rec.UserID == r.self {
		return false
	}
	cur, ok := r.records[rec.UserID]
	if ok && rec.UpdatedAt.Before(cur.UpdatedAt) {
		return false
	}
	if ok && rec.UpdatedAt.Equal(cur.UpdatedAt) && rec.IsTyping == cur.IsTyping {
		return false
	}
	r.records[rec.UserID] = rec
	return !ok || cur.IsTyping != rec.IsTyping
}

// Resync replaces the roster with a full fetch, keeping any held record newer than the fetched one.
func (r *Roster) Resync(recs []chat.TypingRecord) {
	next := make(map[string]chat.TypingRecord, len(recs))
	for _, rec := range recs {
		if rec.UserID == r.self {
			continue
		}
		if cur, ok := r.records[rec.UserID]; ok && cur.UpdatedAt.After(rec.UpdatedAt) {
			rec = cur
		}
		next[rec.UserID] = rec
	}
	r.records = next
}

// Typing returns the users typing at now, sorted.
func (r *Roster) Typing(now time.Time) []string {
	var users []string
	for id, rec := range r.records {
		if rec.IsTyping && now.Sub(rec.UpdatedAt) <= r.ttl {
			users = append(users, id)
		}
	}
	sort.Strings(users)
	return users
}

// IsTyping reports whether userID is typing at now.
func (r *Roster) IsTyping(userID string, now time.Time) bool {
	rec, ok := r.records[userID]
	return ok && rec.IsTyping && now.Sub(rec.UpdatedAt) <= r.ttl
}

// NextExpiry returns when the earliest live typing record lapses, for scheduling a redraw.
func (r *Roster) NextExpiry(now time.Time) (time.Time, bool) {
	var next time.Time
	for _, rec := range r.records {
		if !rec.IsTyping {
			continue
		}
		at := rec.UpdatedAt.Add(r.ttl)
		if at.After(now) && (next.IsZero() || at.Before(next)) {
			next = at
		}
	}
	return next, !next.IsZero()
}
