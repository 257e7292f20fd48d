package sync

import (
	"time"

	"github.com/matheus3301/convo/internal/chat"
	"go.uber.org/zap"
)

// MergeResult counts what a refresh changed.
type MergeResult struct {
	Added   int
	Updated int
	Removed int
}

// Changed reports whether the merge touched the timeline.
func (r MergeResult) Changed() bool {
	return r.Added+r.Updated+r.Removed > 0
}

// Merge folds a freshly fetched newest page into the timeline by id instead of
// replacing it. complete reports that the page holds the whole history up to its
// newest row (a short page). mark is the token taken when the fetch was issued:
// rows changed since then keep their newer local state. Confirmed rows inside the
// fetched range that the store no longer returns are removed; rows newer than the
// page and provisional records are left alone.
func (e *Engine) Merge(fetched []chat.Message, complete bool, mark uint64) MergeResult {
	var res MergeResult
	if len(fetched) == 0 && !complete {
		return res
	}

	present := make(map[string]struct{}, len(fetched))
	var floor, ceil time.Time
	for i, f := range fetched {
		present[f.ID] = struct{}{}
		if i == 0 || f.CreatedAt.Before(floor) {
			floor = f.CreatedAt
		}
		if i == 0 || f.CreatedAt.After(ceil) {
			ceil = f.CreatedAt
		}
		if e.ChangedSince(mark, f.ID) {
			continue
		}

		if held, ok := e.tl.Get(f.ID); ok {
			patch := chat.Patch{Content: &f.Content, IsRead: &f.IsRead}
			if patch.Changes(held) {
				e.tl.Update(f.ID, patch.Apply)
				res.Updated++
			}
			continue
		}
		if e.ApplyInsert(f) != Duplicate {
			res.Added++
		}
	}

	stale := e.tl.Filter(func(m chat.Message) bool {
		if !m.Settled() || e.ChangedSince(mark, m.ID) {
			return false
		}
		if len(fetched) > 0 {
			if m.CreatedAt.After(ceil) {
				return false
			}
			if !complete && m.CreatedAt.Before(floor) {
				return false
			}
		}
		_, ok := present[m.ID]
		return !ok
	})
	for _, m := range stale {
		e.tl.Remove(m.ID)
		res.Removed++
	}

	if res.Changed() {
		e.logger.Debug("refresh merged",
			zap.Int("added", res.Added), zap.Int("updated", res.Updated), zap.Int("removed", res.Removed))
	}
	return res
}

// Fresh returns the rows of page that have not changed locally since mark.
func (e *Engine) Fresh(mark uint64, page []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(page))
	for _, m := range page {
		if !e.ChangedSince(mark, m.ID) {
			out = append(out, m)
		}
	}
	return out
}
