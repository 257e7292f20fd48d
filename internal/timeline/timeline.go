// Package timeline holds the ordered window of messages a client keeps for one conversation.
package timeline

import (
	"slices"
	"sort"

	"github.com/matheus3301/convo/internal/chat"
)

// Timeline is ordered by CreatedAt ascending, ties kept in insertion order, with no duplicate ids.
// It is not safe for concurrent use: exactly one goroutine owns it.
type Timeline struct {
	msgs []chat.Message
}

// New creates an empty timeline.
func New() *Timeline {
	return &Timeline{}
}

// Len returns the number of held messages.
func (t *Timeline) Len() int { return len(t.msgs) }

// Get returns the message with the given id.
func (t *Timeline) Get(id string) (chat.Message, bool) {
	i := t.indexOf(id)
	if i < 0 {
		return chat.Message{}, false
	}
	return t.msgs[i], true
}

// Has reports whether a message with the given id is held.
func (t *Timeline) Has(id string) bool { return t.indexOf(id) >= 0 }

// Append adds m at its ordered position. It returns false when the id is already held.
func (t *Timeline) Append(m chat.Message) bool {
	if t.indexOf(m.ID) >= 0 {
		return false
	}
	t.insertSorted(m)
	return true
}

// Replace swaps the record held under id for m. When m's id is already held by another
// record, the record under id is dropped and the held one kept. Returns false if id is unknown.
func (t *Timeline) Replace(id string, m chat.Message) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	if m.ID != id && t.indexOf(m.ID) >= 0 {
		t.msgs = slices.Delete(t.msgs, i, i+1)
		return true
	}
	if t.msgs[i].CreatedAt.Equal(m.CreatedAt) {
		t.msgs[i] = m
		return true
	}
	t.msgs = slices.Delete(t.msgs, i, i+1)
	t.insertSorted(m)
	return true
}

// Update rewrites the record held under id in place. fn must not change the id.
func (t *Timeline) Update(id string, fn func(chat.Message) chat.Message) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	updated := fn(t.msgs[i])
	updated.ID = id
	if updated.CreatedAt.Equal(t.msgs[i].CreatedAt) {
		t.msgs[i] = updated
		return true
	}
	t.msgs = slices.Delete(t.msgs, i, i+1)
	t.insertSorted(updated)
	return true
}

// Remove drops the record held under id. Removing an unknown id is a no-op.
func (t *Timeline) Remove(id string) bool {
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.msgs = slices.Delete(t.msgs, i, i+1)
	return true
}

// Prepend merges a block of older messages in front of the held ones.
// Ids already held are skipped. It returns how many messages were added.
func (t *Timeline) Prepend(older []chat.Message) int {
	seen := make(map[string]struct{}, len(older))
	block := make([]chat.Message, 0, len(older))
	for _, m := range older {
		if _, dup := seen[m.ID]; dup || t.indexOf(m.ID) >= 0 {
			continue
		}
		seen[m.ID] = struct{}{}
		block = append(block, m)
	}
	if len(block) == 0 {
		return 0
	}
	sort.SliceStable(block, func(i, j int) bool {
		return block[i].CreatedAt.Before(block[j].CreatedAt)
	})

	merged := make([]chat.Message, 0, len(block)+len(t.msgs))
	i, j := 0, 0
	for i < len(block) && j < len(t.msgs) {
		if !t.msgs[j].CreatedAt.Before(block[i].CreatedAt) {
			merged = append(merged, block[i])
			i++
		} else {
			merged = append(merged, t.msgs[j])
			j++
		}
	}
	merged = append(merged, block[i:]...)
	merged = append(merged, t.msgs[j:]...)
	t.msgs = merged
	return len(block)
}

// Snapshot returns a copy of the held messages in order.
func (t *Timeline) Snapshot() []chat.Message {
	return slices.Clone(t.msgs)
}

// OldestSettled returns the oldest confirmed message, the cursor for loading history.
func (t *Timeline) OldestSettled() (chat.Message, bool) {
	for _, m := range t.msgs {
		if m.Settled() {
			return m, true
		}
	}
	return chat.Message{}, false
}

// Find returns the first message, oldest first, for which match returns true.
func (t *Timeline) Find(match func(chat.Message) bool) (chat.Message, bool) {
	for _, m := range t.msgs {
		if match(m) {
			return m, true
		}
	}
	return chat.Message{}, false
}

// Filter returns the messages for which match returns true, in order.
func (t *Timeline) Filter(match func(chat.Message) bool) []chat.Message {
	var out []chat.Message
	for _, m := range t.msgs {
		if match(m) {
			out = append(out, m)
		}
	}
	return out
}

func (t *Timeline) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range t.msgs {
		if t.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// insertSorted places m after every message with CreatedAt <= m.CreatedAt.
func (t *Timeline) insertSorted(m chat.Message) {
	i := sort.Search(len(t.msgs), func(i int) bool {
		return t.msgs[i].CreatedAt.After(m.CreatedAt)
	})
	t.msgs = slices.Insert(t.msgs, i, m)
}
