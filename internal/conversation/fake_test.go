package conversation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/remote"
)

// fakeChannel is an in-memory remote.Channel. Pushes are driven by the test.
type fakeChannel struct {
	mu         sync.Mutex
	msgs       []chat.Message
	typing     []chat.TypingRecord
	feeds      []*remote.Feed
	typingFeed []*remote.Feed
	inserted   int
	insertErr  error
	insertGate chan struct{}
	fetchGate  chan struct{}
	fetches    int
	updates    []string
	deletes    []string
	published  []chat.TypingRecord
	now        func() time.Time
}

func newFakeChannel(now func() time.Time) *fakeChannel {
	return &fakeChannel{now: now}
}

func (f *fakeChannel) seed(n int, sender string, start time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < n; i++ {
		f.msgs = append(f.msgs, chat.Message{
			ID:             fmt.Sprintf("h%02d", i),
			ConversationID: "c1",
			SenderID:       sender,
			Content:        fmt.Sprintf("history %d", i),
			CreatedAt:      start.Add(time.Duration(i) * time.Second),
			IsRead:         true,
		})
	}
}

func (f *fakeChannel) FetchPage(ctx context.Context, conversationID string, before *time.Time, limit int) ([]chat.Message, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.fetchGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chat.Message
	for i := len(f.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if before != nil && !f.msgs[i].CreatedAt.Before(*before) {
			continue
		}
		out = append(out, f.msgs[i])
	}
	return out, nil
}

func (f *fakeChannel) InsertMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error) {
	f.mu.Lock()
	gate := f.insertGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return chat.Message{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return chat.Message{}, f.insertErr
	}
	f.inserted++
	m := chat.Message{
		ID:             fmt.Sprintf("m-%d", f.inserted),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      f.now(),
	}
	f.msgs = append(f.msgs, m)
	return m, nil
}

func (f *fakeChannel) UpdateMessage(ctx context.Context, id string, patch chat.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, id)
	for i := range f.msgs {
		if f.msgs[i].ID == id {
			f.msgs[i] = patch.Apply(f.msgs[i])
		}
	}
	return nil
}

func (f *fakeChannel) DeleteMessage(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	for i := range f.msgs {
		if f.msgs[i].ID == id {
			f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeChannel) Subscribe(ctx context.Context, conversationID string) (remote.Subscription, error) {
	feed := remote.NewFeed(16, nil)
	f.mu.Lock()
	f.feeds = append(f.feeds, feed)
	f.mu.Unlock()
	return feed, nil
}

func (f *fakeChannel) PublishTyping(ctx context.Context, rec chat.TypingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, rec)
	return nil
}

func (f *fakeChannel) SubscribeTyping(ctx context.Context, conversationID string) (remote.Subscription, error) {
	feed := remote.NewFeed(16, nil)
	f.mu.Lock()
	f.typingFeed = append(f.typingFeed, feed)
	f.mu.Unlock()
	return feed, nil
}

func (f *fakeChannel) FetchTyping(ctx context.Context, conversationID string) ([]chat.TypingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.TypingRecord(nil), f.typing...), nil
}

func (f *fakeChannel) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	return []chat.Conversation{{ID: "c1"}}, nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) push(evt chat.Event) {
	f.mu.Lock()
	feeds := f.feeds
	if evt.Kind == chat.EventTyping {
		feeds = f.typingFeed
	}
	f.mu.Unlock()
	for _, feed := range feeds {
		feed.Push(evt)
	}
}

func (f *fakeChannel) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeChannel) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

// fakeView measures each message as 20 units tall.
type fakeView struct {
	mu     sync.Mutex
	vp     pager.Viewport
	frames []Frame
}

const rowHeight = 20

func newFakeView(clientHeight int) *fakeView {
	return &fakeView{vp: pager.Viewport{ClientHeight: clientHeight}}
}

func (v *fakeView) Viewport() pager.Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.vp
}

func (v *fakeView) Render(f Frame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frames = append(v.frames, f)
	v.vp.ScrollHeight = rowHeight * len(f.Messages)
	switch f.Scroll {
	case ScrollBottom:
		v.vp.ScrollTop = max(0, v.vp.ScrollHeight-v.vp.ClientHeight)
	case ScrollAnchor:
		v.vp.ScrollTop = f.Anchor.Restore(v.vp.ScrollHeight)
	}
}

func (v *fakeView) scrollTo(top int) pager.Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vp.ScrollTop = top
	return v.vp
}

func (v *fakeView) lastFrame() Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.frames) == 0 {
		return Frame{}
	}
	return v.frames[len(v.frames)-1]
}

func (v *fakeView) frameCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.frames)
}

func (v *fakeView) sawScroll(s Scroll) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, f := range v.frames {
		if f.Scroll == s {
			return true
		}
	}
	return false
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func ids(msgs []chat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func sortedStrings(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
