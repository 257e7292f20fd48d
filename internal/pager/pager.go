// Package pager loads older history on demand and keeps the viewport anchored while it does.
package pager

import (
	"slices"
	"time"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/metrics"
	"github.com/matheus3301/convo/internal/timeline"
)

const (
	// DefaultPageSize is how many messages one fetch asks for.
	DefaultPageSize = 10
	// DefaultTopThreshold is the scroll offset, in view units, below which older history is requested.
	DefaultTopThreshold = 50
)

// Request is one older-page fetch handed out by Begin.
type Request struct {
	// Before is the exclusive cursor; nil asks for the newest page.
	Before *time.Time
	Limit  int
	seq    uint64
}

// Controller tracks whether older history remains and guards against concurrent loads.
// It is owned by one goroutine.
type Controller struct {
	tl           *timeline.Timeline
	pageSize     int
	topThreshold int

	hasMoreOlder bool
	inFlight     bool
	armed        bool
	seq          uint64
}

// New creates a controller that prepends into tl.
func New(tl *timeline.Timeline, pageSize, topThreshold int) *Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if topThreshold <= 0 {
		topThreshold = DefaultTopThreshold
	}
	return &Controller{
		tl:           tl,
		pageSize:     pageSize,
		topThreshold: topThreshold,
		hasMoreOlder: true,
	}
}

// PageSize returns the fetch limit.
func (c *Controller) PageSize() int { return c.pageSize }

// HasMoreOlder reports whether older history may remain.
func (c *Controller) HasMoreOlder() bool { return c.hasMoreOlder }

// InFlight reports whether a load is outstanding.
func (c *Controller) InFlight() bool { return c.inFlight }

// Armed reports whether scroll-driven loading is enabled.
func (c *Controller) Armed() bool { return c.armed }

// Arm enables scroll-driven loading. Call it once the initial render has scrolled to the bottom.
func (c *Controller) Arm() { c.armed = true }

// Disarm stops scroll-driven loading.
func (c *Controller) Disarm() { c.armed = false }

// Initial loads a newest-first page as the starting window.
func (c *Controller) Initial(page []chat.Message) int {
	c.hasMoreOlder = len(page) >= c.pageSize
	return c.tl.Prepend(reversed(page))
}

// Begin starts an older-page load. It returns false while a load is in flight
// or once history is exhausted.
func (c *Controller) Begin() (Request, bool) {
	if c.inFlight || !c.hasMoreOlder {
		return Request{}, false
	}
	c.inFlight = true
	c.seq++
	req := Request{Limit: c.pageSize, seq: c.seq}
	if oldest, ok := c.tl.OldestSettled(); ok {
		before := oldest.CreatedAt
		req.Before = &before
	}
	return req, true
}

// Complete finishes the load started by req with a newest-first page and returns how
// many messages were prepended. A short page, including an empty one, ends history.
// On error the flag clears and history is kept as it was.
func (c *Controller) Complete(req Request, page []chat.Message, err error) (int, error) {
	return c.CompleteWith(req, page, err, nil)
}

// CompleteWith is Complete with keep applied to the page after the end of history
// has been judged from its full length. Rows keep drops are not prepended.
func (c *Controller) CompleteWith(req Request, page []chat.Message, err error, keep func([]chat.Message) []chat.Message) (int, error) {
	if req.seq != c.seq || !c.inFlight {
		return 0, nil
	}
	c.inFlight = false
	if err != nil {
		return 0, err
	}
	metrics.PagesLoaded.Inc()
	if len(page) < req.Limit {
		c.hasMoreOlder = false
	}
	if keep != nil {
		page = keep(page)
	}
	return c.tl.Prepend(reversed(page)), nil
}

// Abandon drops an outstanding load without applying anything.
func (c *Controller) Abandon() {
	c.inFlight = false
	c.seq++
}

// Reset marks history as possibly incomplete again, for use after a reconnect.
func (c *Controller) Reset() {
	if !c.inFlight {
		c.hasMoreOlder = true
	}
}

// ShouldLoad reports whether a scroll to top should request older history.
func (c *Controller) ShouldLoad(scrollTop int) bool {
	return c.armed && !c.inFlight && c.hasMoreOlder && scrollTop < c.topThreshold
}

func reversed(page []chat.Message) []chat.Message {
	out := slices.Clone(page)
	slices.Reverse(out)
	return out
}
