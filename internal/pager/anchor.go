package pager

// DefaultNearBottom is how close to the bottom, in view units, counts as following the conversation.
const DefaultNearBottom = 150

// Viewport is the scroll state a view reports, in whatever unit it measures (pixels, rows).
type Viewport struct {
	ScrollTop    int
	ScrollHeight int
	ClientHeight int
}

// NearBottom reports whether the viewport is within threshold of the bottom.
func (v Viewport) NearBottom(threshold int) bool {
	return v.ScrollHeight-v.ScrollTop <= v.ClientHeight+threshold
}

// Anchor records the viewport before a prepend so the visible content stays put.
type Anchor struct {
	OldTop    int
	OldHeight int
}

// Capture takes an anchor from the viewport. Call it before mutating the timeline.
func Capture(v Viewport) Anchor {
	return Anchor{OldTop: v.ScrollTop, OldHeight: v.ScrollHeight}
}

// Restore returns the scroll offset that keeps the previously visible content in place
// once the content has grown to newHeight.
func (a Anchor) Restore(newHeight int) int {
	top := a.OldTop + (newHeight - a.OldHeight)
	if top < 0 {
		return 0
	}
	return top
}
