package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Crumbs shows the page stack, e.g. Conversations > alice > Details.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the breadcrumb trail, newest last.
func (c *Crumbs) Update(trail []string) {
	c.Clear()
	trail = collapseTrail(trail, maxCrumbs)
	parts := make([]string, 0, len(trail))
	for i, name := range trail {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(trail)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", ColorName(fg), ColorName(bg), attr, tview.Escape(name)))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " > "))
}

const maxCrumbs = 4

// collapseTrail keeps the first crumb and the newest ones, eliding the middle.
func collapseTrail(trail []string, limit int) []string {
	if len(trail) <= limit || limit < 3 {
		return trail
	}
	out := []string{trail[0], "…"}
	return append(out, trail[len(trail)-(limit-2):]...)
}

// ColorName returns a tview-compatible color name string.
func ColorName(c tcell.Color) string {
	if c == tcell.ColorDefault {
		return "-"
	}
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
