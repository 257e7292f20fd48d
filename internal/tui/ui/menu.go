package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

const menuRows = 5

// Menu lays keyboard hints out in columns of menuRows entries.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the hints for the page on top.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, layoutHints(hints, menuRows, func(h MenuHint) string {
		kc := ColorName(m.theme.MenuKeyColor)
		if h.Numeric {
			kc = ColorName(m.theme.NumericKeyColor)
		}
		return fmt.Sprintf("[%s::b]<%s>[-:-:-] %s", kc, tview.Escape(h.Key), h.Description)
	}))
}

// layoutHints fills columns top to bottom, padding each column to its widest
// entry. Widths ignore color tags.
func layoutHints(hints []MenuHint, rows int, format func(MenuHint) string) string {
	if len(hints) == 0 {
		return ""
	}
	cols := (len(hints) + rows - 1) / rows
	widths := make([]int, cols)
	for i, h := range hints {
		w := len(h.Key) + len(h.Description) + 3
		if c := i / rows; w > widths[c] {
			widths[c] = w
		}
	}

	var b strings.Builder
	for r := 0; r < rows && r < len(hints); r++ {
		for c := 0; c < cols; c++ {
			i := c*rows + r
			if i >= len(hints) {
				break
			}
			h := hints[i]
			b.WriteString(format(h))
			if c < cols-1 && i+rows < len(hints) {
				pad := widths[c] - (len(h.Key) + len(h.Description) + 3)
				b.WriteString(strings.Repeat(" ", pad+3))
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
