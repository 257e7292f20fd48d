package views

import (
	"strings"
	"time"

	"github.com/rivo/uniseg"
)

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	t = t.Local()
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// wrap breaks s into lines at most width cells wide, preferring word boundaries.
// Explicit newlines are kept.
func wrap(s string, width int) []string {
	if width < 1 {
		width = 1
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		var line strings.Builder
		lineW := 0
		flush := func() {
			lines = append(lines, line.String())
			line.Reset()
			lineW = 0
		}
		for _, word := range strings.Fields(para) {
			w := uniseg.StringWidth(word)
			if lineW > 0 && lineW+1+w > width {
				flush()
			}
			if w > width {
				// Hard-break words longer than a line.
				g := uniseg.NewGraphemes(word)
				for g.Next() {
					cw := g.Width()
					if lineW+cw > width && lineW > 0 {
						flush()
					}
					line.WriteString(g.Str())
					lineW += cw
				}
				continue
			}
			if lineW > 0 {
				line.WriteByte(' ')
				lineW++
			}
			line.WriteString(word)
			lineW += w
		}
		flush()
	}
	return lines
}
