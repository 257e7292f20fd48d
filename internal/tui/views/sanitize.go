package views

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
)

// sanitizeForTerminal makes peer-supplied text safe to draw with tcell.
//
// Control characters other than newline and tab are dropped, as are bidi
// overrides that could reorder what the reader sees. Emoji joined with ZWJ
// collapse to their first emoji, and skin tone modifiers and variation
// selectors are removed, because tcell measures those sequences differently
// from most terminals.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		runes := g.Runes()
		if strings.ContainsRune(g.Str(), '\u200d') {
			runes = runes[:1]
		}
		for _, r := range runes {
			if keepRune(r) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func keepRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return true
	case unicode.IsControl(r):
		return false
	// Skin tone modifiers.
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return false
	// Variation selectors and their supplement.
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return false
	// Bidi embeddings, overrides and isolates.
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069:
		return false
	default:
		return true
	}
}
