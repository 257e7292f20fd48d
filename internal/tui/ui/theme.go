package ui

import (
	"os"

	"github.com/gdamore/tcell/v2"
)

// Theme holds the colors of every TUI widget.
type Theme struct {
	BgColor           tcell.Color
	FgColor           tcell.Color
	BorderColor       tcell.Color
	BorderFocusColor  tcell.Color
	TableHeaderFg     tcell.Color
	TableHeaderBg     tcell.Color
	TableCursorFg     tcell.Color
	TableCursorBg     tcell.Color
	CrumbActiveFg     tcell.Color
	CrumbActiveBg     tcell.Color
	CrumbInactiveFg   tcell.Color
	CrumbInactiveBg   tcell.Color
	MenuKeyColor      tcell.Color
	NumericKeyColor   tcell.Color
	TitleColor        tcell.Color
	CounterColor      tcell.Color
	FlashInfoColor    tcell.Color
	FlashWarnColor    tcell.Color
	FlashErrColor     tcell.Color
	PromptBorderColor tcell.Color
	SelfColor         tcell.Color
	PeerColor         tcell.Color
	PendingColor      tcell.Color
	FailedColor       tcell.Color
	TypingColor       tcell.Color
	SelectedBg        tcell.Color
	LinkLiveColor     tcell.Color
	LinkDownColor     tcell.Color
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:           tcell.ColorBlack,
		FgColor:           tcell.ColorCadetBlue,
		BorderColor:       tcell.ColorDodgerBlue,
		BorderFocusColor:  tcell.ColorLightSkyBlue,
		TableHeaderFg:     tcell.ColorWhite,
		TableHeaderBg:     tcell.ColorBlack,
		TableCursorFg:     tcell.ColorBlack,
		TableCursorBg:     tcell.ColorAqua,
		CrumbActiveFg:     tcell.ColorBlack,
		CrumbActiveBg:     tcell.ColorOrange,
		CrumbInactiveFg:   tcell.ColorBlack,
		CrumbInactiveBg:   tcell.ColorAqua,
		MenuKeyColor:      tcell.ColorDodgerBlue,
		NumericKeyColor:   tcell.ColorFuchsia,
		TitleColor:        tcell.ColorFuchsia,
		CounterColor:      tcell.ColorPapayaWhip,
		FlashInfoColor:    tcell.ColorNavajoWhite,
		FlashWarnColor:    tcell.ColorOrange,
		FlashErrColor:     tcell.ColorOrangeRed,
		PromptBorderColor: tcell.ColorDodgerBlue,
		SelfColor:         tcell.ColorAqua,
		PeerColor:         tcell.ColorFuchsia,
		PendingColor:      tcell.ColorGray,
		FailedColor:       tcell.ColorOrangeRed,
		TypingColor:       tcell.ColorNavajoWhite,
		SelectedBg:        tcell.ColorDarkSlateGray,
		LinkLiveColor:     tcell.ColorLimeGreen,
		LinkDownColor:     tcell.ColorOrange,
	}
}

// MonochromeTheme uses the terminal's default colors throughout and tells
// states apart by glyph alone.
func MonochromeTheme() *Theme {
	d := tcell.ColorDefault
	return &Theme{
		BgColor: d, FgColor: d, BorderColor: d, BorderFocusColor: d,
		TableHeaderFg: d, TableHeaderBg: d, TableCursorFg: tcell.ColorBlack, TableCursorBg: tcell.ColorWhite,
		CrumbActiveFg: tcell.ColorBlack, CrumbActiveBg: tcell.ColorWhite, CrumbInactiveFg: d, CrumbInactiveBg: d,
		MenuKeyColor: d, NumericKeyColor: d, TitleColor: d, CounterColor: d,
		FlashInfoColor: d, FlashWarnColor: d, FlashErrColor: d, PromptBorderColor: d,
		SelfColor: d, PeerColor: d, PendingColor: d, FailedColor: d, TypingColor: d,
		SelectedBg: d, LinkLiveColor: d, LinkDownColor: d,
	}
}

// LoadTheme honors NO_COLOR (https://no-color.org).
func LoadTheme() *Theme {
	if os.Getenv("NO_COLOR") != "" {
		return MonochromeTheme()
	}
	return DefaultTheme()
}
