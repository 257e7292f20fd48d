package ui

import (
	"fmt"
	"runtime/debug"

	"github.com/rivo/tview"
)

// Logo shows the program name and the build version.
type Logo struct {
	*tview.TextView
}

// NewLogo creates the header logo.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	title := ColorName(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%[1]s::b]╔═╗╔═╗╔╗╔╦  ╦╔═╗[-:-:-]\n"+
			"[%[1]s::b]║  ║ ║║║║╚╗╔╝║ ║[-:-:-]\n"+
			"[%[1]s::b]╚═╝╚═╝╝╚╝ ╚╝ ╚═╝[-:-:-]\n"+
			"[%[2]s]%[3]s[-:-:-]",
		title, ColorName(theme.FgColor), tview.Escape(buildVersion()),
	)
	return &Logo{TextView: tv}
}

// buildVersion is the main module version, "dev" for local builds.
func buildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}
