package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

var logoArt = []string{
	"╔═╗╦╔═╗╔═╗╦ ╦╔═╗╔╦╗",
	"║ ╦║║ ╦║  ╠═╣╠═╣ ║ ",
	"╚═╝╩╚═╝╚═╝╩ ╩╩ ╩ ╩ ",
}

// Logo shows the wordmark, lit while the daemon reports a live link.
type Logo struct {
	*tview.TextView
	theme *Theme
	lit   bool
}

func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{TextView: tv, theme: theme}
	l.SetText(logoText(theme, false))
	return l
}

// SetConnected redraws the wordmark when the link state flips.
func (l *Logo) SetConnected(ok bool) {
	if ok == l.lit {
		return
	}
	l.lit = ok
	l.SetText(logoText(l.theme, ok))
}

func logoText(theme *Theme, lit bool) string {
	style := colorName(theme.FgColor) + "::d"
	tagline := "offline"
	if lit {
		style = colorName(theme.TitleColor) + "::b"
		tagline = "freelance messaging"
	}
	var b strings.Builder
	for _, line := range logoArt {
		fmt.Fprintf(&b, "[%s] %s[-:-:-]\n", style, line)
	}
	fmt.Fprintf(&b, "[%s]%s[-:-:-]", colorName(theme.FgColor), tagline)
	return b.String()
}
