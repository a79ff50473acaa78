package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const maxCrumb = 24

// Crumbs shows the navigation path, e.g. "Contacts > Ana".
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

// Update renders the trail; the last entry is highlighted.
func (c *Crumbs) Update(trail []Component) {
	labels := make([]string, len(trail))
	for i, comp := range trail {
		labels[i] = comp.Name()
	}
	c.render(labels)
}

func (c *Crumbs) render(labels []string) {
	c.Clear()
	_, _ = fmt.Fprint(c, crumbLine(labels, c.theme))
}

func crumbLine(labels []string, theme *Theme) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		fg, bg, attr := theme.CrumbInactiveFg, theme.CrumbInactiveBg, ""
		if i == len(labels)-1 {
			fg, bg, attr = theme.CrumbActiveFg, theme.CrumbActiveBg, "b"
		}
		parts[i] = fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", colorName(fg), colorName(bg), attr, tview.Escape(truncate(l, maxCrumb)))
	}
	return strings.Join(parts, " › ")
}

// truncate shortens s to n runes, ending in an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// colorName returns a tview-compatible color name string.
func colorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}
