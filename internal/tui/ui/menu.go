package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// Menu lists the shortcuts of the current page in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
	rows  int
}

// NewMenu creates a menu that fills columns of rows entries.
func NewMenu(theme *Theme, rows int) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
		rows:     max(rows, 1),
	}
}

// Update renders hints top to bottom, then left to right.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	keyColor := colorName(m.theme.MenuKeyColor)
	numColor := colorName(m.theme.NumericKeyColor)
	_, _ = fmt.Fprint(m, strings.Join(layoutHints(hints, m.rows, keyColor, numColor), "\n"))
}

// layoutHints arranges hints in columns of rows lines, padded to the
// widest entry of each column.
func layoutHints(hints []MenuHint, rows int, keyColor, numColor string) []string {
	lines := make([]string, min(rows, len(hints)))
	for start := 0; start < len(hints); start += rows {
		col := hints[start:min(start+rows, len(hints))]
		width := 0
		for _, h := range col {
			width = max(width, hintWidth(h))
		}
		for i, h := range col {
			kc := keyColor
			if h.Numeric {
				kc = numColor
			}
			pad := strings.Repeat(" ", width-hintWidth(h)+3)
			lines[i] += fmt.Sprintf("[%s::b]<%s>[-:-:-] %s%s", kc, tview.Escape(h.Key), h.Description, pad)
		}
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return lines
}

func hintWidth(h MenuHint) int {
	return utf8.RuneCountInString(h.Key) + utf8.RuneCountInString(h.Description) + 3
}
