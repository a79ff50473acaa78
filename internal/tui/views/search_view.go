package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/tui/ui"
)

var searchColumns = []struct {
	title string
	width int
}{
	{" CONTACT", 25},
	{" SNIPPET", 0},
	{" TIME", 12},
}

// SearchView runs archive searches and lists the hits.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	query   string
	data    []*rpc.SearchResult
}

func NewSearchView(theme *ui.Theme) *SearchView {
	sv := &SearchView{
		theme:   theme,
		input:   tview.NewInputField(),
		results: tview.NewTable(),
	}

	sv.input.SetLabel(" Search: ").SetFieldWidth(0)
	sv.input.SetLabelColor(theme.MenuKeyColor)
	sv.input.SetFieldTextColor(theme.FgColor)
	sv.input.SetFieldBackgroundColor(theme.BgColor)
	sv.input.SetBackgroundColor(theme.BgColor)

	sv.results.SetSelectable(true, false).SetFixed(1, 0)
	sv.results.SetSelectedStyle(tcell.StyleDefault.Foreground(theme.TableCursorFg).Background(theme.TableCursorBg))
	sv.results.SetBackgroundColor(theme.BgColor)
	sv.results.SetBorder(true).
		SetBorderColor(theme.BorderColor).
		SetTitleColor(theme.TitleColor).
		SetTitle(" Results ")

	sv.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(sv.input, 1, 0, true).
		AddItem(sv.results, 0, 1, false)
	return sv
}

func (sv *SearchView) Name() string { return "Search" }
func (sv *SearchView) Start() {}
func (sv *SearchView) Stop() {}

func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Tab", Description: "Results"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

// SetOnQuery registers the callback run when Enter is pressed in the input.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && fn != nil {
			fn(sv.input.GetText())
		}
	})
}

// SetQuery fills the input, as when searching from the command prompt.
func (sv *SearchView) SetQuery(q string) {
	sv.input.SetText(q)
}

// Update lists results for the query currently in the input. names
// resolves contact ids to display names.
func (sv *SearchView) Update(results []*rpc.SearchResult, names func(id string) string) {
	sv.data = results
	sv.query = strings.TrimSpace(sv.input.GetText())
	sv.results.Clear()

	for col, c := range searchColumns {
		sv.results.SetCell(0, col, tview.NewTableCell(c.title).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg))
	}

	mark := colorName(sv.theme.UnreadColor)
	for i, r := range results {
		var who, when string
		if m := r.Message; m != nil {
			who = m.ContactID
			if names != nil && names(m.ContactID) != "" {
				who = names(m.ContactID)
			}
			when = formatTimestamp(m.Timestamp)
		}
		cells := []string{
			tview.Escape(oneLine(who)),
			highlight(oneLine(r.Snippet), sv.query, mark),
			when,
		}
		for col, text := range cells {
			cell := tview.NewTableCell(" " + text).SetTextColor(sv.theme.FgColor)
			if w := searchColumns[col].width; w > 0 {
				cell.SetMaxWidth(w)
			} else {
				cell.SetExpansion(1)
			}
			sv.results.SetCell(i+1, col, cell)
		}
	}

	sv.results.SetTitle(fmt.Sprintf(" Results (%d) ", len(results)))
	if len(results) > 0 {
		sv.results.Select(1, 0)
	}
}

// SelectedResult returns the contact and message id of the selected hit.
func (sv *SearchView) SelectedResult() (contactID, messageID string) {
	row, _ := sv.results.GetSelection()
	if row < 1 || row > len(sv.data) {
		return "", ""
	}
	if m := sv.data[row-1].Message; m != nil {
		return m.ContactID, m.ID
	}
	return "", ""
}

func (sv *SearchView) Input() *tview.InputField { return sv.input }
func (sv *SearchView) Results() *tview.Table { return sv.results }

// highlight escapes s and colors every case-insensitive occurrence of
// query. Text whose lowercase form changes byte length is left plain.
func highlight(s, query, color string) string {
	lower, q := strings.ToLower(s), strings.ToLower(query)
	if q == "" || len(lower) != len(s) {
		return tview.Escape(s)
	}
	var b strings.Builder
	for {
		i := strings.Index(lower, q)
		if i < 0 {
			b.WriteString(tview.Escape(s))
			return b.String()
		}
		b.WriteString(tview.Escape(s[:i]))
		fmt.Fprintf(&b, "[%s::b]%s[-:-:-]", color, tview.Escape(s[i:i+len(q)]))
		s, lower = s[i+len(q):], lower[i+len(q):]
	}
}
