package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/tui/ui"
)

// ContactList is the contact directory table.
type ContactList struct {
	*tview.Table
	theme    *ui.Theme
	contacts []*rpc.Contact
	filter   string
	visible  []*rpc.Contact
}

// NewContactList creates the directory table.
func NewContactList(theme *ui.Theme) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Contacts ")
	table.SetTitleColor(theme.TitleColor)

	return &ContactList{
		Table: table,
		theme: theme,
	}
}

// Name implements Component.
func (cl *ContactList) Name() string { return "Contacts" }

// Start implements Component.
func (cl *ContactList) Start() {}

// Stop implements Component.
func (cl *ContactList) Stop() {}

// Hints implements Component.
func (cl *ContactList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "c", Description: "My card"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the contacts, keeping the cursor on the same contact.
func (cl *ContactList) Update(contacts []*rpc.Contact) {
	selected := cl.SelectedContact()
	cl.contacts = contacts
	cl.render()
	cl.SelectContact(selected)
}

// SetFilter sets the active filter text and re-renders.
func (cl *ContactList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ContactList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

func displayName(c *rpc.Contact) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ID
}

func (cl *ContactList) matches(c *rpc.Contact) bool {
	return cl.filter == "" ||
		containsFold(displayName(c), cl.filter) ||
		containsFold(c.ID, cl.filter) ||
		containsFold(c.LastMessagePreview, cl.filter)
}

func (cl *ContactList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{"  ", 0},
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	cl.visible = cl.visible[:0]
	for _, c := range cl.contacts {
		if !cl.matches(c) {
			continue
		}
		cl.visible = append(cl.visible, c)
		row := len(cl.visible)

		dot := tview.NewTableCell(" ○").SetTextColor(cl.theme.FgColor)
		if c.IsOnline {
			dot = tview.NewTableCell(" ●").SetTextColor(cl.theme.OnlineColor)
		}

		name := tview.Escape(oneLine(displayName(c)))
		if c.Active {
			name = "▸ " + name
		}
		nameCell := tview.NewTableCell(" " + name).SetExpansion(1).SetTextColor(cl.theme.FgColor)
		if c.UnreadCount > 0 {
			nameCell.SetText(fmt.Sprintf(" %s (%d)", name, c.UnreadCount)).
				SetTextColor(cl.theme.UnreadColor).
				SetAttributes(tcell.AttrBold)
		}

		preview := tview.NewTableCell(" " + tview.Escape(oneLine(c.LastMessagePreview))).
			SetExpansion(2).
			SetTextColor(cl.theme.FgColor)
		if c.IsTyping {
			preview.SetText(" typing…").SetTextColor(cl.theme.TypingColor)
		}

		cl.SetCell(row, 0, dot)
		cl.SetCell(row, 1, nameCell)
		cl.SetCell(row, 2, preview)
		cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(c.LastMessageAt)+" ").SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Contacts (%d/%d) filter: %s ", len(cl.visible), len(cl.contacts), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Contacts (%d) ", len(cl.contacts)))
	}
}

// SelectedContact returns the id under the cursor, or "".
func (cl *ContactList) SelectedContact() string {
	row, _ := cl.GetSelection()
	return cl.ContactByIndex(row)
}

// ContactByIndex returns the id of the Nth visible contact (1-based).
func (cl *ContactList) ContactByIndex(n int) string {
	if n < 1 || n > len(cl.visible) {
		return ""
	}
	return cl.visible[n-1].ID
}

// SelectContact moves the cursor to id when it is visible.
func (cl *ContactList) SelectContact(id string) {
	if id == "" {
		return
	}
	for i, c := range cl.visible {
		if c.ID == id {
			cl.Table.Select(i+1, 0)
			return
		}
	}
}

// Find returns the first contact whose name or id contains query.
func (cl *ContactList) Find(query string) string {
	for _, c := range cl.contacts {
		if c.ID == query {
			return c.ID
		}
	}
	for _, c := range cl.contacts {
		if containsFold(displayName(c), query) {
			return c.ID
		}
	}
	return ""
}
