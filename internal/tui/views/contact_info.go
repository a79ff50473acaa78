package views

import (
	"fmt"
	"strconv"

	"github.com/rivo/tview"

	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/tui/ui"
)

// ContactInfo displays details about a contact.
type ContactInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewContactInfo creates a new contact info view.
func NewContactInfo(theme *ui.Theme) *ContactInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Contact Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ContactInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ContactInfo) Name() string { return "Details" }

// Start implements Component.
func (ci *ContactInfo) Start() {}

// Stop implements Component.
func (ci *ContactInfo) Stop() {}

// Hints implements Component.
func (ci *ContactInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders the details of c.
func (ci *ContactInfo) Update(c *rpc.Contact) {
	ci.Clear()
	if c == nil {
		return
	}

	fg := colorName(ci.theme.FgColor)
	ct := colorName(ci.theme.CounterColor)

	presence := "offline"
	switch {
	case c.IsTyping:
		presence = "typing"
	case c.IsOnline:
		presence = "online"
	}
	lastActive := formatTimestamp(c.LastMessageAt)
	if lastActive == "" {
		lastActive = "-"
	}

	rows := []struct{ label, value string }{
		{"Name", displayName(c)},
		{"User ID", c.ID},
		{"Presence", presence},
		{"Unread", strconv.Itoa(c.UnreadCount)},
		{"Last Active", lastActive},
		{"Last Message", c.LastMessagePreview},
	}
	if c.AvatarRef != "" {
		rows = append(rows, struct{ label, value string }{"Avatar", c.AvatarRef})
	}

	for _, r := range rows {
		_, _ = fmt.Fprintf(ci, "\n [%s::b]%-13s[-:-:-] [%s]%s[-]", fg, r.label+":", ct, tview.Escape(oneLine(r.value)))
	}
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(oneLine(displayName(c)))))
}
