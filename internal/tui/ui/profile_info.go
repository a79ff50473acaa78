package ui

import (
	"fmt"
	"time"

	"github.com/hako/durafmt"
	"github.com/rivo/tview"
)

// ProfileData holds the header summary of the running daemon.
type ProfileData struct {
	Profile   string
	UserID    string
	State     string
	Connected bool
	Online    int
	Queued    int
	Contacts  int64
	Messages  int64
	Uptime    time.Duration
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data *ProfileData) {
	pi.Clear()
	if data == nil {
		return
	}

	fg := colorName(pi.theme.FgColor)
	ct := colorName(pi.theme.CounterColor)

	state := data.State
	if data.Connected {
		state = fmt.Sprintf("[%s]%s[-]", colorName(pi.theme.OnlineColor), state)
	} else {
		state = fmt.Sprintf("[%s]%s[-]", colorName(pi.theme.FlashWarnColor), state)
	}

	text := fmt.Sprintf(
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Link:[-:-:-]    %s\n"+
			"[%s::b]Online:[-:-:-]  [%s]%d[-]\n"+
			"[%s::b]Queued:[-:-:-]  [%s]%d[-]\n"+
			"[%s::b]Archive:[-:-:-] [%s]%d contacts, %d msgs[-]\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fg, ct, tview.Escape(data.Profile),
		fg, ct, tview.Escape(data.UserID),
		fg, state,
		fg, ct, data.Online,
		fg, ct, data.Queued,
		fg, ct, data.Contacts, data.Messages,
		fg, ct, FormatUptime(data.Uptime),
	)

	_, _ = fmt.Fprint(pi, text)
}

// FormatUptime renders d with its two largest units, e.g. "1 hour 30 minutes".
func FormatUptime(d time.Duration) string {
	if d < time.Second {
		return "just started"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(2).String()
}
