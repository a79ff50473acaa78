package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/status"
)

// StatusBar displays the link state and who is typing.
type StatusBar struct {
	*tview.TextView
	profile string
	state   string
	queued  int
	typing  string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv}
}

// SetStatus copies the daemon status.
func (sb *StatusBar) SetStatus(st *rpc.Status) {
	if st == nil {
		sb.state = ""
	} else {
		sb.profile = st.Profile
		sb.state = st.State
		sb.queued = st.QueuedFrames
	}
	sb.render()
}

// SetTyping names the peer typing in the open conversation; "" clears it.
func (sb *StatusBar) SetTyping(name string) {
	sb.typing = name
	sb.render()
}

func stateLabel(state string) string {
	switch status.State(state) {
	case status.Online:
		return "[green]● online[-]"
	case status.Connecting, status.Authenticating:
		return "[yellow]◌ connecting[-]"
	case status.Reconnecting:
		return "[yellow]◌ reconnecting[-]"
	case status.Idle, status.Closed:
		return "[red]○ offline[-]"
	case "":
		return "[red]○ daemon unreachable[-]"
	}
	return tview.Escape(state)
}

func (sb *StatusBar) render() {
	sb.Clear()

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s", tview.Escape(sb.profile), stateLabel(sb.state))
	if sb.queued > 0 {
		line += fmt.Sprintf(" | %d queued", sb.queued)
	}
	if sb.typing != "" {
		line += fmt.Sprintf(" | [khaki]%s is typing…[-]", tview.Escape(oneLine(sb.typing)))
	}
	line += " | " + now().Format("15:04")

	_, _ = fmt.Fprint(sb, line)
}
