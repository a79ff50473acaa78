package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/gigchat/internal/tui/ui"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Start implements Component.
func (hv *HelpView) Start() {}

// Stop implements Component.
func (hv *HelpView) Stop() {}

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := colorName(hv.theme.MenuKeyColor)
	k := func(key string) string { return "[" + kc + "]" + tview.Escape(key) + "[-:-:-]" }

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  %s      Command mode          %s    Cancel / Go back
  %s      Filter contacts       %s      Help
  %s      Quit / Back           %s Quit immediately

  [::b]Contacts[-:-:-]

  %s  Open conversation     %s      Show all (clear filter)
  %s    Jump to Nth contact   %s      My contact card
  %s Move down             %s  Move up

  [::b]Conversation[-:-:-]

  %s      Focus composer        %s      Contact details
  %s    Select message        %s      Reply to selected
  %s      Delete selected       %s    Back to contacts

  [::b]Composer[-:-:-]

  %s               Send message or staged attachment
  %s / %s  New line
  %s                 Leave composer

  [::b]Commands (: mode)[-:-:-]

  %s         Open a conversation by name or id
  %s       Search archived messages
  %s         Stage a file for the active conversation
  %s                Drop the staged file
  %s                 Reply to the selected message
  %s               Stop replying
  %s                Delete the selected message
  %s                  Show my contact card
  %s / %s            Show this help
  %s / %s            Quit
`,
		k(":"), k("Esc"),
		k("/"), k("?"),
		k("q"), k("Ctrl-C"),
		k("Enter"), k("0"),
		k("1-9"), k("c"),
		k("j/Down"), k("k/Up"),
		k("i"), k("d"),
		k("j/k"), k("r"),
		k("x"), k("Esc"),
		k("Enter"),
		k("Shift+Enter"), k("Ctrl+J"),
		k("Esc"),
		k(":open <name>"),
		k(":search <query>"),
		k(":attach <path>"),
		k(":detach"),
		k(":reply"),
		k(":unreply"),
		k(":delete"),
		k(":card"),
		k(":help"), k(":h"),
		k(":quit"), k(":q"),
	)

	_, _ = fmt.Fprint(hv, help)
}
