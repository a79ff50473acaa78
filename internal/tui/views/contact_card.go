package views

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/rivo/tview"

	"github.com/matheus3301/gigchat/internal/tui/ui"
)

// CardURI is the link a peer scans to start a conversation with userID.
func CardURI(userID string) string {
	return "gigchat://user/" + userID
}

// ContactCard shows the local user's id as a scannable QR code.
type ContactCard struct {
	*tview.TextView
	theme *ui.Theme
}

// NewContactCard creates the card view.
func NewContactCard(theme *ui.Theme) *ContactCard {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" My Card ")
	tv.SetTitleColor(theme.TitleColor)

	return &ContactCard{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (cc *ContactCard) Name() string { return "Card" }

// Start implements Component.
func (cc *ContactCard) Start() {}

// Stop implements Component.
func (cc *ContactCard) Stop() {}

// Hints implements Component.
func (cc *ContactCard) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

// Show renders the card for userID.
func (cc *ContactCard) Show(userID string) {
	cc.Clear()
	if userID == "" {
		_, _ = fmt.Fprint(cc, "\n\n  No user id configured for this profile.")
		return
	}
	uri := CardURI(userID)
	_, _ = fmt.Fprintf(cc, "\n  Share this code so clients can message you:\n\n%s\n  [::b]%s[-:-:-]\n  [::d]%s[-:-:-]",
		tview.Escape(RenderQR(uri)), tview.Escape(userID), tview.Escape(uri))
}

// RenderQR converts a string to a compact QR code using Unicode half-block
// characters, two modules per row.
func RenderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := y+1 < rows && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
