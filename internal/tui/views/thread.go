package views

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/tui/keys"
	"github.com/matheus3301/gigchat/internal/tui/ui"
)

// Thread displays the active conversation and the composer.
type Thread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	banner   *tview.TextView
	composer *tview.TextArea

	contact  *rpc.Contact
	data     []*rpc.Message
	selected int
	reply    *rpc.ReplyRef
	staged   *rpc.StagedAttachment

	onSend   func(text string)
	onChange func(text string)
	onLeave  func()
	// quiet suppresses onChange while the text is replaced programmatically.
	quiet bool
}

// NewThread creates the conversation view.
func NewThread(theme *ui.Theme) *Thread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitle(" Messages ")
	messages.SetTitleColor(theme.TitleColor)

	banner := tview.NewTextView().SetDynamicColors(true)
	banner.SetBackgroundColor(theme.BgColor)

	composer := tview.NewTextArea().
		SetPlaceholder("Write a message (Enter sends, Shift+Enter for a new line)")
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(banner, 1, 0, false).
		AddItem(composer, 5, 0, false)

	t := &Thread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		banner:   banner,
		composer: composer,
		selected: -1,
	}

	composer.SetChangedFunc(t.changed)
	composer.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch keys.Composer(ev.Key(), ev.Modifiers()) {
		case keys.ComposerSend:
			t.submit()
			return nil
		case keys.ComposerNewline:
			if t.staged == nil {
				_, start, end := composer.GetSelection()
				composer.Replace(start, end, "\n")
				t.changed()
			}
			return nil
		case keys.ComposerLeave:
			if t.onLeave != nil {
				t.onLeave()
			}
			return nil
		}
		return ev
	})

	return t
}

// Name implements Component.
func (t *Thread) Name() string {
	if t.contact != nil {
		return displayName(t.contact)
	}
	return "Messages"
}

// Start implements Component.
func (t *Thread) Start() {}

// Stop implements Component.
func (t *Thread) Stop() {}

// Hints implements Component.
func (t *Thread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "j/k", Description: "Select"},
		{Key: "r", Description: "Reply"},
		{Key: "x", Description: "Delete"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
		{Key: ":", Description: "Command"},
	}
}

func (t *Thread) changed() {
	if !t.quiet && t.onChange != nil {
		t.onChange(t.composer.GetText())
	}
}

func (t *Thread) submit() {
	text := t.composer.GetText()
	if t.staged == nil && strings.TrimSpace(text) == "" {
		return
	}
	if t.onSend != nil {
		t.onSend(text)
	}
}

// SetOnSend sets the callback for Enter in the composer.
func (t *Thread) SetOnSend(fn func(text string)) { t.onSend = fn }

// SetOnChange sets the callback for composer edits.
func (t *Thread) SetOnChange(fn func(text string)) { t.onChange = fn }

// SetOnLeave sets the callback for Esc in the composer.
func (t *Thread) SetOnLeave(fn func()) { t.onLeave = fn }

// ClearComposer empties the composer without reporting a change.
func (t *Thread) ClearComposer() {
	t.quiet = true
	t.composer.SetText("", true)
	t.quiet = false
}

// SetContact updates the title with the peer's name and presence.
func (t *Thread) SetContact(c *rpc.Contact) {
	t.contact = c
	if c == nil {
		t.messages.SetTitle(" Messages ")
		return
	}
	title := " " + tview.Escape(oneLine(displayName(c))) + " "
	switch {
	case c.IsTyping:
		title += fmt.Sprintf("[%s]typing…[-] ", colorName(t.theme.TypingColor))
	case c.IsOnline:
		title += fmt.Sprintf("[%s]online[-] ", colorName(t.theme.OnlineColor))
	}
	t.messages.SetTitle(title)
}

// SetReply shows the quoted message above the composer.
func (t *Thread) SetReply(r *rpc.ReplyRef) {
	t.reply = r
	t.renderBanner()
}

// SetDraft reflects a staged attachment; text input is disabled meanwhile.
func (t *Thread) SetDraft(d *rpc.Draft) {
	var staged *rpc.StagedAttachment
	if d != nil {
		staged = d.Staged
	}
	t.staged = staged
	if staged != nil {
		t.ClearComposer()
		t.composer.SetPlaceholder("Attachment staged: Enter sends, :detach removes it")
	} else {
		t.composer.SetPlaceholder("Write a message (Enter sends, Shift+Enter for a new line)")
	}
	t.composer.SetDisabled(staged != nil)
	t.renderBanner()
}

func (t *Thread) renderBanner() {
	t.banner.Clear()
	switch {
	case t.staged != nil:
		_, _ = fmt.Fprintf(t.banner, " [%s]📎 %s (%s, %s)[-]",
			colorName(t.theme.UnreadColor),
			tview.Escape(oneLine(t.staged.Name)), t.staged.Kind, humanize.Bytes(uint64(t.staged.Size)))
	case t.reply != nil:
		_, _ = fmt.Fprintf(t.banner, " [%s]↪ replying to: %s[-]",
			colorName(t.theme.QuoteColor), tview.Escape(oneLine(t.reply.Preview)))
	}
}

// Update renders msgs (oldest first). names resolves sender ids.
func (t *Thread) Update(msgs []*rpc.Message, names func(id string) string) {
	prevID := ""
	if m := t.SelectedMessage(); m != nil {
		prevID = m.ID
	}
	t.data = msgs
	t.selected = -1
	for i, m := range msgs {
		if m.ID == prevID || (m.TempID != "" && m.TempID == prevID) {
			t.selected = i
		}
	}

	t.messages.Clear()
	var b strings.Builder
	for i, m := range msgs {
		b.WriteString(`["m` + strconv.Itoa(i) + `"]`)
		b.WriteString(renderMessage(m, names, t.theme))
		b.WriteString(`[""]`)
	}
	_, _ = fmt.Fprint(t.messages, b.String())
	t.highlight()
}

// MoveSelection moves the message cursor by delta, starting from the newest.
func (t *Thread) MoveSelection(delta int) {
	if len(t.data) == 0 {
		return
	}
	if t.selected < 0 {
		t.selected = len(t.data)
	}
	t.selected = min(max(t.selected+delta, 0), len(t.data)-1)
	t.highlight()
}

// ClearSelection drops the message cursor.
func (t *Thread) ClearSelection() {
	t.selected = -1
	t.highlight()
}

func (t *Thread) highlight() {
	if t.selected < 0 {
		t.messages.Highlight()
		return
	}
	t.messages.Highlight("m" + strconv.Itoa(t.selected))
	t.messages.ScrollToHighlight()
}

// SelectedMessage returns the message under the cursor, or nil.
func (t *Thread) SelectedMessage() *rpc.Message {
	if t.selected < 0 || t.selected >= len(t.data) {
		return nil
	}
	return t.data[t.selected]
}

// ScrollToEnd jumps to the newest message.
func (t *Thread) ScrollToEnd() {
	if t.selected < 0 {
		t.messages.ScrollToEnd()
	}
}

// Messages returns the messages text view (for focus management).
func (t *Thread) Messages() *tview.TextView { return t.messages }

// Composer returns the composer (for focus management).
func (t *Thread) Composer() *tview.TextArea { return t.composer }

// renderMessage formats one message block.
func renderMessage(m *rpc.Message, names func(string) string, theme *ui.Theme) string {
	sender := "You"
	if !m.FromMe {
		sender = m.SenderID
		if names != nil {
			if n := names(m.SenderID); n != "" {
				sender = n
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]%s[-:-:-]", tview.Escape(oneLine(sender)), formatTimestamp(m.Timestamp))
	if m.FromMe {
		if tick := statusTick(m.Status); tick != "" {
			b.WriteString(" " + tick)
		}
	}
	b.WriteString("\n")
	if r := m.ReplyTo; r != nil {
		fmt.Fprintf(&b, "[%s]│ %s[-]\n", colorName(theme.QuoteColor), tview.Escape(oneLine(r.Preview)))
	}
	b.WriteString(tview.Escape(sanitizeForTerminal(body(m))))
	if m.URL != "" {
		fmt.Fprintf(&b, "\n[::u]%s[::-]", tview.Escape(m.URL))
	}
	b.WriteString("\n\n")
	return b.String()
}

func colorName(c tcell.Color) string {
	return fmt.Sprintf("#%06x", c.Hex())
}
