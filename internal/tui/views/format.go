package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/rpc"
)

// now is replaced in tests.
var now = time.Now

// formatTimestamp is relative within the hour, a clock time today and a date
// before that.
func formatTimestamp(ts *timestamppb.Timestamp) string {
	if ts == nil {
		return ""
	}
	t := ts.AsTime().Local()
	n := now()
	switch {
	case n.Sub(t) < time.Minute:
		return "now"
	case n.Sub(t) < time.Hour:
		return humanize.RelTime(t, n, "ago", "from now")
	case t.Year() == n.Year() && t.YearDay() == n.YearDay():
		return t.Format("15:04")
	}
	return t.Format("01/02")
}

// statusTick is the delivery marker shown after our own messages.
func statusTick(status string) string {
	switch chat.Status(status) {
	case chat.Sending:
		return "…"
	case chat.Sent:
		return "✓"
	case chat.Delivered:
		return "✓✓"
	case chat.Read:
		return "[blue]✓✓[-]"
	case chat.Failed:
		return "[red]! not sent[-]"
	}
	return ""
}

// attachmentLabel describes an image or file message.
func attachmentLabel(m *rpc.Message) string {
	name := m.AttachmentName
	if name == "" {
		name = "attachment"
	}
	label := fmt.Sprintf("[%s] %s", m.Kind, name)
	if m.AttachmentSize > 0 {
		label += " (" + humanize.Bytes(uint64(m.AttachmentSize)) + ")"
	}
	return label
}

// body returns the message text, or the attachment label.
func body(m *rpc.Message) string {
	if m.Kind == string(chat.KindImage) || m.Kind == string(chat.KindFile) {
		return attachmentLabel(m)
	}
	return m.Text
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
