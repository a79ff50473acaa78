package ui

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rivo/tview"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakePage struct {
	*tview.Box
	name          string
	starts, stops int
}

func (f *fakePage) Name() string       { return f.name }
func (f *fakePage) Hints() []MenuHint { return nil }
func (f *fakePage) Start()             { f.starts++ }
func (f *fakePage) Stop()              { f.stops++ }

func TestPagesStack(t *testing.T) {
	p := NewPages()
	pages := map[string]*fakePage{}
	for _, name := range []string{"contacts", "thread", "search"} {
		pages[name] = &fakePage{Box: tview.NewBox(), name: strings.ToUpper(name)}
		p.Add(name, pages[name])
	}
	var trails [][]string
	p.SetOnChange(func(trail []Component) {
		var names []string
		for _, c := range trail {
			names = append(names, c.Name())
		}
		trails = append(trails, names)
	})

	p.Push("contacts")
	p.Push("thread")
	p.Push("search")
	if p.Current() != "search" || p.Depth() != 3 {
		t.Fatalf("current = %q depth = %d", p.Current(), p.Depth())
	}
	if pages["thread"].starts != 1 || pages["thread"].stops != 1 {
		t.Errorf("thread starts/stops = %d/%d", pages["thread"].starts, pages["thread"].stops)
	}
	if got := p.Pop(); got != "search" {
		t.Errorf("Pop() = %q, want search", got)
	}
	if p.Current() != "thread" || pages["search"].stops != 1 {
		t.Errorf("current after pop = %q", p.Current())
	}

	// Pushing a page already on the stack moves it to the top.
	p.Push("contacts")
	if want := []string{"thread", "contacts"}; !reflect.DeepEqual(p.Stack(), want) {
		t.Errorf("stack = %v, want %v", p.Stack(), want)
	}

	p.Reset("contacts", "thread")
	if want := []string{"contacts", "thread"}; !reflect.DeepEqual(p.Stack(), want) {
		t.Errorf("stack = %v, want %v", p.Stack(), want)
	}
	if want := []string{"CONTACTS", "THREAD"}; !reflect.DeepEqual(trails[len(trails)-1], want) {
		t.Errorf("last trail = %v, want %v", trails[len(trails)-1], want)
	}
	if len(trails) != 6 {
		t.Errorf("onChange calls = %d, want 6", len(trails))
	}

	p.Pop()
	p.Pop()
	if p.Pop() != "" {
		t.Error("Pop() on empty stack returned a page")
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.Activate(PromptCommand)
	p.remember("open ana")
	p.remember("search invoice")
	p.remember("search invoice")

	if got := p.recall(-1); got != "search invoice" {
		t.Errorf("recall(-1) = %q", got)
	}
	if got := p.recall(-1); got != "open ana" {
		t.Errorf("recall(-1) = %q", got)
	}
	if got := p.recall(-1); got != "open ana" {
		t.Errorf("recall should stop at the oldest, got %q", got)
	}
	p.recall(1)
	if got := p.recall(1); got != "" {
		t.Errorf("past newest = %q, want empty", got)
	}

	for i := 0; i < historySize+10; i++ {
		p.remember(strings.Repeat("x", i+1))
	}
	if len(p.history) != historySize {
		t.Errorf("history len = %d", len(p.history))
	}
}

func TestPromptCompletion(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	p.SetCompletions([]string{"search", "send", "open", "quit"})
	p.Activate(PromptCommand)

	if got := p.complete("se"); !reflect.DeepEqual(got, []string{"search", "send"}) {
		t.Errorf("complete(se) = %v", got)
	}
	if got := p.complete("open ana"); got != nil {
		t.Errorf("arguments must not complete: %v", got)
	}
	p.Activate(PromptFilter)
	if got := p.complete("se"); got != nil {
		t.Errorf("filter mode must not complete: %v", got)
	}
}

func TestLayoutHints(t *testing.T) {
	hints := []MenuHint{
		{Key: "a", Description: "one"},
		{Key: "b", Description: "two"},
		{Key: "c", Description: "three"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
	lines := layoutHints(hints, 3, "K", "N")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "[K::b]<a>[-:-:-] one") || !strings.Contains(lines[0], "[N::b]<1-9>[-:-:-] Jump") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if strings.HasSuffix(lines[2], " ") {
		t.Errorf("line 2 has trailing space: %q", lines[2])
	}
	if got := layoutHints(hints[:1], 5, "K", "N"); len(got) != 1 {
		t.Errorf("short menu lines = %d", len(got))
	}
}

func TestCrumbLine(t *testing.T) {
	line := crumbLine([]string{"Contacts", "Ana [admin] with a very long display name"}, DefaultTheme())
	if !strings.Contains(line, " › ") {
		t.Errorf("separator missing: %q", line)
	}
	if !strings.Contains(line, "…") {
		t.Errorf("long label not truncated: %q", line)
	}
	if strings.Contains(line, "[admin]") {
		t.Errorf("label not escaped: %q", line)
	}
	if truncate("short", 10) != "short" {
		t.Error("short label changed")
	}
}

func TestFlashExpiry(t *testing.T) {
	f := NewFlashModel()
	f.Set("sent", 20*time.Millisecond)
	if f.Get() != "sent" {
		t.Errorf("Get() = %q, want sent", f.Get())
	}
	select {
	case m := <-f.Watch():
		if m.Level != FlashInfo {
			t.Errorf("level = %v, want info", m.Level)
		}
	default:
		t.Error("no flash on watch channel")
	}
	time.Sleep(30 * time.Millisecond)
	if f.Get() != "" || f.GetMessage() != nil {
		t.Error("flash did not expire")
	}
}

func TestFlashKeepsNewest(t *testing.T) {
	f := NewFlashModel()
	for i := 0; i < 20; i++ {
		f.Info(strings.Repeat("m", i+1))
	}
	var last FlashMessage
	for {
		select {
		case m := <-f.Watch():
			last = m
			continue
		default:
		}
		break
	}
	if last.Text != strings.Repeat("m", 20) {
		t.Errorf("newest message dropped, last = %q", last.Text)
	}

	f.Clear()
	if f.GetMessage() != nil {
		t.Error("Clear kept the message")
	}
	f.Err(nil)
	if f.GetMessage() != nil {
		t.Error("nil error produced a flash")
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{status.Error(codes.FailedPrecondition, "no active contact"), "no active contact"},
		{status.Error(codes.Unavailable, "connection refused"), "daemon unreachable: connection refused"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := ErrorText(tt.err); got != tt.want {
			t.Errorf("ErrorText(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}

	f := NewFlashModel()
	f.Err(status.Error(codes.NotFound, "unknown contact"))
	if m := f.GetMessage(); m == nil || m.Level != FlashErr || m.Text != "unknown contact" {
		t.Errorf("flash = %+v", m)
	}
}

func TestFormatUptime(t *testing.T) {
	if got := FormatUptime(0); got != "just started" {
		t.Errorf("FormatUptime(0) = %q", got)
	}
	if got := FormatUptime(90*time.Minute + 5*time.Second); got != "1 hour 30 minutes" {
		t.Errorf("FormatUptime(90m5s) = %q, want %q", got, "1 hour 30 minutes")
	}
}

func TestLogoText(t *testing.T) {
	theme := DefaultTheme()
	off := logoText(theme, false)
	on := logoText(theme, true)
	if !strings.HasSuffix(off, "offline[-:-:-]") {
		t.Errorf("offline logo = %q", off)
	}
	if !strings.Contains(on, "freelance messaging") || !strings.Contains(on, colorName(theme.TitleColor)+"::b") {
		t.Errorf("online logo = %q", on)
	}
	if got := strings.Count(on, "\n"); got != len(logoArt) {
		t.Errorf("lines = %d, want %d", got, len(logoArt))
	}
}
