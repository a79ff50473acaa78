// Package keys maps terminal key events to UI actions.
package keys

import (
	"sort"

	"github.com/gdamore/tcell/v2"
)

// Action represents a keybinding action.
type Action struct {
	Key         tcell.Key
	Rune        rune
	Description string
	Handler     func()
	Visible     bool
}

// Matches returns true if the event matches this action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	return a.match(ev.Key(), ev.Rune())
}

func (a *Action) match(key tcell.Key, r rune) bool {
	if a.Key != tcell.KeyRune {
		return key == a.Key
	}
	return key == tcell.KeyRune && r == a.Rune
}

// Registry holds keybindings organized by page.
type Registry struct {
	Global map[string]*Action
	Views  map[string]map[string]*Action
}

// NewRegistry creates a new keybinding registry.
func NewRegistry() *Registry {
	return &Registry{
		Global: make(map[string]*Action),
		Views:  make(map[string]map[string]*Action),
	}
}

// AddGlobal registers a global keybinding.
func (r *Registry) AddGlobal(name string, action *Action) {
	r.Global[name] = action
}

// AddView registers a page-specific keybinding.
func (r *Registry) AddView(view, name string, action *Action) {
	if r.Views[view] == nil {
		r.Views[view] = make(map[string]*Action)
	}
	r.Views[view][name] = action
}

// Hints returns visible keybinding descriptions for a page, page bindings
// first, each group sorted.
func (r *Registry) Hints(view string) []string {
	hints := visible(r.Views[view])
	return append(hints, visible(r.Global)...)
}

func visible(m map[string]*Action) []string {
	var out []string
	for _, a := range m {
		if a.Visible {
			out = append(out, a.Description)
		}
	}
	sort.Strings(out)
	return out
}

// HandleEvent dispatches a key event to the matching action of view, then
// to the global bindings. Returns true if a handler ran.
func (r *Registry) HandleEvent(view string, ev *tcell.EventKey) bool {
	return r.handle(view, ev.Key(), ev.Rune())
}

func (r *Registry) handle(view string, key tcell.Key, ch rune) bool {
	for _, a := range r.Views[view] {
		if a.match(key, ch) {
			a.Handler()
			return true
		}
	}
	for _, a := range r.Global {
		if a.match(key, ch) {
			a.Handler()
			return true
		}
	}
	return false
}

// ComposerKey is what a key press means inside the message composer.
type ComposerKey int

const (
	// ComposerInput lets the text area handle the key.
	ComposerInput ComposerKey = iota
	// ComposerSend submits the draft.
	ComposerSend
	// ComposerNewline inserts a line break.
	ComposerNewline
	// ComposerLeave returns focus to the thread.
	ComposerLeave
)

// Composer classifies a key press. Enter sends; Shift+Enter, Alt+Enter and
// Ctrl+J insert a newline, since many terminals cannot report Shift+Enter.
func Composer(key tcell.Key, mod tcell.ModMask) ComposerKey {
	switch key {
	case tcell.KeyEnter:
		if mod&(tcell.ModShift|tcell.ModAlt) != 0 {
			return ComposerNewline
		}
		return ComposerSend
	case tcell.KeyCtrlJ:
		return ComposerNewline
	case tcell.KeyEscape:
		return ComposerLeave
	}
	return ComposerInput
}
