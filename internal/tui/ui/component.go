package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // digit shortcuts get their own color
}

// Component is a page of the UI. Pages calls Start when the page comes to
// the top of the stack and Stop when it leaves it.
type Component interface {
	tview.Primitive
	Name() string
	Hints() []MenuHint
	Start()
	Stop()
}
