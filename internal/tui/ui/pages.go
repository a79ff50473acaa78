package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages is a navigation stack of components on top of tview.Pages.
type Pages struct {
	*tview.Pages
	components map[string]Component
	stack      []string
	onChange   func(trail []Component)
}

// NewPages creates an empty stack.
func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		components: make(map[string]Component),
	}
}

// Add registers a component under name, hidden.
func (p *Pages) Add(name string, c Component) {
	p.components[name] = c
	p.AddPage(name, c, true, false)
}

// Component returns the component registered under name.
func (p *Pages) Component(name string) Component {
	return p.components[name]
}

// SetOnChange sets a callback that receives the stack, bottom first, after
// every change.
func (p *Pages) SetOnChange(fn func(trail []Component)) {
	p.onChange = fn
}

// Push shows name on top of the stack. A page already on the stack moves to
// the top.
func (p *Pages) Push(name string) {
	if p.Current() == name {
		return
	}
	prev := p.Current()
	p.stack = slices.DeleteFunc(p.stack, func(n string) bool { return n == name })
	p.stack = append(p.stack, name)
	p.switchTop(prev)
}

// Pop removes the top page and returns its name, or "" when the stack is
// empty.
func (p *Pages) Pop() string {
	if len(p.stack) == 0 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	p.switchTop(top)
	return top
}

// Reset replaces the stack with path, bottom first.
func (p *Pages) Reset(path ...string) {
	prev := p.Current()
	p.stack = slices.Clone(path)
	p.switchTop(prev)
}

func (p *Pages) switchTop(prev string) {
	cur := p.Current()
	if prev != cur {
		if prev != "" {
			p.HidePage(prev)
			if c := p.components[prev]; c != nil {
				c.Stop()
			}
		}
		if cur != "" {
			p.ShowPage(cur)
			p.SendToFront(cur)
			if c := p.components[cur]; c != nil {
				c.Start()
			}
		}
	}
	if p.onChange != nil {
		p.onChange(p.Trail())
	}
}

// Current returns the name of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns a copy of the page names, bottom first.
func (p *Pages) Stack() []string {
	return slices.Clone(p.stack)
}

// Trail returns the components of the stack, bottom first.
func (p *Pages) Trail() []Component {
	out := make([]Component, 0, len(p.stack))
	for _, n := range p.stack {
		if c := p.components[n]; c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}
