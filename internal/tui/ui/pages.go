package ui

import "github.com/rivo/tview"

// Pages is a stack of named components on top of tview.Pages. Every change to
// the stack reports the new top and the breadcrumb trail.
type Pages struct {
	*tview.Pages
	components map[string]Component
	stack      []string
	onChange   func(top Component, trail []string)
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

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(top Component, trail []string)) {
	p.onChange = fn
}

// Push shows name on top of the stack. Pushing the current top or an unknown
// name does nothing and returns false.
func (p *Pages) Push(name string) bool {
	if _, ok := p.components[name]; !ok || p.Current() == name {
		return false
	}
	if len(p.stack) > 0 {
		p.HidePage(p.Current())
	}
	p.stack = append(p.stack, name)
	p.show(name)
	return true
}

// Pop removes the top page and shows the one beneath it. The bottom page is
// never popped; Pop returns "" in that case.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.Current()
	p.HidePage(top)
	p.stack = p.stack[:len(p.stack)-1]
	p.show(p.Current())
	return top
}

// Current returns the name of the top page.
func (p *Pages) Current() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Top returns the component on top of the stack, or nil.
func (p *Pages) Top() Component {
	return p.components[p.Current()]
}

// Depth returns the current stack depth.
func (p *Pages) Depth() int {
	return len(p.stack)
}

// Reset clears the stack down to name.
func (p *Pages) Reset(name string) {
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.show(name)
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
	if p.onChange == nil {
		return
	}
	trail := make([]string, 0, len(p.stack))
	for _, n := range p.stack {
		trail = append(trail, p.components[n].Name())
	}
	p.onChange(p.components[name], trail)
}
