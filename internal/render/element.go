// Package render holds the widget's rendering targets: a small element tree
// that can be mutated concurrently and rendered as HTML or to a terminal.
package render

import (
	"sort"
	"strings"
	"sync"
)

// Container is a region that can take child nodes and be emptied.
type Container interface {
	AppendChild(child *Element)
	Clear()
}

// Toggle is a region that can be shown or hidden.
type Toggle interface {
	Show()
	Hide()
}

// MessageArea is a toggleable region holding a single line of text.
type MessageArea interface {
	Toggle
	SetText(text string)
}

// Element is a mutable node. All methods are safe for concurrent use.
type Element struct {
	mu       sync.RWMutex
	tag      string
	id       string
	classes  []string
	attrs    map[string]string
	text     string
	hidden   bool
	children []*Element
}

// NewElement creates an element with the given tag and classes
func NewElement(tag string, classes ...string) *Element {
	e := &Element{tag: tag, attrs: map[string]string{}}
	for _, c := range classes {
		e.AddClass(c)
	}
	return e
}

// WithID sets the id and returns the element for chaining
func (e *Element) WithID(id string) *Element {
	e.mu.Lock()
	e.id = id
	e.mu.Unlock()
	return e
}

// WithText sets the text content and returns the element for chaining
func (e *Element) WithText(text string) *Element {
	e.SetText(text)
	return e
}

func (e *Element) Tag() string {
	return e.tag
}

func (e *Element) ID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.id
}

// SetAttr sets an attribute; an empty value removes it
func (e *Element) SetAttr(name, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if value == "" {
		delete(e.attrs, name)
		return
	}
	e.attrs[name] = value
}

func (e *Element) Attr(name string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.attrs[name]
}

func (e *Element) AddClass(class string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range e.classes {
		if c == class {
			return
		}
	}
	e.classes = append(e.classes, class)
}

func (e *Element) RemoveClass(class string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, c := range e.classes {
		if c == class {
			e.classes = append(e.classes[:i], e.classes[i+1:]...)
			return
		}
	}
}

func (e *Element) HasClass(class string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, c := range e.classes {
		if c == class {
			return true
		}
	}
	return false
}

// SetText replaces the text content. Children are kept.
func (e *Element) SetText(text string) {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
}

func (e *Element) Text() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.text
}

func (e *Element) Show() {
	e.mu.Lock()
	e.hidden = false
	e.mu.Unlock()
}

func (e *Element) Hide() {
	e.mu.Lock()
	e.hidden = true
	e.mu.Unlock()
}

func (e *Element) Hidden() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hidden
}

func (e *Element) AppendChild(child *Element) {
	if child == nil {
		return
	}
	e.mu.Lock()
	e.children = append(e.children, child)
	e.mu.Unlock()
}

func (e *Element) Clear() {
	e.mu.Lock()
	e.children = nil
	e.mu.Unlock()
}

// Children returns a copy of the child list
func (e *Element) Children() []*Element {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// Snapshot captures the subtree as an immutable Node
func (e *Element) Snapshot() Node {
	e.mu.RLock()
	n := Node{
		Tag:    e.tag,
		ID:     e.id,
		Text:   e.text,
		Hidden: e.hidden,
	}
	if len(e.classes) > 0 {
		n.Classes = append([]string(nil), e.classes...)
	}
	if len(e.attrs) > 0 {
		n.Attrs = make(map[string]string, len(e.attrs))
		for k, v := range e.attrs {
			n.Attrs[k] = v
		}
	}
	children := make([]*Element, len(e.children))
	copy(children, e.children)
	e.mu.RUnlock()

	for _, c := range children {
		n.Children = append(n.Children, c.Snapshot())
	}
	return n
}

// Node is a point-in-time copy of an element subtree
type Node struct {
	Tag      string            `json:"tag"`
	ID       string            `json:"id,omitempty"`
	Classes  []string          `json:"classes,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Hidden   bool              `json:"hidden,omitempty"`
	Children []Node            `json:"children,omitempty"`
}

func (n Node) HasClass(class string) bool {
	for _, c := range n.Classes {
		if c == class {
			return true
		}
	}
	return false
}

// FindByClass returns every descendant (including n) carrying class, in
// document order
func (n Node) FindByClass(class string) []Node {
	var out []Node
	n.walk(func(m Node) {
		if m.HasClass(class) {
			out = append(out, m)
		}
	})
	return out
}

// FindByTag returns every descendant (including n) with the given tag
func (n Node) FindByTag(tag string) []Node {
	var out []Node
	n.walk(func(m Node) {
		if m.Tag == tag {
			out = append(out, m)
		}
	})
	return out
}

// FindByID returns the first node with the given id
func (n Node) FindByID(id string) (Node, bool) {
	if n.ID == id {
		return n, true
	}
	for _, c := range n.Children {
		if found, ok := c.FindByID(id); ok {
			return found, true
		}
	}
	return Node{}, false
}

// TextContent joins the text of the subtree, one entry per non-empty node
func (n Node) TextContent() string {
	var parts []string
	n.walk(func(m Node) {
		if m.Text != "" {
			parts = append(parts, m.Text)
		}
	})
	return strings.Join(parts, "\n")
}

func (n Node) walk(fn func(Node)) {
	fn(n)
	for _, c := range n.Children {
		c.walk(fn)
	}
}

func (n Node) sortedAttrNames() []string {
	names := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
