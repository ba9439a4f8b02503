package render

import (
	"bufio"
	"html"
	"io"
	"strings"
)

// HTMLOption customises WriteHTML
type HTMLOption func(*htmlOptions)

type htmlOptions struct {
	rewriteURL func(string) string
	indent     string
}

// WithURLRewriter maps src attributes before they are written, e.g. to turn
// object URLs into routes the server can answer
func WithURLRewriter(fn func(string) string) HTMLOption {
	return func(o *htmlOptions) {
		o.rewriteURL = fn
	}
}

// WithIndent pretty-prints nested elements
func WithIndent(indent string) HTMLOption {
	return func(o *htmlOptions) {
		o.indent = indent
	}
}

var voidElements = map[string]bool{"img": true, "br": true, "hr": true, "input": true}

// WriteHTML serialises n as HTML. Text and attribute values are escaped.
func WriteHTML(w io.Writer, n Node, opts ...HTMLOption) error {
	o := &htmlOptions{}
	for _, opt := range opts {
		opt(o)
	}
	bw := bufio.NewWriter(w)
	writeNode(bw, n, o, 0)
	return bw.Flush()
}

// HTMLString is WriteHTML into a string
func HTMLString(n Node, opts ...HTMLOption) string {
	var sb strings.Builder
	_ = WriteHTML(&sb, n, opts...)
	return sb.String()
}

func writeNode(w *bufio.Writer, n Node, o *htmlOptions, depth int) {
	if o.indent != "" {
		if depth > 0 {
			w.WriteString("\n")
		}
		w.WriteString(strings.Repeat(o.indent, depth))
	}

	w.WriteString("<")
	w.WriteString(n.Tag)
	if n.ID != "" {
		writeAttr(w, "id", n.ID)
	}
	if len(n.Classes) > 0 {
		writeAttr(w, "class", strings.Join(n.Classes, " "))
	}
	for _, name := range n.sortedAttrNames() {
		value := n.Attrs[name]
		if name == "src" && o.rewriteURL != nil {
			value = o.rewriteURL(value)
		}
		writeAttr(w, name, value)
	}
	if n.Hidden {
		w.WriteString(" hidden")
	}
	w.WriteString(">")

	if voidElements[n.Tag] {
		return
	}

	w.WriteString(html.EscapeString(n.Text))
	for _, c := range n.Children {
		writeNode(w, c, o, depth+1)
	}
	if o.indent != "" && len(n.Children) > 0 {
		w.WriteString("\n")
		w.WriteString(strings.Repeat(o.indent, depth))
	}
	w.WriteString("</")
	w.WriteString(n.Tag)
	w.WriteString(">")
}

func writeAttr(w *bufio.Writer, name, value string) {
	w.WriteString(" ")
	w.WriteString(name)
	w.WriteString(`="`)
	w.WriteString(html.EscapeString(value))
	w.WriteString(`"`)
}
