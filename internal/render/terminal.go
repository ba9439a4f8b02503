package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	slotStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	fileNameStyle = lipgloss.NewStyle().Bold(true)
	imageStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

// Terminal renders the visible part of n as styled text. Elements with the
// "slot" class are boxed, "error" is highlighted and images are shown as
// placeholders.
func Terminal(n Node) string {
	var blocks []string
	terminalNode(n, &blocks)
	return strings.Join(blocks, "\n")
}

func terminalNode(n Node, blocks *[]string) {
	if n.Hidden {
		return
	}

	switch {
	case n.HasClass("slot"):
		var inner []string
		for _, c := range n.Children {
			terminalNode(c, &inner)
		}
		*blocks = append(*blocks, slotStyle.Render(strings.Join(inner, "\n")))
		return
	case n.Tag == "img":
		*blocks = append(*blocks, imageStyle.Render(imageLabel(n)))
		return
	case n.HasClass("error"):
		if n.Text != "" {
			*blocks = append(*blocks, errorStyle.Render(n.Text))
		}
	case n.HasClass("file-name"):
		*blocks = append(*blocks, fileNameStyle.Render(n.Text))
	case n.HasClass("pending"):
		*blocks = append(*blocks, pendingStyle.Render(n.Text))
	case n.Text != "":
		*blocks = append(*blocks, n.Text)
	}

	for _, c := range n.Children {
		terminalNode(c, blocks)
	}
}

func imageLabel(n Node) string {
	alt := n.Attrs["alt"]
	if alt == "" {
		alt = "image"
	}
	w, h := n.Attrs["width"], n.Attrs["height"]
	if w != "" && h != "" {
		return fmt.Sprintf("[%s %sx%s]", alt, w, h)
	}
	return fmt.Sprintf("[%s]", alt)
}
