package richtext

import (
	"fmt"
	"strings"
)

// ExtractPlainText depth-first concatenates text leaves, inserting a
// newline at every block boundary.
func ExtractPlainText(doc Document) string {
	var b strings.Builder
	first := true
	var walk func(Node)
	walk = func(n Node) {
		if isBlock(n) && !first {
			b.WriteByte('\n')
		}
		if n.Text != "" {
			b.WriteString(n.Text)
		}
		first = false
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, c := range doc.Root.Children {
		walk(c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func isBlock(n Node) bool {
	switch n.Type {
	case "heading", "paragraph", "block", "listitem", "code":
		return true
	}
	return false
}

// ExtractMarkdown renders the document tree to markdown: headings become
// "#"-prefixed lines, paragraphs are blank-line separated, lists preserve
// their ordered/unordered marker, and code blocks are fenced.
func ExtractMarkdown(doc Document) string {
	var b strings.Builder
	for i, n := range doc.Root.Children {
		if i > 0 {
			b.WriteString("\n\n")
		}
		renderMarkdownNode(&b, n, 0)
	}
	return b.String()
}

func renderMarkdownNode(b *strings.Builder, n Node, depth int) {
	switch n.Type {
	case "heading":
		level := n.HeadingLevel()
		if level == 0 {
			level = 1
		}
		b.WriteString(strings.Repeat("#", level))
		b.WriteByte(' ')
		b.WriteString(headingText(n))
	case "code":
		b.WriteString("```")
		if n.Tag != "" {
			b.WriteString(n.Tag)
		}
		b.WriteByte('\n')
		b.WriteString(plainTextOf(n))
		b.WriteString("\n```")
	case "list":
		ordered := n.Tag == "ol"
		for i, item := range n.Children {
			if i > 0 {
				b.WriteByte('\n')
			}
			if ordered {
				fmt.Fprintf(b, "%d. ", i+1)
			} else {
				b.WriteString("- ")
			}
			b.WriteString(plainTextOf(item))
		}
	case "paragraph":
		b.WriteString(plainTextOf(n))
	default:
		if n.Text != "" {
			b.WriteString(n.Text)
		}
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte('\n')
			}
			renderMarkdownNode(b, c, depth+1)
		}
	}
}

func plainTextOf(n Node) string {
	var b strings.Builder
	var walk func(Node)
	walk = func(cur Node) {
		if cur.Text != "" {
			b.WriteString(cur.Text)
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
