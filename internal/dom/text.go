package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Elements whose content is never rendered as text.
var skippedElements = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	"svg":      true,
	"canvas":   true,
}

// Required line breaks around an element's content.
var lineBreaks = map[string]int{
	"p":  2,
	"h1": 2, "h2": 2, "h3": 2, "h4": 2, "h5": 2, "h6": 2,

	"address": 1, "article": 1, "aside": 1, "blockquote": 1, "caption": 1,
	"dd": 1, "details": 1, "dialog": 1, "div": 1, "dl": 1, "dt": 1,
	"fieldset": 1, "figcaption": 1, "figure": 1, "footer": 1, "form": 1,
	"header": 1, "hgroup": 1, "hr": 1, "li": 1, "main": 1, "nav": 1,
	"ol": 1, "pre": 1, "section": 1, "summary": 1, "table": 1, "tr": 1,
	"ul": 1, "body": 1,
}

// VisibleText approximates a browser's innerText for n: hidden subtrees and
// non-rendered elements are dropped, collapsible whitespace is collapsed, and
// block boundaries become line breaks (paragraphs and headings get a blank
// line). Table cells are separated by tabs.
func VisibleText(n *html.Node) string {
	b := &textBuilder{}
	b.walk(n, false)
	return b.sb.String()
}

type textBuilder struct {
	sb      strings.Builder
	started bool
	pending int
	space   bool
	tab     bool
}

func (b *textBuilder) walk(n *html.Node, pre bool) {
	switch n.Type {
	case html.TextNode:
		b.write(n.Data, pre)
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, pre)
		}
	case html.ElementNode:
		if skippedElements[n.Data] || isHidden(n) {
			return
		}
		if n.Data == "br" {
			b.lineBreak()
			return
		}
		pre = pre || n.Data == "pre" || n.Data == "textarea"

		count := lineBreaks[n.Data]
		b.requireBreaks(count)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.walk(c, pre)
		}
		b.requireBreaks(count)

		if n.Data == "td" || n.Data == "th" {
			b.tab = true
		}
	}
}

func (b *textBuilder) requireBreaks(n int) {
	if n > b.pending {
		b.pending = n
	}
}

func (b *textBuilder) lineBreak() {
	if b.started && b.pending > 0 {
		b.sb.WriteString(strings.Repeat("\n", b.pending))
	}
	b.pending = 0
	b.space = false
	b.tab = false
	b.sb.WriteByte('\n')
	b.started = true
}

func (b *textBuilder) write(s string, pre bool) {
	if s == "" {
		return
	}
	if pre {
		b.flush()
		b.sb.WriteString(s)
		b.started = true
		return
	}

	words := strings.FieldsFunc(s, isCollapsible)
	if len(words) == 0 {
		b.space = true
		return
	}
	if isCollapsible(rune(s[0])) {
		b.space = true
	}
	b.flush()
	b.sb.WriteString(strings.Join(words, " "))
	b.started = true
	b.space = isCollapsible(rune(s[len(s)-1]))
}

// flush writes whatever separator is owed before the next run of text.
func (b *textBuilder) flush() {
	defer func() {
		b.pending = 0
		b.space = false
		b.tab = false
	}()
	if !b.started {
		return
	}
	switch {
	case b.pending > 0:
		b.sb.WriteString(strings.Repeat("\n", b.pending))
	case b.tab:
		b.sb.WriteByte('\t')
	case b.space:
		b.sb.WriteByte(' ')
	}
}

// isCollapsible matches CSS collapsible whitespace. U+00A0 is deliberately
// excluded: browsers render it as a non-collapsing space.
func isCollapsible(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

func isHidden(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "style":
			style := strings.ToLower(strings.Join(strings.Fields(a.Val), ""))
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return n.Data == "input"
}
