package content

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// HTMLToMarkdown converts platform description/comment HTML into GitHub/
// GitLab-flavored markdown (spec §4.1 "HTML → markdown"). Headings, lists,
// links, tables, inline and fenced code (with language hint), images and
// blockquotes are preserved; line structure is preserved — output is never
// reflowed/wrapped.
func HTMLToMarkdown(htmlStr string) string {
	root := parseFragment(htmlStr)
	blocks := renderBlocksMarkdown(root)
	return strings.TrimRight(strings.Join(blocks, "\n\n"), "\n")
}

func renderBlocksMarkdown(n *html.Node) []string {
	var blocks []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b, ok := renderBlockMarkdown(c); ok && b != "" {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// renderBlockMarkdown renders one block-level node. ok is false for nodes
// that carry no block content of their own (e.g. bare whitespace text
// between block siblings).
func renderBlockMarkdown(n *html.Node) (string, bool) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return "", false
		}
		return strings.TrimSpace(n.Data), true
	case html.ElementNode:
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			return strings.Repeat("#", level) + " " + strings.TrimSpace(renderInlineChildrenMarkdown(n)), true
		case "p", "div":
			return renderInlineChildrenMarkdown(n), true
		case "blockquote":
			inner := renderBlocksMarkdown(n)
			text := strings.Join(inner, "\n\n")
			var out []string
			for _, line := range strings.Split(text, "\n") {
				out = append(out, "> "+line)
			}
			return strings.Join(out, "\n"), true
		case "ul", "ol":
			return renderListMarkdown(n, 0), true
		case "pre":
			return renderCodeBlockMarkdown(n), true
		case "table":
			return renderTableMarkdown(n), true
		case "hr":
			return "---", true
		case "br":
			return "", false
		default:
			return renderInlineMarkdown(n), true
		}
	default:
		return "", false
	}
}

func renderListMarkdown(n *html.Node, depth int) string {
	ordered := n.Data == "ol"
	indent := strings.Repeat("  ", depth)
	var lines []string
	i := 1
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		marker := "-"
		if ordered {
			marker = fmt.Sprintf("%d.", i)
			i++
		}

		var itemText strings.Builder
		var nested []string
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			if gc.Type == html.ElementNode && (gc.Data == "ul" || gc.Data == "ol") {
				nested = append(nested, renderListMarkdown(gc, depth+1))
				continue
			}
			itemText.WriteString(renderInlineMarkdown(gc))
		}

		lines = append(lines, indent+marker+" "+strings.TrimSpace(itemText.String()))
		lines = append(lines, nested...)
	}
	return strings.Join(lines, "\n")
}

func renderCodeBlockMarkdown(n *html.Node) string {
	lang := ""
	code := n
	if c := firstElementChild(n, "code"); c != nil {
		lang = languageFromClass(nodeAttr(c, "class"))
		code = c
	}
	text := strings.Trim(textContent(code), "\n")
	return "```" + lang + "\n" + text + "\n```"
}

func firstElementChild(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

func renderTableMarkdown(n *html.Node) string {
	var rows [][]string
	var walkRows func(*html.Node)
	walkRows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				walkRows(c)
			case "tr":
				var cells []string
				for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
					if cc.Type == html.ElementNode && (cc.Data == "td" || cc.Data == "th") {
						cells = append(cells, strings.TrimSpace(renderInlineChildrenMarkdown(cc)))
					}
				}
				rows = append(rows, cells)
			}
		}
	}
	walkRows(n)

	if len(rows) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, "| "+strings.Join(rows[0], " | ")+" |")
	sep := make([]string, len(rows[0]))
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
	for _, r := range rows[1:] {
		lines = append(lines, "| "+strings.Join(r, " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

func renderInlineChildrenMarkdown(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(renderInlineMarkdown(c))
	}
	return b.String()
}

func renderInlineMarkdown(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
		switch n.Data {
		case "strong", "b":
			return "**" + renderInlineChildrenMarkdown(n) + "**"
		case "em", "i":
			return "_" + renderInlineChildrenMarkdown(n) + "_"
		case "code":
			return "`" + textContent(n) + "`"
		case "del", "s", "strike":
			return "~~" + renderInlineChildrenMarkdown(n) + "~~"
		case "a":
			href := nodeAttr(n, "href")
			return "[" + renderInlineChildrenMarkdown(n) + "](" + href + ")"
		case "img":
			alt := nodeAttr(n, "alt")
			src := nodeAttr(n, "src")
			return "![" + alt + "](" + src + ")"
		case "br":
			return "\n"
		default:
			return renderInlineChildrenMarkdown(n)
		}
	default:
		return ""
	}
}
