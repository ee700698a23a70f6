package content

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLToWiki converts platform HTML into Atlassian/JIRA wiki markup (spec
// §4.1 "HTML → wiki"): the markdown mapping with images as `!alt|src!`
// and code blocks emitted as `{code:LANG}…{code}`. Because this renderer
// walks the parsed DOM directly rather than string-substituting over an
// intermediate markdown rendering, code contents never pass through a
// lossy markdown-escaping step in the first place — the "lift out, convert,
// reinsert verbatim" protection spec §4.1 describes for the source's
// string-based pipeline is structurally unnecessary here.
func HTMLToWiki(htmlStr string) string {
	root := parseFragment(htmlStr)
	var blocks []string
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if b, ok := renderBlockWiki(c); ok && b != "" {
			blocks = append(blocks, b)
		}
	}
	return strings.TrimRight(strings.Join(blocks, "\n\n"), "\n")
}

func renderBlockWiki(n *html.Node) (string, bool) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" {
			return "", false
		}
		return strings.TrimSpace(n.Data), true
	case html.ElementNode:
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := string(n.Data[1])
			return "h" + level + ". " + strings.TrimSpace(renderInlineChildrenWiki(n)), true
		case "p", "div":
			return renderInlineChildrenWiki(n), true
		case "blockquote":
			var inner []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if b, ok := renderBlockWiki(c); ok {
					inner = append(inner, b)
				}
			}
			return "{quote}\n" + strings.Join(inner, "\n\n") + "\n{quote}", true
		case "ul", "ol":
			return renderListWiki(n, 1), true
		case "pre":
			return renderCodeBlockWiki(n), true
		case "table":
			return renderTableWiki(n), true
		case "hr":
			return "----", true
		case "br":
			return "", false
		default:
			return renderInlineWiki(n), true
		}
	default:
		return "", false
	}
}

func renderListWiki(n *html.Node, depth int) string {
	marker := strings.Repeat("*", depth)
	if n.Data == "ol" {
		marker = strings.Repeat("#", depth)
	}
	var lines []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		var itemText strings.Builder
		var nested []string
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			if gc.Type == html.ElementNode && (gc.Data == "ul" || gc.Data == "ol") {
				nested = append(nested, renderListWiki(gc, depth+1))
				continue
			}
			itemText.WriteString(renderInlineWiki(gc))
		}
		lines = append(lines, marker+" "+strings.TrimSpace(itemText.String()))
		lines = append(lines, nested...)
	}
	return strings.Join(lines, "\n")
}

func renderCodeBlockWiki(n *html.Node) string {
	lang := ""
	code := n
	if c := firstElementChild(n, "code"); c != nil {
		lang = languageFromClass(nodeAttr(c, "class"))
		code = c
	}
	text := strings.Trim(textContent(code), "\n")
	header := "{code"
	if lang != "" {
		header += ":" + lang
	}
	header += "}"
	return header + "\n" + text + "\n{code}"
}

func renderTableWiki(n *html.Node) string {
	var lines []string
	first := true
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				walk(c)
			case "tr":
				var cells []string
				headerRow := false
				for cc := c.FirstChild; cc != nil; cc = cc.NextSibling {
					if cc.Type != html.ElementNode {
						continue
					}
					if cc.Data == "th" {
						headerRow = true
					}
					if cc.Data == "td" || cc.Data == "th" {
						cells = append(cells, strings.TrimSpace(renderInlineChildrenWiki(cc)))
					}
				}
				sep := "|"
				if headerRow || first {
					sep = "||"
				}
				first = false
				line := sep
				for _, cell := range cells {
					line += cell + sep
				}
				lines = append(lines, line)
			}
		}
	}
	walk(n)
	return strings.Join(lines, "\n")
}

func renderInlineChildrenWiki(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(renderInlineWiki(c))
	}
	return b.String()
}

func renderInlineWiki(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
		switch n.Data {
		case "strong", "b":
			return "*" + renderInlineChildrenWiki(n) + "*"
		case "em", "i":
			return "_" + renderInlineChildrenWiki(n) + "_"
		case "code":
			return "{{" + textContent(n) + "}}"
		case "del", "s", "strike":
			return "-" + renderInlineChildrenWiki(n) + "-"
		case "sup":
			return "^" + renderInlineChildrenWiki(n) + "^"
		case "sub":
			return "~" + renderInlineChildrenWiki(n) + "~"
		case "a":
			href := nodeAttr(n, "href")
			text := strings.TrimSpace(renderInlineChildrenWiki(n))
			if text == "" || text == href {
				return "[" + href + "]"
			}
			return "[" + text + "|" + href + "]"
		case "img":
			alt := nodeAttr(n, "alt")
			src := nodeAttr(n, "src")
			return "!" + alt + "|" + src + "!"
		case "br":
			return "\n"
		default:
			return renderInlineChildrenWiki(n)
		}
	default:
		return ""
	}
}
