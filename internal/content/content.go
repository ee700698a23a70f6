// Package content implements C1: bidirectional conversion between the
// platform's HTML representation and each tracker's markup dialect,
// redirect-URL unwrapping, and attachment/URL scrubbing (spec §4.1).
//
// Parsing is done with golang.org/x/net/html (the teacher has no HTML
// pipeline of its own; this is enrichment from the rest of the pack,
// where goquery/x-net-html/bluemonday appear together as the
// de-facto Go HTML-processing stack). goquery wraps the same node tree
// for the attribute-rewriting passes where a selector-based walk is more
// direct than raw recursion (scrub.go); the dialect renderers
// (markdown.go, wiki.go) walk the *html.Node tree directly since they
// need full control over block/inline spacing that a selector API doesn't
// expose any more simply than recursion.
package content

import (
	"strings"

	"golang.org/x/net/html"
)

// parseFragment parses an HTML fragment (not a full document) the way
// platform description/comment bodies arrive: no <html>/<head>/<body>
// wrapper implied. It returns the parsed nodes as a synthetic root whose
// Children are the top-level fragment nodes.
func parseFragment(s string) *html.Node {
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: 0,
	})
	if err != nil {
		// ParseFragment only fails on read errors from the Reader, which
		// strings.Reader never produces; fall back to an empty document
		// rather than panicking on malformed input the platform sent us.
		return &html.Node{Type: html.DocumentNode}
	}

	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return root
}

// renderFragment serializes n's children back to an HTML string.
func renderFragment(n *html.Node) (string, error) {
	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// nodeAttr returns the value of n's attribute named key, or "".
func nodeAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// languageFromClass extracts "go" from a `language-go` class value, per
// spec §4.1 "language hint extracted from a language-* class on nested
// code tags".
func languageFromClass(class string) string {
	for _, c := range strings.Fields(class) {
		if lang, ok := strings.CutPrefix(c, "language-"); ok {
			return lang
		}
	}
	return ""
}

// textContent concatenates all descendant text node data, used for
// alt-text and similar plain-text extraction.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
