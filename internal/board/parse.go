package board

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse reads an HTML page and extracts its board structure.
//
// A page without column wrappers is not an error: it yields a Document with
// no containers, which callers treat as "board not rendered yet".
func Parse(r io.Reader, url string, sel Selectors) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse board page: %w", err)
	}
	return FromNode(root, url, sel), nil
}

// ParseString is Parse over an in-memory page.
func ParseString(page, url string, sel Selectors) (*Document, error) {
	return Parse(strings.NewReader(page), url, sel)
}

// FromNode extracts the board structure from an already parsed tree.
func FromNode(root *html.Node, url string, sel Selectors) *Document {
	doc := &Document{URL: url}

	for _, column := range findAll(root, func(n *html.Node) bool {
		return hasAttr(n, sel.Attr, sel.Column)
	}) {
		name := ""
		if title := findFirst(column, func(n *html.Node) bool {
			return hasAttr(n, sel.Attr, sel.ColumnTitle)
		}); title != nil {
			name = strings.TrimSpace(textContent(title))
		}

		for _, list := range findAll(column, func(n *html.Node) bool {
			return n.Type == html.ElementNode && n.Data == sel.ListTag
		}) {
			doc.Containers = append(doc.Containers, Container{
				Handle: Handle(fmt.Sprintf("list-%d", len(doc.Containers))),
				Name:   name,
				Nodes:  listNodes(list, sel),
			})
		}
	}

	return doc
}

// listNodes returns the element children of a card list. Text and comment
// children are not nodes in the board sense.
func listNodes(list *html.Node, sel Selectors) []Node {
	var nodes []Node
	for c := list.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		var node Node
		if card := findFirst(c, func(n *html.Node) bool {
			return hasAttr(n, sel.Attr, sel.Card)
		}); card != nil {
			node.Card = &Card{ElementID: attr(card, "id")}
		}
		if node.Card != nil && node.Card.ElementID != "" {
			node.Key = CardKey(node.Card.ElementID)
		} else {
			node.Key = NodeKey(render(c))
		}
		nodes = append(nodes, node)
	}
	return nodes
}

// findAll returns every descendant of root (root included) matching pred,
// in document order. Matches are not searched for nested matches.
func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

// findFirst returns the first node in document order (root included)
// matching pred, or nil.
func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func hasAttr(n *html.Node, key, val string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key && a.Val == val {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		// Rendering into a bytes.Buffer only fails on malformed trees that
		// html.Parse never produces; fall back to the text content.
		return textContent(n)
	}
	return buf.String()
}
