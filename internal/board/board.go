package board

import "strings"

// Handle identifies one column's card list within a rendered board.
// Handles are positional: the n-th card list of the page always has the same
// handle, whatever the column is called.
type Handle string

// Card is a trackable item element found inside a node.
type Card struct {
	// ElementID is the raw id attribute of the card element ("" if absent).
	ElementID string
}

// Node is one element child of a container's card list.
type Node struct {
	// Key identifies the node across renderings: CardKey of the card's
	// element id, or the content hash of the element when it has no
	// identified card.
	Key string

	// Card is the trackable item inside the node, or nil when the node does
	// not contain one (placeholders, drop targets, spinners).
	Card *Card
}

// Trackable reports whether the node contains a card.
func (n Node) Trackable() bool {
	return n.Card != nil
}

// Container is one column's card list.
type Container struct {
	Handle Handle

	// Name is the trimmed column title ("" when the title is not rendered).
	Name string

	Nodes []Node
}

// Document is a parsed rendering of a board page.
type Document struct {
	URL        string
	Containers []Container
}

// Handles returns the container handles in document order.
func (d *Document) Handles() []Handle {
	if d == nil {
		return nil
	}
	handles := make([]Handle, 0, len(d.Containers))
	for _, c := range d.Containers {
		handles = append(handles, c.Handle)
	}
	return handles
}

// Container looks up a container by handle.
func (d *Document) Container(h Handle) (Container, bool) {
	if d == nil {
		return Container{}, false
	}
	for _, c := range d.Containers {
		if c.Handle == h {
			return c, true
		}
	}
	return Container{}, false
}

// Selectors locates board structures in the page.
type Selectors struct {
	// Attr is the attribute used for structural matching.
	Attr string

	// Column matches the wrapper element of a column.
	Column string

	// ColumnTitle matches the element holding the column's name.
	ColumnTitle string

	// Card matches a card element.
	Card string

	// ListTag is the tag of a column's card list inside the wrapper.
	ListTag string
}

// DefaultSelectors returns the selectors for Jira Software boards.
func DefaultSelectors() Selectors {
	return Selectors{
		Attr:        "data-testid",
		Column:      "platform-board-kit.ui.column.draggable-column.styled-wrapper",
		ColumnTitle: "platform-board-kit.common.ui.column-header.editable-title.column-title.column-name",
		Card:        "platform-board-kit.ui.card.card",
		ListTag:     "ul",
	}
}

// IsBoardView reports whether url points at a board page. Only board views
// render column containers; every other page is left alone.
func IsBoardView(url string) bool {
	return strings.Contains(url, "/jira/software/") &&
		(strings.Contains(url, "/board/") || strings.Contains(url, "/boards/"))
}
