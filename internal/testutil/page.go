package testutil

import (
	"fmt"
	"html"
	"maps"
	"strings"

	"github.com/roach88/bonfire/internal/board"
)

// Page describes a board page to render for tests.
type Page struct {
	// URL is used as the document URL; defaults to BoardURL.
	URL     string   `yaml:"url,omitempty"`
	Columns []Column `yaml:"columns"`
}

// Column is one board column.
type Column struct {
	Name string `yaml:"name"`

	// Cards are item ids rendered as cards, in order. An empty string renders
	// a card element without an id attribute.
	Cards []string `yaml:"cards,omitempty"`

	// Summaries overrides the text rendered inside a card, keyed by item id.
	// Cards without an entry show their id.
	Summaries map[string]string `yaml:"summaries,omitempty"`

	// Placeholders appends list entries that contain no card.
	Placeholders int `yaml:"placeholders,omitempty"`

	// Untitled omits the column title element.
	Untitled bool `yaml:"untitled,omitempty"`
}

// BoardURL is a URL that passes board.IsBoardView.
const BoardURL = "https://example.atlassian.net/jira/software/projects/PROJ/boards/1"

// HTML renders the page using the default Jira selectors.
func (p Page) HTML() string {
	sel := board.DefaultSelectors()

	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Board</title></head><body><main>\n")
	for _, col := range p.Columns {
		fmt.Fprintf(&b, `<div %s="%s">`, sel.Attr, sel.Column)
		if !col.Untitled {
			fmt.Fprintf(&b, `<header><h2 %s="%s"> %s </h2></header>`, sel.Attr, sel.ColumnTitle, html.EscapeString(col.Name))
		}
		b.WriteString("<ul>\n")
		for _, id := range col.Cards {
			if id == "" {
				fmt.Fprintf(&b, `<li><div %s="%s"><span>untitled</span></div></li>`+"\n", sel.Attr, sel.Card)
				continue
			}
			text := id
			if s, ok := col.Summaries[id]; ok {
				text = s
			}
			fmt.Fprintf(&b, `<li><div %s="%s" id="card-%s"><span>%s</span></div></li>`+"\n",
				sel.Attr, sel.Card, html.EscapeString(id), html.EscapeString(text))
		}
		for i := 0; i < col.Placeholders; i++ {
			b.WriteString(`<li class="placeholder"></li>` + "\n")
		}
		b.WriteString("</ul></div>\n")
	}
	b.WriteString("</main></body></html>\n")
	return b.String()
}

// Document parses the rendered page.
func (p Page) Document() *board.Document {
	url := p.URL
	if url == "" {
		url = BoardURL
	}
	doc, err := board.ParseString(p.HTML(), url, board.DefaultSelectors())
	if err != nil {
		panic(fmt.Sprintf("testutil: parse page: %v", err))
	}
	return doc
}

// Move returns a copy of the page with item id moved from one column to the
// end of another. Unknown columns or ids leave the page unchanged.
func (p Page) Move(id, from, to string) Page {
	out := p.clone()
	var found bool
	for i := range out.Columns {
		if out.Columns[i].Name != from {
			continue
		}
		for j, c := range out.Columns[i].Cards {
			if c == id {
				out.Columns[i].Cards = append(out.Columns[i].Cards[:j], out.Columns[i].Cards[j+1:]...)
				found = true
				break
			}
		}
	}
	if !found {
		return p
	}
	for i := range out.Columns {
		if out.Columns[i].Name == to {
			out.Columns[i].Cards = append(out.Columns[i].Cards, id)
			return out
		}
	}
	return p
}

func (p Page) clone() Page {
	out := Page{URL: p.URL, Columns: make([]Column, len(p.Columns))}
	for i, c := range p.Columns {
		c.Cards = append([]string(nil), c.Cards...)
		c.Summaries = maps.Clone(c.Summaries)
		out.Columns[i] = c
	}
	return out
}
