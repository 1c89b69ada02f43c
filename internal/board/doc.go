// Package board models the host document a board watcher observes.
//
// A board page is parsed into a Document: an ordered list of column
// containers, each carrying the column's human-readable name and the element
// nodes currently rendered in its card list. Structures are located by
// attribute matching (data-testid by default), never through a stable API,
// so a page that has not rendered its board yet simply yields no containers.
//
// # Mutation Batches
//
// Diff compares two successive renderings of the same page and reports, per
// container, the nodes that were inserted. It is an insertion-only detector:
// removals, reorders and attribute changes produce nothing. Within a batch,
// records follow document order and added nodes follow their structural
// order inside the container.
//
// # Node Identity
//
// Nodes carry a content-addressed key (SHA-256 with domain separation over
// the NFC-normalised rendered element). A card that leaves one column and
// lands in another keeps its key, so the landing shows up as an insertion in
// the destination container only.
package board
