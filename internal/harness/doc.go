// Package harness runs scripted board scenarios against the detection
// pipeline and records what the watcher would have shown.
//
// A scenario describes a board, a sequence of steps that change it, and
// assertions over the resulting triggers and final engine state. Each run
// wires the real poller, engine and dispatcher to an in-memory settings
// store, a recording sink and an auto-advancing fake clock, so discovery
// timeouts complete instantly and traces are identical across runs.
//
// # Scenario Format
//
//	name: done_column
//	description: "A card moved into Done fires the Done banner"
//	url: https://example.atlassian.net/jira/software/projects/PROJ/boards/1
//	settings:
//	  column_mappings:
//	    - { column_name: Done, main_text: YOU DEFEATED, sub_text: "{id} conquered" }
//	board:
//	  - name: To Do
//	    cards: [PROJ-42]
//	  - name: Done
//	flow:
//	  - invoke: start
//	    expect: { observing: true }
//	  - invoke: move
//	    args: { card: PROJ-42, from: To Do, to: Done }
//	    expect: { triggers: 1 }
//	assertions:
//	  - type: trigger_contains
//	    trigger: { item_id: PROJ-42 }
//	  - type: final_state
//	    expect: { observing: true }
//
// Omitted settings fields keep their defaults. A board column may also set
// placeholders (entries without a card), untitled, and summaries (card text
// by item id, for re-rendering a card in place).
//
// # Steps
//
//   - start: Engine.Start; the error code, if any, is traced
//   - stop: Engine.Stop
//   - move: moves args.card from args.from to the end of args.to
//   - render: replaces the board with the step's board
//   - poll: fetches the board again without changing it
//   - navigate: changes the page URL to args.url; the engine stops
//   - settings: saves the step's settings, then restarts observation the
//     way the daemon does (stop, then start when enabled)
//   - show_banner: presents the step's trigger directly
//
// # Assertion Types
//
//   - trigger_contains: a trigger matches every non-empty field given
//   - trigger_order: items were triggered in the given relative order
//   - trigger_count: exactly count triggers (for item, if set)
//   - final_state: engine state fields equal the expected values
package harness
