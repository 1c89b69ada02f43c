package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bonfire/internal/board"
	"github.com/roach88/bonfire/internal/settings"
)

func observingState(handles ...board.Handle) State {
	subs := make(map[board.Handle]struct{}, len(handles))
	for _, h := range handles {
		subs[h] = struct{}{}
	}
	return State{
		Observing:     true,
		Generation:    1,
		Subscriptions: subs,
		Settings:      settings.Defaults(),
	}
}

// disabledState is an observing state whose settings were switched off
// before the lifecycle tore the subscriptions down.
func disabledState(handles ...board.Handle) State {
	s := observingState(handles...)
	s.Settings.Enabled = false
	return s
}

func TestClassify_EveryDefaultMappingQualifies(t *testing.T) {
	state := observingState("list-0")

	for _, m := range settings.DefaultMappings() {
		t.Run(m.ColumnName, func(t *testing.T) {
			rec := board.MutationRecord{Target: "list-0", Column: m.ColumnName, Added: []board.Node{card("X-1")}}
			got, drops := classify(state, rec)
			require.Len(t, got, 1)
			assert.Empty(t, drops)
			assert.Equal(t, m, got[0].Mapping)
		})
	}
}

func TestClassify_Drops(t *testing.T) {
	placeholder := board.Node{Key: "p"}

	tests := []struct {
		name   string
		state  State
		rec    board.MutationRecord
		reason string
	}{
		{
			name:   "watching disabled",
			state:  disabledState("list-0"),
			rec:    board.MutationRecord{Target: "list-0", Column: "Done", Added: []board.Node{card("A")}},
			reason: dropDisabled,
		},
		{
			name:   "not observing",
			state:  State{Settings: settings.Defaults()},
			rec:    board.MutationRecord{Target: "list-0", Column: "Done", Added: []board.Node{card("A")}},
			reason: dropNotObserving,
		},
		{
			name:   "unsubscribed container",
			state:  observingState("list-0"),
			rec:    board.MutationRecord{Target: "list-9", Column: "Done", Added: []board.Node{card("A")}},
			reason: dropUnsubscribed,
		},
		{
			name:   "node without card",
			state:  observingState("list-0"),
			rec:    board.MutationRecord{Target: "list-0", Column: "Done", Added: []board.Node{placeholder}},
			reason: dropNoCard,
		},
		{
			name:   "untitled column",
			state:  observingState("list-0"),
			rec:    board.MutationRecord{Target: "list-0", Column: "", Added: []board.Node{card("A")}},
			reason: dropUnnamedColumn,
		},
		{
			name:   "unmapped column",
			state:  observingState("list-0"),
			rec:    board.MutationRecord{Target: "list-0", Column: "In Progress", Added: []board.Node{card("A")}},
			reason: dropNoMapping,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, drops := classify(tt.state, tt.rec)
			assert.Empty(t, got)
			require.Len(t, drops, 1)
			assert.Equal(t, tt.reason, drops[0].Reason)
		})
	}
}

func TestClassify_InactiveMappingNeverMatches(t *testing.T) {
	state := observingState("list-0")
	state.Settings.Mappings = []settings.ColumnMapping{
		{ColumnName: "Done", MainText: "YOU DEFEATED", SubText: ""},
	}

	got, _ := classify(state, board.MutationRecord{Target: "list-0", Column: "Done", Added: []board.Node{card("A")}})
	assert.Empty(t, got)
}

func TestClassify_CaseInsensitiveColumn(t *testing.T) {
	state := observingState("list-0")

	got, _ := classify(state, board.MutationRecord{Target: "list-0", Column: "done", Added: []board.Node{card("PROJ-42")}})
	require.Len(t, got, 1)
	assert.Equal(t, "YOU DEFEATED", got[0].Mapping.MainText)
	assert.Equal(t, "card-PROJ-42", got[0].Card.ElementID)
}

func TestClassify_MixedNodesKeepOrder(t *testing.T) {
	state := observingState("list-0")
	rec := board.MutationRecord{
		Target: "list-0",
		Column: "Closed",
		Added:  []board.Node{card("A"), {Key: "spinner"}, card("B")},
	}

	got, drops := classify(state, rec)
	require.Len(t, got, 2)
	assert.Equal(t, "card-A", got[0].Card.ElementID)
	assert.Equal(t, "card-B", got[1].Card.ElementID)
	assert.Len(t, drops, 1)
}
