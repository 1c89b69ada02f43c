package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := Defaults()
	assert.True(t, s.Enabled)
	assert.Equal(t, DefaultSound, s.SoundChoice)
	require.Len(t, s.Mappings, 4)
	assert.Equal(t, "Code Review", s.Mappings[0].ColumnName)
	assert.Equal(t, "Closed", s.Mappings[3].ColumnName)
	assert.NoError(t, s.Validate())
}

func TestActiveMappings_DropsIncomplete(t *testing.T) {
	s := Settings{Mappings: []ColumnMapping{
		{ColumnName: "Done", MainText: "YOU DEFEATED", SubText: "Task Conquered"},
		{ColumnName: "Review", MainText: "", SubText: "x"},
		{ColumnName: "  ", MainText: "a", SubText: "b"},
		{ColumnName: "QA", MainText: "a", SubText: "b"},
	}}

	active := s.ActiveMappings()
	require.Len(t, active, 2)
	assert.Equal(t, "Done", active[0].ColumnName)
	assert.Equal(t, "QA", active[1].ColumnName)
}

func TestMatch(t *testing.T) {
	s := Settings{Mappings: []ColumnMapping{
		{ColumnName: "Done", MainText: "", SubText: "inactive"},
		{ColumnName: "done", MainText: "FIRST", SubText: "first"},
		{ColumnName: "DONE", MainText: "SECOND", SubText: "second"},
		{ColumnName: "Straße", MainText: "STREET", SubText: "s"},
	}}

	tests := []struct {
		name   string
		column string
		want   string
		found  bool
	}{
		{"exact", "done", "FIRST", true},
		{"upper", "DONE", "FIRST", true},
		{"surrounding space", "  Done ", "FIRST", true},
		{"unicode folding", "STRASSE", "STREET", true},
		{"no match", "In Progress", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := s.Match(tt.column)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, m.MainText)
		})
	}
}

func TestValidate_NoActiveMappings(t *testing.T) {
	s := Settings{Mappings: []ColumnMapping{{ColumnName: "Done"}}}
	assert.ErrorIs(t, s.Validate(), ErrNoActiveMappings)
}

func TestNormalize(t *testing.T) {
	in := Settings{
		Enabled:     true,
		SoundChoice: " none ",
		Mappings: []ColumnMapping{
			{ColumnName: " Done ", MainText: " WIN ", SubText: " {id} "},
			{ColumnName: "Half", MainText: "x"},
		},
	}

	out := in.Normalize()
	assert.Equal(t, "none", out.SoundChoice)
	assert.Equal(t, []ColumnMapping{{ColumnName: "Done", MainText: "WIN", SubText: "{id}"}}, out.Mappings)

	// The input is left untouched.
	assert.Equal(t, " Done ", in.Mappings[0].ColumnName)
	assert.Len(t, in.Mappings, 2)
}

func TestClone_IsDeep(t *testing.T) {
	s := Defaults()
	c := s.Clone()
	c.Mappings[0].MainText = "changed"
	assert.Equal(t, "READY FOR REVIEW", s.Mappings[0].MainText)
}
