package schema

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bonfire/internal/settings"
)

func TestCompileYAML(t *testing.T) {
	src, err := os.ReadFile("testdata/valid.yaml")
	require.NoError(t, err)

	s, err := Compile("testdata/valid.yaml", src)
	require.NoError(t, err)

	assert.False(t, s.Enabled)
	assert.Equal(t, "none", s.SoundChoice)
	assert.Equal(t, []settings.ColumnMapping{
		{ColumnName: "Done", MainText: "YOU DEFEATED", SubText: "Task Conquered - {id}"},
		{ColumnName: "QA", MainText: "TESTED", SubText: "Ready to ship"},
	}, s.Mappings)
}

func TestCompileCUEAppliesDefaults(t *testing.T) {
	src, err := os.ReadFile("testdata/valid.cue")
	require.NoError(t, err)

	s, err := Compile("valid.cue", src)
	require.NoError(t, err)

	assert.True(t, s.Enabled)
	assert.Equal(t, settings.DefaultSound, s.SoundChoice)
	require.Len(t, s.Mappings, 1)
}

func TestCompileJSON(t *testing.T) {
	src := []byte(`{
		"enabled": true,
		"column_mappings": [
			{"column_name": "Closed", "main_text": "VICTORY", "sub_text": "{id}"}
		]
	}`)

	s, err := Compile("settings.json", src)
	require.NoError(t, err)
	assert.Equal(t, "Closed", s.Mappings[0].ColumnName)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		src      string
	}{
		{
			name:     "empty mapping list",
			filename: "s.yaml",
			src:      "column_mappings: []\n",
		},
		{
			name:     "blank column name",
			filename: "s.yaml",
			src:      "column_mappings:\n  - column_name: \"  \"\n    main_text: A\n    sub_text: B\n",
		},
		{
			name:     "missing sub text",
			filename: "s.yaml",
			src:      "column_mappings:\n  - column_name: Done\n    main_text: A\n",
		},
		{
			name:     "unknown field",
			filename: "s.yaml",
			src:      "colour: red\ncolumn_mappings:\n  - column_name: Done\n    main_text: A\n    sub_text: B\n",
		},
		{
			name:     "wrong type",
			filename: "s.json",
			src:      `{"enabled": "yes", "column_mappings": [{"column_name": "D", "main_text": "A", "sub_text": "B"}]}`,
		},
		{
			name:     "syntax error",
			filename: "s.json",
			src:      `{"enabled": `,
		},
		{
			name:     "unsupported extension",
			filename: "s.toml",
			src:      `enabled = true`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.filename, []byte(tt.src))
			require.Error(t, err)

			var ce *CompileError
			assert.True(t, errors.As(err, &ce), "want *CompileError, got %T: %v", err, err)
		})
	}
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "file", Message: "bad"}
	assert.Equal(t, "file: bad", err.Error())
}

func TestValidate(t *testing.T) {
	src, err := os.ReadFile("testdata/valid.yaml")
	require.NoError(t, err)
	assert.NoError(t, Validate("valid.yaml", src))
	assert.Error(t, Validate("empty.yaml", []byte("column_mappings: []\n")))
}
