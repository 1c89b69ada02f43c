package settings

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

// ErrNoActiveMappings is returned when saving settings that would leave no
// column trigger.
var ErrNoActiveMappings = errors.New("at least one column trigger is required")

// DefaultSound is the sound asset used when none is configured.
const DefaultSound = "elden_ring_sound.mp3"

// ColumnMapping maps a board column to the text shown when a card lands in it.
type ColumnMapping struct {
	ColumnName string `json:"columnName" yaml:"column_name"`
	MainText   string `json:"mainText" yaml:"main_text"`

	// SubText may contain an {id} placeholder for the item identifier.
	SubText string `json:"subText" yaml:"sub_text"`
}

// Active reports whether every field of the mapping is filled in.
func (m ColumnMapping) Active() bool {
	return strings.TrimSpace(m.ColumnName) != "" &&
		strings.TrimSpace(m.MainText) != "" &&
		strings.TrimSpace(m.SubText) != ""
}

// Settings is the persisted configuration of the watcher.
type Settings struct {
	Enabled     bool            `json:"autoDetectEnabled" yaml:"enabled"`
	SoundChoice string          `json:"selectedSound" yaml:"sound_choice"`
	Mappings    []ColumnMapping `json:"columnMappings" yaml:"column_mappings"`
}

// DefaultMappings returns the built-in column triggers.
func DefaultMappings() []ColumnMapping {
	return []ColumnMapping{
		{ColumnName: "Code Review", MainText: "READY FOR REVIEW", SubText: "Code Awaits Inspection"},
		{ColumnName: "Ready for Test", MainText: "TESTING PHASE", SubText: "Quality Check Begins"},
		{ColumnName: "Done", MainText: "YOU DEFEATED", SubText: "Task Conquered"},
		{ColumnName: "Closed", MainText: "VICTORY ACHIEVED", SubText: "Epic Completed"},
	}
}

// Defaults returns the settings used when nothing has been persisted.
func Defaults() Settings {
	return Settings{
		Enabled:     true,
		SoundChoice: DefaultSound,
		Mappings:    DefaultMappings(),
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	if s.Mappings != nil {
		out.Mappings = make([]ColumnMapping, len(s.Mappings))
		copy(out.Mappings, s.Mappings)
	}
	return out
}

// ActiveMappings returns the active mappings in order.
func (s Settings) ActiveMappings() []ColumnMapping {
	var out []ColumnMapping
	for _, m := range s.Mappings {
		if m.Active() {
			out = append(out, m)
		}
	}
	return out
}

// Match returns the first active mapping whose column name equals column
// under Unicode case folding.
func (s Settings) Match(column string) (ColumnMapping, bool) {
	column = strings.TrimSpace(column)
	if column == "" {
		return ColumnMapping{}, false
	}

	fold := cases.Fold()
	want := fold.String(column)
	for _, m := range s.Mappings {
		if !m.Active() {
			continue
		}
		if fold.String(strings.TrimSpace(m.ColumnName)) == want {
			return m, true
		}
	}
	return ColumnMapping{}, false
}

// Validate checks that the settings can be saved.
func (s Settings) Validate() error {
	if len(s.ActiveMappings()) == 0 {
		return ErrNoActiveMappings
	}
	return nil
}

// Normalize trims every mapping field and drops mappings left incomplete,
// the way the settings form does before saving.
func (s Settings) Normalize() Settings {
	out := s.Clone()
	out.SoundChoice = strings.TrimSpace(out.SoundChoice)
	out.Mappings = out.Mappings[:0]
	for _, m := range s.Mappings {
		m = ColumnMapping{
			ColumnName: strings.TrimSpace(m.ColumnName),
			MainText:   strings.TrimSpace(m.MainText),
			SubText:    strings.TrimSpace(m.SubText),
		}
		if m.Active() {
			out.Mappings = append(out.Mappings, m)
		}
	}
	return out
}
