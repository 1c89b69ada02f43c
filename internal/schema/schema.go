package schema

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"
	cueyaml "cuelang.org/go/encoding/yaml"

	"github.com/roach88/bonfire/internal/settings"
)

//go:embed settings.cue
var schemaSrc string

// CompileError represents a settings file error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// file mirrors #Settings.
type file struct {
	Enabled     bool          `json:"enabled"`
	SoundChoice string        `json:"sound_choice"`
	Mappings    []fileMapping `json:"column_mappings"`
}

type fileMapping struct {
	ColumnName string `json:"column_name"`
	MainText   string `json:"main_text"`
	SubText    string `json:"sub_text"`
}

// Compile parses src, validates it against #Settings and returns the
// resulting settings. The format is chosen from the filename extension:
// .cue, .yaml/.yml or .json.
func Compile(filename string, src []byte) (settings.Settings, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSrc, cue.Filename("settings.cue"))
	if err := schema.Err(); err != nil {
		return settings.Settings{}, formatCUEError(err)
	}

	data, err := build(ctx, filename, src)
	if err != nil {
		return settings.Settings{}, err
	}

	v := schema.LookupPath(cue.ParsePath("#Settings")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return settings.Settings{}, formatCUEError(err)
	}

	var f file
	if err := v.Decode(&f); err != nil {
		return settings.Settings{}, formatCUEError(err)
	}

	s := settings.Settings{
		Enabled:     f.Enabled,
		SoundChoice: f.SoundChoice,
		Mappings:    make([]settings.ColumnMapping, 0, len(f.Mappings)),
	}
	for _, m := range f.Mappings {
		s.Mappings = append(s.Mappings, settings.ColumnMapping{
			ColumnName: m.ColumnName,
			MainText:   m.MainText,
			SubText:    m.SubText,
		})
	}
	return s.Normalize(), nil
}

// Validate reports whether src is a valid settings file.
func Validate(filename string, src []byte) error {
	_, err := Compile(filename, src)
	return err
}

func build(ctx *cue.Context, filename string, src []byte) (cue.Value, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".cue":
		v := ctx.CompileBytes(src, cue.Filename(filename))
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil

	case ".yaml", ".yml":
		f, err := cueyaml.Extract(filename, src)
		if err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		v := ctx.BuildFile(f)
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil

	case ".json":
		expr, err := cuejson.Extract(filename, src)
		if err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		v := ctx.BuildExpr(expr)
		if err := v.Err(); err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		return v, nil

	default:
		return cue.Value{}, &CompileError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported settings format %q (want .cue, .yaml, .yml or .json)", ext),
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "settings"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}

	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   field,
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return &CompileError{Field: field, Message: first.Error()}
}
