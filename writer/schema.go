package writer

import (
	_ "embed"
	"fmt"
	"regexp"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSource string

// FieldSpec declares one field of a request block: its default value,
// whether it is always serialized, and an optional validation pattern.
type FieldSpec struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
	Syntax   string `json:"syntax,omitempty"`
}

// RuleSpec is a cross-field validation rule evaluated per block scope.
type RuleSpec struct {
	Name       string `json:"name"`
	Scope      string `json:"scope"`
	Expression string `json:"expression"`
	Message    string `json:"message"`
}

// Schema is the full field catalogue the writer serializes from.
type Schema struct {
	Observation []FieldSpec `json:"observation"`
	Anabeam     []FieldSpec `json:"anabeam"`
	Beam        []FieldSpec `json:"beam"`
	Output      []FieldSpec `json:"output"`
	Rules       []RuleSpec  `json:"rules"`

	syntax map[string]*regexp.Regexp
}

var (
	schemaOnce sync.Once
	schema     *Schema
	schemaErr  error
)

// loadSchema compiles the embedded CUE catalogue once per process.
func loadSchema() (*Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compileSchema(schemaSource)
	})
	return schema, schemaErr
}

func compileSchema(source string) (*Schema, error) {
	ctx := cuecontext.New()
	value := ctx.CompileString(source, cue.Filename("schema.cue"))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile field catalogue: %w", err)
	}

	var s Schema
	if err := value.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode field catalogue: %w", err)
	}

	s.syntax = make(map[string]*regexp.Regexp)
	for _, specs := range [][]FieldSpec{s.Observation, s.Anabeam, s.Beam, s.Output} {
		for _, spec := range specs {
			if spec.Syntax == "" {
				continue
			}
			if _, ok := s.syntax[spec.Syntax]; ok {
				continue
			}
			// Syntax patterns must match the whole value.
			re, err := regexp.Compile(`\A(?:` + spec.Syntax + `)\z`)
			if err != nil {
				return nil, fmt.Errorf("field %s syntax %q: %w", spec.Name, spec.Syntax, err)
			}
			s.syntax[spec.Syntax] = re
		}
	}
	return &s, nil
}

func (s *Schema) fields(scope string) []FieldSpec {
	switch scope {
	case scopeObservation:
		return s.Observation
	case scopeAnabeam:
		return s.Anabeam
	case scopeBeam:
		return s.Beam
	case scopeOutput:
		return s.Output
	default:
		return nil
	}
}
