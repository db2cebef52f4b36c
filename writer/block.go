package writer

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Scope tokens selecting a field catalogue section. They double as the
// serialized block names, capitalized.
const (
	scopeObservation = "observation"
	scopeAnabeam     = "anabeam"
	scopeBeam        = "beam"
	scopeOutput      = "output"
)

var blockNames = map[string]string{
	scopeObservation: "Observation",
	scopeAnabeam:     "Anabeam",
	scopeBeam:        "Beam",
	scopeOutput:      "Output",
}

// ErrUnknownKey marks writes to a field the catalogue does not declare.
var ErrUnknownKey = errors.New("unknown field key")

type entryState struct {
	value    string
	modified bool
}

// Block is one serializable section of a request file. The immutable
// field catalogue stays shared; per-block state is an overlay on top.
type Block struct {
	scope string
	index int
	specs []FieldSpec
	state map[string]*entryState
}

func newBlock(s *Schema, scope string) *Block {
	specs := s.fields(scope)
	state := make(map[string]*entryState, len(specs))
	for _, spec := range specs {
		state[spec.Name] = &entryState{value: spec.Value}
	}
	return &Block{scope: scope, specs: specs, state: state}
}

// Index reports the block's current serialization index.
func (b *Block) Index() int { return b.index }

// Set updates a declared field. Timestamps are rendered at second
// precision with a trailing Z, durations as whole seconds, booleans as
// lowercase tokens.
func (b *Block) Set(key string, value any) error {
	entry, ok := b.state[key]
	if !ok {
		return fmt.Errorf("%w: %q in %s block", ErrUnknownKey, key, b.scope)
	}
	entry.value = formatValue(value)
	entry.modified = true
	return nil
}

// Get returns the current value of a declared field.
func (b *Block) Get(key string) (string, bool) {
	entry, ok := b.state[key]
	if !ok {
		return "", false
	}
	return entry.value, true
}

// Fill applies several fields at once, stopping at the first unknown key.
func (b *Block) Fill(settings map[string]any) error {
	for key, value := range settings {
		if err := b.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format("2006-01-02T15:04:05") + "Z"
	case time.Duration:
		return strconv.Itoa(int(math.Round(v.Seconds()))) + "s"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// render writes the block's lines in catalogue order. Only modified or
// required fields appear. Indexed scopes carry a bracketed counter.
func (b *Block) render(sb *strings.Builder) {
	counter := ""
	if b.scope == scopeAnabeam || b.scope == scopeBeam {
		counter = fmt.Sprintf("[%d]", b.index)
	}
	first := true
	for _, spec := range b.specs {
		entry := b.state[spec.Name]
		if !entry.modified && !spec.Required {
			continue
		}
		if !first {
			sb.WriteByte('\n')
		}
		first = false
		fmt.Fprintf(sb, "%s%s.%s=%s", blockNames[b.scope], counter, spec.Name, entry.value)
	}
}

// fieldMap exposes the block state to validation rules.
func (b *Block) fieldMap() map[string]string {
	out := make(map[string]string, len(b.state))
	for key, entry := range b.state {
		out[key] = entry.value
	}
	return out
}

var durationPattern = regexp.MustCompile(`\A(\d+)([smh])\z`)

// parseDuration reads an exposure value such as "3600s", "60m" or "2h"
// and converts it to seconds.
func parseDuration(raw string) (float64, error) {
	match := durationPattern.FindStringSubmatch(raw)
	if match == nil {
		return 0, fmt.Errorf("malformed duration %q", raw)
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed duration %q: %w", raw, err)
	}
	switch match[2] {
	case "m":
		value *= 60
	case "h":
		value *= 3600
	}
	return value, nil
}
