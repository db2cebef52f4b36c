// Package parset decodes NenuFAR observation parsets into typed,
// ordered property stores.
package parset

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrKeyNotFound is returned when a store lookup misses.
var ErrKeyNotFound = errors.New("key not found")

// ErrMalformedValue is returned when a raw value cannot be coerced.
var ErrMalformedValue = errors.New("malformed value")

// Kind enumerates the variants a coerced parset value can take.
type Kind int

const (
	// KindString holds an uninterpreted string.
	KindString Kind = iota
	// KindBool holds a boolean decoded from on/enable/true tokens.
	KindBool
	// KindInt holds a non-negative integer.
	KindInt
	// KindAngle holds an angle in degrees.
	KindAngle
	// KindTime holds a timestamp.
	KindTime
	// KindList holds an ordered sequence of mixed values.
	KindList
)

// Value is the tagged variant produced by coercion. The zero value is an
// empty string.
type Value struct {
	kind     Kind
	boolVal  bool
	intVal   int
	angleVal float64
	timeVal  time.Time
	strVal   string
	items    []Value
}

// String builds a string value.
func String(s string) Value { return Value{kind: KindString, strVal: s} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolVal: b} }

// Int builds an integer value.
func Int(i int) Value { return Value{kind: KindInt, intVal: i} }

// Angle builds an angle value in degrees.
func Angle(deg float64) Value { return Value{kind: KindAngle, angleVal: deg} }

// Time builds a timestamp value.
func Time(t time.Time) Value { return Value{kind: KindTime, timeVal: t} }

// List builds a sequence value.
func List(items ...Value) Value { return Value{kind: KindList, items: items} }

// Kind reports the variant stored in the value.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean payload.
func (v Value) Bool() (bool, bool) { return v.boolVal, v.kind == KindBool }

// Int returns the integer payload.
func (v Value) Int() (int, bool) { return v.intVal, v.kind == KindInt }

// Angle returns the angle payload in degrees.
func (v Value) Angle() (float64, bool) { return v.angleVal, v.kind == KindAngle }

// Time returns the timestamp payload.
func (v Value) Time() (time.Time, bool) { return v.timeVal, v.kind == KindTime }

// Text returns the string payload.
func (v Value) Text() (string, bool) { return v.strVal, v.kind == KindString }

// Items returns the sequence payload.
func (v Value) Items() ([]Value, bool) { return v.items, v.kind == KindList }

// Float converts numeric-compatible variants to a float64. Strings are
// parsed, which covers fields such as offsets that arrive untyped.
func (v Value) Float() (float64, error) {
	switch v.kind {
	case KindInt:
		return float64(v.intVal), nil
	case KindAngle:
		return v.angleVal, nil
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.strVal), 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q as float: %w", v.strVal, ErrMalformedValue)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value of kind %d is not numeric: %w", v.kind, ErrMalformedValue)
	}
}

// Ints flattens a list value into its integer elements. Non-integer
// elements are rejected.
func (v Value) Ints() ([]int, error) {
	items, ok := v.Items()
	if !ok {
		return nil, fmt.Errorf("value is not a list: %w", ErrMalformedValue)
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		i, ok := item.Int()
		if !ok {
			return nil, fmt.Errorf("list element is not an integer: %w", ErrMalformedValue)
		}
		out = append(out, i)
	}
	return out, nil
}

// Format renders the value back as parset text. Booleans become lowercase
// tokens and timestamps use second precision.
func (v Value) Format() string {
	switch v.kind {
	case KindBool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.Itoa(v.intVal)
	case KindAngle:
		return strconv.FormatFloat(v.angleVal, 'f', -1, 64)
	case KindTime:
		return v.timeVal.UTC().Format("2006-01-02T15:04:05Z")
	case KindList:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.Format()
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return v.strVal
	}
}

var (
	trueTokens  = map[string]struct{}{"on": {}, "enable": {}, "true": {}}
	falseTokens = map[string]struct{}{"off": {}, "disable": {}, "false": {}}
)

// Timestamps appear either as ISO instants or as date plus time separated
// by a blank; both occur in real parsets.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Coerce converts one raw parset value into its typed form. The precedence
// is fixed: bracketed list, boolean token, angle (keyed on the field
// name), integer, timestamp, plain string.
func Coerce(key, raw string) (Value, error) {
	raw = strings.ReplaceAll(raw, "\n", "")
	raw = strings.ReplaceAll(raw, `"`, "")

	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		return coerceList(raw[1 : len(raw)-1])
	}

	lower := strings.ToLower(raw)
	if _, ok := trueTokens[lower]; ok {
		return Bool(true), nil
	}
	if _, ok := falseTokens[lower]; ok {
		return Bool(false), nil
	}

	if strings.Contains(strings.ToLower(key), "angle") {
		deg, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Value{}, fmt.Errorf("angle %s=%q: %w", key, raw, ErrMalformedValue)
		}
		return Angle(deg), nil
	}

	if isDigits(raw) {
		i, err := strconv.Atoi(raw)
		if err != nil {
			return Value{}, fmt.Errorf("integer %s=%q: %w", key, raw, ErrMalformedValue)
		}
		return Int(i), nil
	}

	if strings.Contains(raw, ":") {
		if t, ok := parseTimestamp(raw); ok {
			return Time(t), nil
		}
	}

	return String(raw), nil
}

func coerceList(body string) (Value, error) {
	if strings.TrimSpace(body) == "" {
		return List(), nil
	}
	var items []Value
	for _, elem := range strings.Split(body, ",") {
		switch {
		case strings.Contains(elem, ".."):
			bounds := strings.SplitN(elem, "..", 2)
			lo, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return Value{}, fmt.Errorf("range %q: %w", elem, ErrMalformedValue)
			}
			hi, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return Value{}, fmt.Errorf("range %q: %w", elem, ErrMalformedValue)
			}
			for i := lo; i <= hi; i++ {
				items = append(items, Int(i))
			}
		case strings.Contains(elem, ":"):
			if t, ok := parseTimestamp(elem); ok {
				items = append(items, Time(t))
			} else {
				items = append(items, String(elem))
			}
		case isDigits(elem):
			i, err := strconv.Atoi(elem)
			if err != nil {
				return Value{}, fmt.Errorf("integer %q: %w", elem, ErrMalformedValue)
			}
			items = append(items, Int(i))
		default:
			items = append(items, String(elem))
		}
	}
	return List(items...), nil
}
