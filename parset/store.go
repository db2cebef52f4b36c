package parset

import (
	"fmt"
	"time"
)

// Store is an ordered mapping from parset keys to coerced values. Keys are
// unique and iteration follows insertion order. Overwriting a key re-runs
// coercion on the new raw string but keeps the original position.
type Store struct {
	keys   []string
	values map[string]Value
}

// NewStore returns an empty property store.
func NewStore() *Store {
	return &Store{values: make(map[string]Value)}
}

// Set coerces the raw string and stores it under key.
func (s *Store) Set(key, raw string) error {
	value, err := Coerce(key, raw)
	if err != nil {
		return err
	}
	s.put(key, value)
	return nil
}

func (s *Store) put(key string, value Value) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the coerced value stored under key.
func (s *Store) Get(key string) (Value, error) {
	value, ok := s.values[key]
	if !ok {
		return Value{}, fmt.Errorf("%q: %w", key, ErrKeyNotFound)
	}
	return value, nil
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the stored keys in insertion order.
func (s *Store) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len reports the number of stored keys.
func (s *Store) Len() int { return len(s.keys) }

// Time returns the timestamp stored under key.
func (s *Store) Time(key string) (time.Time, error) {
	value, err := s.Get(key)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := value.Time()
	if !ok {
		return time.Time{}, fmt.Errorf("%q is not a timestamp: %w", key, ErrMalformedValue)
	}
	return t, nil
}

// Int returns the integer stored under key.
func (s *Store) Int(key string) (int, error) {
	value, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	i, ok := value.Int()
	if !ok {
		return 0, fmt.Errorf("%q is not an integer: %w", key, ErrMalformedValue)
	}
	return i, nil
}

// Text returns the string stored under key.
func (s *Store) Text(key string) (string, error) {
	value, err := s.Get(key)
	if err != nil {
		return "", err
	}
	t, ok := value.Text()
	if !ok {
		return "", fmt.Errorf("%q is not a string: %w", key, ErrMalformedValue)
	}
	return t, nil
}

// Ints returns the integer list stored under key.
func (s *Store) Ints(key string) ([]int, error) {
	value, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	out, err := value.Ints()
	if err != nil {
		return nil, fmt.Errorf("%q: %w", key, err)
	}
	return out, nil
}

// BoolDefault returns the boolean stored under key, or fallback when the
// key is absent or not a boolean.
func (s *Store) BoolDefault(key string, fallback bool) bool {
	value, err := s.Get(key)
	if err != nil {
		return fallback
	}
	if b, ok := value.Bool(); ok {
		return b
	}
	return fallback
}

// FloatDefault returns the numeric value stored under key, or fallback
// when the key is absent. A present but unparseable value also falls back
// to the default, matching how offsets are read from real parsets.
func (s *Store) FloatDefault(key string, fallback float64) float64 {
	value, err := s.Get(key)
	if err != nil {
		return fallback
	}
	f, err := value.Float()
	if err != nil {
		return fallback
	}
	return f
}

// Strings returns the list stored under key flattened to display strings.
// A missing key yields an empty slice.
func (s *Store) Strings(key string) []string {
	value, err := s.Get(key)
	if err != nil {
		return nil
	}
	items, ok := value.Items()
	if !ok {
		return []string{value.Format()}
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Format()
	}
	return out
}
