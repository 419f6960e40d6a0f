package cargo

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a three-state override for a single manifest value: inherit the
// value from the layer below, clear it, or set a replacement. The zero Field
// inherits. On the JSON wire an absent key inherits, an explicit null
// clears, and a value sets.
type Field[T any] struct {
	state fieldState
	value T
}

type fieldState uint8

const (
	fieldInherit fieldState = iota
	fieldClear
	fieldSet
)

// SetField builds a Field that replaces the inherited value with v.
func SetField[T any](v T) Field[T] {
	return Field[T]{state: fieldSet, value: v}
}

// ClearField builds a Field that erases the inherited value.
func ClearField[T any]() Field[T] {
	return Field[T]{state: fieldClear}
}

// IsInherit reports whether f leaves the inherited value alone.
func (f Field[T]) IsInherit() bool { return f.state == fieldInherit }

// IsClear reports whether f erases the inherited value.
func (f Field[T]) IsClear() bool { return f.state == fieldClear }

// Get returns the replacement value and whether one is set.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == fieldSet
}

// Apply resolves f against the inherited value: inherit returns base
// unchanged, clear returns nil, set returns the replacement.
func (f Field[T]) Apply(base *T) *T {
	switch f.state {
	case fieldClear:
		return nil
	case fieldSet:
		v := f.value
		return &v
	default:
		return base
	}
}

var jsonNull = []byte("null")

// UnmarshalJSON decodes null as clear and any other value as set. Absent
// keys never reach this method, which leaves the zero (inherit) state.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, jsonNull) {
		*f = Field[T]{state: fieldClear}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Field[T]{state: fieldSet, value: v}
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON. Inherit marshals as null for
// lack of a way to omit the key, so round-tripping an inherit through JSON
// degrades to clear; the wire form is only ever decoded, never re-encoded,
// outside of tests.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state == fieldSet {
		return json.Marshal(f.value)
	}
	return jsonNull, nil
}

func (f Field[T]) String() string {
	switch f.state {
	case fieldClear:
		return "clear"
	case fieldSet:
		return fmt.Sprintf("set(%v)", f.value)
	default:
		return "inherit"
	}
}
