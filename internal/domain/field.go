package domain

import (
	"bytes"
	"encoding/json"
)

// Field carries a partial-update value. A zero Field means "leave untouched";
// Set with Null means the caller explicitly sent null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// NewField returns a set, non-null Field.
func NewField[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// NullField returns a Field that clears the column.
func NullField[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}
