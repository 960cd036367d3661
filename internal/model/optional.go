package model

import (
	"bytes"
	"encoding/json"
)

// Optional is a JSON field whose presence matters: partial-update payloads
// and required keys that may legitimately hold a zero value.
//
// Set is true only when the JSON key was present with a non-null value.
// An omitted key and an explicit null both leave Set false, so the stored
// value is kept:
//
//	{"title": "New"}  → Title.Set = true,  Title.Value = "New"
//	{"title": null}   → Title.Set = false
//	{}                → Title.Set = false
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// UnmarshalJSON is only invoked by encoding/json when the key is present.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Value = zero
		o.Set = false
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

// MarshalJSON writes the value, or null when unset.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// ApplyTo copies the value into dst when the field was set.
// Reports whether dst changed.
func (o Optional[T]) ApplyTo(dst *T) bool {
	if !o.Set {
		return false
	}
	*dst = o.Value
	return true
}
