package domain

import (
	"bytes"
	"encoding/json"
)

// Optional carries a partial-update field. The zero value means the field was
// not supplied. Null is only meaningful for nullable columns.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// Ptr returns nil when absent or null.
func (o Optional[T]) Ptr() *T {
	if !o.Set || o.Null {
		return nil
	}
	v := o.Value
	return &v
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON is only invoked for keys present in the document, which is
// what makes Set reliable.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// OptionalFromRaw builds an Optional from a raw JSON object member.
func OptionalFromRaw[T any](raw json.RawMessage, present bool) (Optional[T], error) {
	var o Optional[T]
	if !present {
		return o, nil
	}
	if err := o.UnmarshalJSON(raw); err != nil {
		return Optional[T]{}, err
	}
	return o, nil
}
