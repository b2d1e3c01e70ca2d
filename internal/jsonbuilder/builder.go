// Package jsonbuilder builds JSON objects that preserve field insertion
// order. The content hash of a MemoryItem body is defined over a canonical
// JSON encoding (spec §3); Go's encoding/json sorts map keys but gives no
// control over struct-field order across versions, so canonical hashing
// needs an explicit, order-preserving builder instead.
package jsonbuilder

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var jsonCustom = jsoniter.ConfigCompatibleWithStandardLibrary

// Object is a JSON object that marshals its fields in insertion order.
type Object struct {
	fields []field
}

type field struct {
	key   string
	value any
}

// NewObject creates a new empty Object.
func NewObject() *Object {
	return &Object{}
}

// MarshalJSON implements order-preserving JSON marshaling.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := jsonCustom.Marshal(f.key)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", f.key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := jsonCustom.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", f.key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Value adds a field holding an arbitrary JSON-marshalable value.
func (o *Object) Value(key string, value any) *Object {
	o.fields = append(o.fields, field{key, value})
	return o
}

// String adds a string field.
func (o *Object) String(key, value string) *Object { return o.Value(key, value) }

// Raw adds a pre-encoded JSON value.
func (o *Object) Raw(key string, value json.RawMessage) *Object { return o.Value(key, value) }

// Bytes returns the canonical JSON encoding of the object.
func (o *Object) Bytes() ([]byte, error) {
	return o.MarshalJSON()
}
