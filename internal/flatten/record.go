// Package flatten turns nested query rows into flat, path-keyed rows.
//
// Nested objects contribute dotted paths ("a.b") and array elements contribute
// bracketed indices ("tags[0]"). Flattening is pure: inputs are never mutated
// and the same input always produces the same keys in the same order.
package flatten

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Field is a single named value of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is a row as returned by the query service, with fields in schema
// order. Values are scalars, nested Records, map[string]any, or []any.
type Record []Field

// Get returns the value of the named field.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

// MarshalJSON encodes the record as a JSON object preserving field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FromMap builds a Record from m with keys in sorted order. Nested maps are
// left as they are; the flattener sorts them when it walks them.
func FromMap(m map[string]any) Record {
	keys := sortedKeys(m)
	rec := make(Record, 0, len(keys))
	for _, k := range keys {
		rec = append(rec, Field{Name: k, Value: m[k]})
	}
	return rec
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := marshalNoEscape(key)
	if err != nil {
		return err
	}
	v, err := marshalNoEscape(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// marshalNoEscape is json.Marshal without HTML escaping, since query results
// are displayed as text and never embedded in HTML.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
