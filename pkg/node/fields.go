package node

import (
	"bytes"
	"encoding/json"
	"math"

	"gopkg.in/yaml.v3"
)

// Fields is an insertion-ordered map of editable scalar values keyed by row
// key. Setting an existing key replaces its value and keeps its position.
// The zero value is empty and ready to use.
type Fields struct {
	keys   []string
	values map[string]any
}

// NewFields returns an empty Fields.
func NewFields() *Fields {
	return &Fields{values: map[string]any{}}
}

// Set stores value under key.
func (f *Fields) Set(key string, value any) {
	if f.values == nil {
		f.values = map[string]any{}
	}
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value for key and whether it exists.
func (f *Fields) Get(key string) (any, bool) {
	if f == nil {
		return nil, false
	}
	v, ok := f.values[key]
	return v, ok
}

// Has reports whether key is present.
func (f *Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Clone returns an independent copy.
func (f *Fields) Clone() *Fields {
	out := NewFields()
	if f == nil {
		return out
	}
	for _, k := range f.keys {
		out.Set(k, f.values[k])
	}
	return out
}

// Map returns the fields as a plain map. Order is lost.
func (f *Fields) Map() map[string]any {
	out := make(map[string]any, f.Len())
	if f == nil {
		return out
	}
	for _, k := range f.keys {
		out[k] = f.values[k]
	}
	return out
}

// MarshalJSON encodes the fields as a JSON object in insertion order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalJSONValue(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalJSONValue(f.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the fields as a YAML mapping in insertion order.
func (f *Fields) MarshalYAML() (interface{}, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range f.Keys() {
		var kn, vn yaml.Node
		if err := kn.Encode(k); err != nil {
			return nil, err
		}
		v := f.values[k]
		if fl, ok := v.(float64); ok && (math.IsInf(fl, 0) || math.IsNaN(fl)) {
			v = nil
		}
		if err := vn.Encode(v); err != nil {
			return nil, err
		}
		m.Content = append(m.Content, &kn, &vn)
	}
	return m, nil
}

// marshalJSONValue encodes a scalar without HTML escaping. Non-finite
// numbers have no JSON form and are written as null.
func marshalJSONValue(v any) ([]byte, error) {
	if fl, ok := v.(float64); ok && (math.IsInf(fl, 0) || math.IsNaN(fl)) {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
