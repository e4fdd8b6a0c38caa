package receipt

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/zombor/expense-extract/internal/scanning"
)

// Record is an ordered mapping of field name to raw JSON value.
// Keys keep the position of their first insertion; setting an existing key replaces its value in place.
type Record struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewRecord creates an empty Record
func NewRecord() *Record {
	return &Record{values: make(map[string]json.RawMessage)}
}

// Set stores a raw JSON value under key
func (r *Record) Set(key string, value json.RawMessage) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// SetString stores a plain string under key
func (r *Record) SetString(key, value string) {
	data, _ := json.Marshal(value)
	r.Set(key, data)
}

// Get returns the raw JSON value stored under key
func (r *Record) Get(key string) (json.RawMessage, bool) {
	v, ok := r.values[key]
	return v, ok
}

// String returns the value under key as text: strings unquoted, null and missing as empty,
// anything else as compact JSON
func (r *Record) String(key string) string {
	v, ok := r.values[key]
	if !ok {
		return ""
	}
	return valueText(v)
}

// Keys returns the field names in order
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of fields
func (r *Record) Len() int {
	return len(r.keys)
}

// Clone returns an independent copy of the record
func (r *Record) Clone() *Record {
	c := &Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]json.RawMessage, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// MarshalJSON writes the record as a JSON object with keys in order
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(r.values[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the record as a YAML mapping with keys in order
func (r *Record) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range r.keys {
		// JSON is valid YAML, so decoding it keeps key order and number literals
		var doc yaml.Node
		if err := yaml.Unmarshal(r.values[k], &doc); err != nil {
			return nil, fmt.Errorf("decoding field %s: %w", k, err)
		}
		valueNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
		if len(doc.Content) > 0 {
			valueNode = doc.Content[0]
			resetStyle(valueNode)
		}

		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			valueNode,
		)
	}
	return node, nil
}

// resetStyle drops the flow and quoting styles inherited from JSON so the encoder picks block style
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		resetStyle(c)
	}
}

// Transaction is one manifest row
type Transaction struct {
	Row      int     // 1-based data row number, header excluded
	Document string  // document file name relative to the document directory
	Fields   *Record // manifest cells by header name
}

// Merge overlays the model fields onto a copy of the transaction fields.
// A model field with the same name as a manifest column replaces the manifest value.
func Merge(tx Transaction, fields scanning.Fields) *Record {
	merged := tx.Fields.Clone()
	for _, f := range fields {
		merged.Set(f.Name, f.Value)
	}
	return merged
}

func valueText(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return string(v)
	}
	return buf.String()
}
