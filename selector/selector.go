package selector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Sigil marks a key as an operator rather than a field name.
const Sigil = "$"

const (
	And = "$and"
	Or  = "$or"
	Nor = "$nor"

	Eq        = "$eq"
	Ne        = "$ne"
	Gt        = "$gt"
	Gte       = "$gte"
	Lt        = "$lt"
	Lte       = "$lte"
	In        = "$in"
	Nin       = "$nin"
	Not       = "$not"
	Exists    = "$exists"
	Size      = "$size"
	All       = "$all"
	ElemMatch = "$elemMatch"
	Regexp    = "$regex"
	Options   = "$options"
	Mod       = "$mod"
	Where     = "$where"
)

func IsOperator(key string) bool {
	return strings.HasPrefix(key, Sigil)
}

// Selector is a filter document: an ordered mapping from keys to values.
// The zero value is an empty selector. All transformations return a new
// value, so one selector can safely serve as the root of many lineages.
type Selector struct {
	keys   []string
	values map[string]any
}

// D builds a selector from key-value pairs in the given order.
func D(pairs ...any) Selector {
	if len(pairs)%2 != 0 {
		panic("selector.D: odd number of arguments")
	}
	s := Selector{}
	for i := 0; i < len(pairs); i += 2 {
		s = s.With(pairs[i].(string), pairs[i+1])
	}
	return s
}

func (s Selector) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s Selector) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

func (s Selector) Len() int {
	return len(s.keys)
}

// Keys returns key names in insertion order.
func (s Selector) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// With returns a copy with key set to value. A new key is appended,
// an existing one keeps its position. The receiver is left untouched.
func (s Selector) With(key string, value any) Selector {
	next := Selector{
		keys:   make([]string, len(s.keys), len(s.keys)+1),
		values: make(map[string]any, len(s.values)+1),
	}
	copy(next.keys, s.keys)
	for k, v := range s.values {
		next.values[k] = v
	}
	if _, ok := next.values[key]; !ok {
		next.keys = append(next.keys, key)
	}
	next.values[key] = value
	return next
}

// Map flattens the document into a plain map, losing key order.
func (s Selector) Map() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s Selector) String() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("<broken selector: %s>", err)
	}
	return string(raw)
}

func (s Selector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the document key order, decodes nested objects as
// selectors and arrays of objects as selector sequences, so a selector
// round-trips structurally through its serialized form.
func (s *Selector) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return fmt.Errorf("selector must be an object, got %v", tok)
	}
	parsed, err := parseObject(dec)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func parseObject(dec *json.Decoder) (Selector, error) {
	s := Selector{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return s, err
		}
		key, ok := tok.(string)
		if !ok {
			return s, fmt.Errorf("object key is not a string: %v", tok)
		}
		value, err := parseValue(dec)
		if err != nil {
			return s, fmt.Errorf("key %s: %w", key, err)
		}
		s = s.With(key, value)
	}
	// consume the closing brace
	_, err := dec.Token()
	return s, err
}

func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch tok {
	case json.Delim('{'):
		return parseObject(dec)
	case json.Delim('['):
		return parseArray(dec)
	default:
		return tok, nil
	}
}

func parseArray(dec *json.Decoder) (any, error) {
	values := []any{}
	allDocs := true
	for dec.More() {
		v, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		if _, ok := v.(Selector); !ok {
			allDocs = false
		}
		values = append(values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if allDocs && len(values) > 0 {
		docs := make([]Selector, len(values))
		for i, v := range values {
			docs[i] = v.(Selector)
		}
		return docs, nil
	}
	return values, nil
}

// Regex is the wire-format pattern wrapper: a regular expression that
// arrived as data rather than as a compiled native pattern.
type Regex struct {
	Pattern string `json:"$regex"`
	Flags   string `json:"$options,omitempty"`
}
