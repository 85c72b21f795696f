package selector

import (
	"errors"
	"fmt"
)

var ErrInvalidFieldKey = errors.New("field name must not start with " + Sigil)

// AddFieldExpression merges a plain field clause into the selector.
// A first write lands as a sibling key. A repeated write never clobbers
// the existing value: the new clause escalates into the $and array, so
// duplicate conditions intersect the way the server would intersect them.
func AddFieldExpression(s Selector, field string, value any) (Selector, error) {
	if IsOperator(field) {
		return Selector{}, fmt.Errorf("%w: %q", ErrInvalidFieldKey, field)
	}
	if !s.Has(field) {
		return s.With(field, value), nil
	}
	existing, _ := s.Get(And)
	seq, _ := docSlice(existing)
	merged := make([]Selector, 0, len(seq)+1)
	merged = append(merged, seq...)
	merged = append(merged, D(field, value))
	return s.With(And, merged), nil
}

// AddOperatorExpression merges a per-field operator clause. An existing
// sequence is extended by pure concatenation: no deduplication, no
// element-wise merging, duplicate field keys inside the array stay as-is.
func AddOperatorExpression(s Selector, op string, value []Selector) Selector {
	existing, ok := s.Get(op)
	if seq, isSeq := docSlice(existing); ok && isSeq {
		merged := make([]Selector, 0, len(seq)+len(value))
		merged = append(merged, seq...)
		merged = append(merged, value...)
		return s.With(op, merged)
	}
	return s.With(op, value)
}

// docSlice recovers the sequence-of-documents shape behind a logical
// operator value. Raw []any sequences appear when callers set the
// operator through With instead of the merge entry points.
func docSlice(value any) ([]Selector, bool) {
	switch seq := value.(type) {
	case []Selector:
		return seq, true
	case []any:
		out := make([]Selector, 0, len(seq))
		for _, elem := range seq {
			doc, ok := elem.(Selector)
			if !ok {
				return nil, false
			}
			out = append(out, doc)
		}
		return out, true
	}
	return nil, false
}

// AddLogicalOperatorExpression merges a top-level boolean combinator.
// Same algebra as AddOperatorExpression, separate entry point because
// call sites distinguish field-level operators from combinators.
func AddLogicalOperatorExpression(s Selector, op string, value []Selector) Selector {
	return AddOperatorExpression(s, op, value)
}
