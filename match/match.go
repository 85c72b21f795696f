package match

import (
	"reflect"
	"regexp"
	"sync"

	"github.com/nfx/storable/fieldpath"
	"github.com/nfx/storable/selector"
	"github.com/nfx/storable/sorter"

	"github.com/rs/zerolog/log"
)

// Default is the boolean predicate evaluator: does one record satisfy a
// selector document. It is stateless and safe for concurrent use.
type Default struct {
	seen sync.Map
}

func New() *Default {
	return &Default{}
}

func (m *Default) Matches(record any, sel selector.Selector) bool {
	for _, key := range sel.Keys() {
		value, _ := sel.Get(key)
		if !m.matchesClause(record, key, value) {
			return false
		}
	}
	return true
}

func (m *Default) matchesClause(record any, key string, value any) bool {
	if !selector.IsOperator(key) {
		return m.matchesField(record, key, value)
	}
	switch key {
	case selector.And:
		for _, sub := range docSeq(value) {
			if !m.Matches(record, sub) {
				return false
			}
		}
		return true
	case selector.Or:
		for _, sub := range docSeq(value) {
			if m.Matches(record, sub) {
				return true
			}
		}
		return false
	case selector.Nor:
		for _, sub := range docSeq(value) {
			if m.Matches(record, sub) {
				return false
			}
		}
		return true
	case selector.Where:
		return m.where(record, value)
	default:
		m.unknown(key)
		return false
	}
}

func (m *Default) matchesField(record any, field string, cond any) bool {
	resolved := fieldpath.Resolve(record, field)
	if doc, ok := cond.(selector.Selector); ok && allOperators(doc) {
		for _, op := range doc.Keys() {
			arg, _ := doc.Get(op)
			if op == selector.Exists {
				// a field stored with an explicit nil still exists, so
				// presence is checked on the record, not on the resolved
				// value
				want, _ := arg.(bool)
				if fieldpath.Present(record, field) != want {
					return false
				}
				continue
			}
			if !m.applyOperator(resolved, op, arg) {
				return false
			}
		}
		return true
	}
	return valueMatches(resolved, cond)
}

func (m *Default) applyOperator(resolved any, op string, arg any) bool {
	switch op {
	case selector.Eq:
		return valueMatches(resolved, arg)
	case selector.Ne:
		return !valueMatches(resolved, arg)
	case selector.Gt:
		return anyValue(resolved, func(v any) bool {
			return v != nil && sorter.Compare(v, arg) > 0
		})
	case selector.Gte:
		return anyValue(resolved, func(v any) bool {
			return v != nil && sorter.Compare(v, arg) >= 0
		})
	case selector.Lt:
		return anyValue(resolved, func(v any) bool {
			return v != nil && sorter.Compare(v, arg) < 0
		})
	case selector.Lte:
		return anyValue(resolved, func(v any) bool {
			return v != nil && sorter.Compare(v, arg) <= 0
		})
	case selector.In:
		members, ok := arg.([]any)
		if !ok {
			return false
		}
		for _, member := range members {
			if valueMatches(resolved, member) {
				return true
			}
		}
		return false
	case selector.Nin:
		return !m.applyOperator(resolved, selector.In, arg)
	case selector.Exists:
		// reachable only under $not, where presence already collapsed to
		// the resolved value
		want, _ := arg.(bool)
		return (resolved != nil) == want
	case selector.Size:
		seq, ok := resolved.([]any)
		if !ok {
			return false
		}
		n, ok := sorterFloat(arg)
		return ok && len(seq) == int(n)
	case selector.All:
		members, ok := arg.([]any)
		if !ok {
			return false
		}
		for _, member := range members {
			if !valueMatches(resolved, member) {
				return false
			}
		}
		return len(members) > 0
	case selector.ElemMatch:
		sub, ok := arg.(selector.Selector)
		if !ok {
			return false
		}
		seq, ok := resolved.([]any)
		if !ok {
			return false
		}
		for _, elem := range seq {
			if m.Matches(elem, sub) {
				return true
			}
		}
		return false
	case selector.Regexp:
		return regexMatches(resolved, arg)
	case selector.Options:
		// flags ride along with $regex, nothing to check on their own
		return true
	case selector.Mod:
		parts, ok := arg.([]any)
		if !ok || len(parts) != 2 {
			return false
		}
		div, dok := sorterFloat(parts[0])
		rem, rok := sorterFloat(parts[1])
		if !dok || !rok || div == 0 {
			return false
		}
		return anyValue(resolved, func(v any) bool {
			f, ok := sorterFloat(v)
			return ok && int64(f)%int64(div) == int64(rem)
		})
	case selector.Not:
		switch neg := arg.(type) {
		case selector.Selector:
			for _, op := range neg.Keys() {
				sub, _ := neg.Get(op)
				if m.applyOperator(resolved, op, sub) {
					return false
				}
			}
			return true
		default:
			return !regexMatches(resolved, arg)
		}
	default:
		m.unknown(op)
		return false
	}
}

func (m *Default) unknown(op string) {
	if _, dup := m.seen.LoadOrStore(op, true); dup {
		return
	}
	log.Warn().Str("operator", op).Msg("unknown operator matches nothing")
}

// valueMatches is server-style equality: direct equality, containment
// when the resolved side is an array, pattern match when the condition
// side is a pattern.
func valueMatches(resolved, cond any) bool {
	if regexLike(cond) {
		return regexMatches(resolved, cond)
	}
	if equal(resolved, cond) {
		return true
	}
	if seq, ok := resolved.([]any); ok {
		for _, elem := range seq {
			if equal(elem, cond) {
				return true
			}
		}
	}
	return false
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := sorterFloat(a); aok {
		if bf, bok := sorterFloat(b); bok {
			return af == bf
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func anyValue(resolved any, pred func(any) bool) bool {
	if seq, ok := resolved.([]any); ok {
		for _, elem := range seq {
			if pred(elem) {
				return true
			}
		}
		return false
	}
	return pred(resolved)
}

func regexLike(v any) bool {
	switch v.(type) {
	case *regexp.Regexp, selector.Regex:
		return true
	}
	return false
}

func regexMatches(resolved, pattern any) bool {
	var re *regexp.Regexp
	switch p := pattern.(type) {
	case *regexp.Regexp:
		re = p
	case selector.Regex:
		expr := p.Pattern
		if p.Flags != "" {
			expr = "(?" + p.Flags + ")" + expr
		}
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return false
		}
		re = compiled
	case string:
		compiled, err := regexp.Compile(p)
		if err != nil {
			return false
		}
		re = compiled
	default:
		return false
	}
	return anyValue(resolved, func(v any) bool {
		s, ok := v.(string)
		return ok && re.MatchString(s)
	})
}

func allOperators(doc selector.Selector) bool {
	if doc.Len() == 0 {
		return false
	}
	for _, key := range doc.Keys() {
		if !selector.IsOperator(key) {
			return false
		}
	}
	return true
}

func docSeq(value any) []selector.Selector {
	switch seq := value.(type) {
	case []selector.Selector:
		return seq
	case []any:
		out := make([]selector.Selector, 0, len(seq))
		for _, elem := range seq {
			if doc, ok := elem.(selector.Selector); ok {
				out = append(out, doc)
			}
		}
		return out
	}
	return nil
}

func sorterFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}
