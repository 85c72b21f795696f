package fieldpath

import (
	"fmt"
	"strings"
)

// Entity is a structured record: field access goes through a class-side
// alias table, and localized fields expose their raw translations sidecar.
type Entity interface {
	AliasedField(name string) string
	IsLocalized(field string) bool
	Translations(field string) map[string]any
	Field(name string) (any, bool)
}

// Resolve walks a dotted path through a nested record graph. A miss is a
// normal outcome and yields nil, never an error: absent heads, scalar
// dead-ends and nil records all resolve to nothing.
func Resolve(record any, path string) any {
	if path == "" {
		return record
	}
	head, rest, _ := strings.Cut(path, ".")
	switch rec := record.(type) {
	case nil:
		return nil
	case Entity:
		field := rec.AliasedField(head)
		if rec.IsLocalized(field) && rest != "" {
			// descending into a localized field bypasses the active-locale
			// projection and walks the raw translation map instead
			return descend(rec.Translations(field), rest)
		}
		value, ok := rec.Field(field)
		if !ok {
			return nil
		}
		return descend(value, rest)
	case map[string]any:
		value, ok := rec[head]
		if !ok {
			return nil
		}
		return descend(value, rest)
	case map[any]any:
		// ad-hoc payloads may carry heterogeneous key representations
		value, ok := rec[any(head)]
		if !ok {
			for k, v := range rec {
				if fmt.Sprint(k) == head {
					value, ok = v, true
					break
				}
			}
		}
		if !ok {
			return nil
		}
		return descend(value, rest)
	case []any:
		return flatten(rec, path)
	default:
		return nil
	}
}

// Present reports whether the path's final hop lands on a stored field.
// A field holding an explicit nil is present, Resolve cannot tell the two
// apart. Arrays report presence on any element.
func Present(record any, path string) bool {
	head, rest, _ := strings.Cut(path, ".")
	switch rec := record.(type) {
	case Entity:
		field := rec.AliasedField(head)
		if rec.IsLocalized(field) && rest != "" {
			return Present(rec.Translations(field), rest)
		}
		value, ok := rec.Field(field)
		if !ok {
			return false
		}
		return rest == "" || Present(value, rest)
	case map[string]any:
		value, ok := rec[head]
		if !ok {
			return false
		}
		return rest == "" || Present(value, rest)
	case map[any]any:
		value, ok := rec[any(head)]
		if !ok {
			for k, v := range rec {
				if fmt.Sprint(k) == head {
					value, ok = v, true
					break
				}
			}
		}
		if !ok {
			return false
		}
		return rest == "" || Present(value, rest)
	case []any:
		for _, elem := range rec {
			if Present(elem, path) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func descend(value any, rest string) any {
	if rest == "" {
		return value
	}
	if seq, ok := value.([]any); ok {
		return flatten(seq, rest)
	}
	return Resolve(value, rest)
}

// flatten maps the path over every element and drops the ones resolving
// to nil, so a path crossing sub-records with missing fields does not
// produce positional gaps.
func flatten(seq []any, path string) []any {
	out := []any{}
	for _, elem := range seq {
		if v := Resolve(elem, path); v != nil {
			out = append(out, v)
		}
	}
	return out
}
