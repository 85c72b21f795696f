package collection

import (
	"reflect"
	"strconv"

	"github.com/nfx/storable/selector"

	"github.com/google/uuid"
)

// Schema carries the class-side metadata of one named collection: the
// alias table mapping short names to stored field names, and the set of
// localized fields whose stored value is a per-locale translation map.
type Schema struct {
	Aliases   map[string]string `json:"aliases,omitempty"`
	Localized map[string]bool   `json:"localized,omitempty"`
	Embedded  []string          `json:"embedded,omitempty"`
}

func (s *Schema) alias(name string) string {
	if s == nil {
		return name
	}
	if stored, ok := s.Aliases[name]; ok {
		return stored
	}
	return name
}

func (s *Schema) localized(field string) bool {
	return s != nil && s.Localized[field]
}

// Doc is one record in a named collection: a loose attribute bag plus
// the schema it was stored under. Embedded docs keep a link to their
// owning parent and the array field holding them.
type Doc struct {
	schema *Schema
	attrs  map[string]any
	locale string

	parent    *Doc
	assoc     string
	destroyed bool
}

func NewDoc(schema *Schema, locale string, attrs map[string]any) *Doc {
	if attrs == nil {
		attrs = map[string]any{}
	}
	if _, ok := attrs["_id"]; !ok {
		attrs["_id"] = uuid.NewString()
	}
	return &Doc{
		schema: schema,
		attrs:  attrs,
		locale: locale,
	}
}

// Embed appends a child record to an array field of d and returns it.
// The child shares the parent's schema and locale.
func (d *Doc) Embed(assoc string, attrs map[string]any) *Doc {
	child := NewDoc(d.schema, d.locale, attrs)
	child.parent = d
	child.assoc = assoc
	seq, _ := d.attrs[assoc].([]any)
	d.attrs[assoc] = append(seq, child)
	return child
}

func (d *Doc) ID() any {
	return d.attrs["_id"]
}

func (d *Doc) Destroyed() bool {
	return d.destroyed
}

// AliasedField, IsLocalized, Translations and Field make Doc a resolvable
// entity for dotted-path traversal.

func (d *Doc) AliasedField(name string) string {
	return d.schema.alias(name)
}

func (d *Doc) IsLocalized(field string) bool {
	return d.schema.localized(field)
}

func (d *Doc) Translations(field string) map[string]any {
	translations, _ := d.attrs[field].(map[string]any)
	return translations
}

// Field reads a stored attribute. Localized fields project the active
// locale out of the translation map.
func (d *Doc) Field(name string) (any, bool) {
	value, ok := d.attrs[name]
	if !ok {
		return nil, false
	}
	if d.schema.localized(name) {
		translations, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = translations[d.locale]
		return value, ok
	}
	return value, true
}

// Attributes exposes the raw attribute bag, embedded children included.
func (d *Doc) Attributes() map[string]any {
	out := map[string]any{}
	for k, v := range d.attrs {
		if seq, ok := v.([]any); ok {
			row := make([]any, len(seq))
			for i, elem := range seq {
				if child, ok := elem.(*Doc); ok {
					row[i] = child.Attributes()
					continue
				}
				row[i] = elem
			}
			out[k] = row
			continue
		}
		out[k] = v
	}
	return out
}

// root follows parent links up to the owning top-level record.
func (d *Doc) root() *Doc {
	r := d
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// AtomicPath positions the record for a batched write: empty for a
// top-level record, dotted assoc.index otherwise.
func (d *Doc) AtomicPath() string {
	if d.parent == nil {
		return ""
	}
	prefix := d.parent.AtomicPath()
	path := d.assoc + "." + strconv.Itoa(d.position())
	if prefix == "" {
		return path
	}
	return prefix + "." + path
}

// AtomicArrayPath addresses the array holding the record, the assoc
// chain without the trailing position. A pull targets the array, not one
// of its elements. Empty for a top-level record.
func (d *Doc) AtomicArrayPath() string {
	if d.parent == nil {
		return ""
	}
	prefix := d.parent.AtomicPath()
	if prefix == "" {
		return d.assoc
	}
	return prefix + "." + d.assoc
}

func (d *Doc) position() int {
	seq, _ := d.parent.attrs[d.assoc].([]any)
	for i, elem := range seq {
		if elem == any(d) {
			return i
		}
	}
	return -1
}

// AtomicSelector identifies the owning top-level record.
func (d *Doc) AtomicSelector() selector.Selector {
	return selector.D("_id", d.root().ID())
}

// ApplyAttributes writes attrs through the alias table and reports only
// the fields that actually changed. Localized writes land in the active
// locale and report a field.locale delta key.
func (d *Doc) ApplyAttributes(attrs map[string]any) map[string]any {
	delta := map[string]any{}
	for name, value := range attrs {
		field := d.schema.alias(name)
		if d.schema.localized(field) {
			translations, ok := d.attrs[field].(map[string]any)
			if !ok {
				translations = map[string]any{}
				d.attrs[field] = translations
			}
			if reflect.DeepEqual(translations[d.locale], value) {
				continue
			}
			translations[d.locale] = value
			delta[field+"."+d.locale] = value
			continue
		}
		if reflect.DeepEqual(d.attrs[field], value) {
			continue
		}
		d.attrs[field] = value
		delta[field] = value
	}
	return delta
}

// Detach removes the record from its owning array field. Top-level
// records have nothing to leave.
func (d *Doc) Detach() {
	if d.parent == nil {
		return
	}
	seq, _ := d.parent.attrs[d.assoc].([]any)
	kept := make([]any, 0, len(seq))
	for _, elem := range seq {
		if elem == any(d) {
			continue
		}
		kept = append(kept, elem)
	}
	d.parent.attrs[d.assoc] = kept
}

func (d *Doc) MarkDestroyed() {
	d.destroyed = true
}
