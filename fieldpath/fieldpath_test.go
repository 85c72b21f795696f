package fieldpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type person struct {
	attrs     map[string]any
	aliases   map[string]string
	localized map[string]bool
	locale    string
}

func (p person) AliasedField(name string) string {
	if stored, ok := p.aliases[name]; ok {
		return stored
	}
	return name
}

func (p person) IsLocalized(field string) bool {
	return p.localized[field]
}

func (p person) Translations(field string) map[string]any {
	translations, _ := p.attrs[field].(map[string]any)
	return translations
}

func (p person) Field(name string) (any, bool) {
	v, ok := p.attrs[name]
	if ok && p.localized[name] {
		translations, _ := v.(map[string]any)
		v, ok = translations[p.locale]
	}
	return v, ok
}

var nick = person{
	locale:    "en",
	aliases:   map[string]string{"nick": "username"},
	localized: map[string]bool{"bio": true},
	attrs: map[string]any{
		"username": "nfx",
		"bio": map[string]any{
			"en": "engineer",
			"pl": "inżynier",
		},
		"pets": []any{
			map[string]any{"name": "rex", "age": 3},
			map[string]any{"name": "paws"},
		},
	},
}

func TestResolveEmptyPathIsIdentity(t *testing.T) {
	assert.Equal(t, 42, Resolve(42, ""))
}

func TestResolveNilRecord(t *testing.T) {
	assert.Nil(t, Resolve(nil, "anything"))
}

func TestResolvePlainMap(t *testing.T) {
	record := map[string]any{"a": map[string]any{"b": 1}}
	assert.Equal(t, 1, Resolve(record, "a.b"))
	assert.Nil(t, Resolve(record, "a.missing"))
	assert.Nil(t, Resolve(record, "missing.b"))
}

func TestResolveScalarDeadEnd(t *testing.T) {
	record := map[string]any{"a": 1}
	assert.Nil(t, Resolve(record, "a.b"))
}

func TestResolveHeterogeneousKeys(t *testing.T) {
	record := map[any]any{1: "one", "two": 2}
	assert.Equal(t, "one", Resolve(record, "1"))
	assert.Equal(t, 2, Resolve(record, "two"))
}

func TestResolveArrayFlattensAndDropsNils(t *testing.T) {
	assert.Equal(t, []any{"rex", "paws"}, Resolve(nick, "pets.name"))
	// only one pet has an age, no positional gap for the other
	assert.Equal(t, []any{3}, Resolve(nick, "pets.age"))
}

func TestResolveEntityAlias(t *testing.T) {
	assert.Equal(t, "nfx", Resolve(nick, "nick"))
	assert.Equal(t, "nfx", Resolve(nick, "username"))
}

func TestResolveLocalizedProjectsActiveLocale(t *testing.T) {
	assert.Equal(t, "engineer", Resolve(nick, "bio"))
}

func TestResolveLocalizedDescendsRawTranslations(t *testing.T) {
	assert.Equal(t, "inżynier", Resolve(nick, "bio.pl"))
	assert.Nil(t, Resolve(nick, "bio.de"))
}

func TestPresentSeesExplicitNil(t *testing.T) {
	record := map[string]any{"retired_at": nil, "name": "rex"}
	// Resolve conflates a null-valued field with a missing one
	assert.Nil(t, Resolve(record, "retired_at"))
	assert.True(t, Present(record, "retired_at"))
	assert.True(t, Present(record, "name"))
	assert.False(t, Present(record, "missing"))
}

func TestPresentDescends(t *testing.T) {
	record := map[string]any{"a": map[string]any{"b": nil}}
	assert.True(t, Present(record, "a.b"))
	assert.False(t, Present(record, "a.c"))
	assert.False(t, Present(record, "a.b.c"))
}

func TestPresentOverArraysAndEntities(t *testing.T) {
	assert.True(t, Present(nick, "pets.age"))
	assert.False(t, Present(nick, "pets.color"))
	assert.True(t, Present(nick, "nick"))
	assert.True(t, Present(nick, "bio.pl"))
	assert.False(t, Present(nick, "bio.de"))
	assert.False(t, Present(nil, "anything"))
}
