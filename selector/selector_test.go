package selector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithKeepsOrderAndReceiver(t *testing.T) {
	base := D("name", "Syd", "active", true)
	derived := base.With("age", 61)

	assert.Equal(t, []string{"name", "active"}, base.Keys())
	assert.Equal(t, []string{"name", "active", "age"}, derived.Keys())
	assert.False(t, base.Has("age"))
}

func TestWithExistingKeyKeepsPosition(t *testing.T) {
	s := D("a", 1, "b", 2).With("a", 10)
	assert.Equal(t, []string{"a", "b"}, s.Keys())
	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestMarshalPreservesInsertionOrder(t *testing.T) {
	s := D("z", 1, "a", 2, "m", D("$gt", 3))
	raw, err := json.Marshal(s)
	assert.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":{"$gt":3}}`, string(raw))
}

func TestUnmarshalRoundTrip(t *testing.T) {
	in := `{"b":{"$in":["x","y"]},"a":1,"$or":[{"c":2},{"d":3}]}`
	var s Selector
	err := json.Unmarshal([]byte(in), &s)
	assert.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "$or"}, s.Keys())

	or, _ := s.Get("$or")
	docs, ok := or.([]Selector)
	assert.True(t, ok)
	assert.Len(t, docs, 2)

	out, err := json.Marshal(s)
	assert.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestUnmarshalMixedArrayStaysPlain(t *testing.T) {
	var s Selector
	err := json.Unmarshal([]byte(`{"a":[1,{"b":2}]}`), &s)
	assert.NoError(t, err)
	v, _ := s.Get("a")
	seq, ok := v.([]any)
	assert.True(t, ok)
	assert.Len(t, seq, 2)
}

func TestUnmarshalRejectsNonObject(t *testing.T) {
	var s Selector
	err := json.Unmarshal([]byte(`[1,2]`), &s)
	assert.Error(t, err)
}

func TestIsOperator(t *testing.T) {
	assert.True(t, IsOperator("$and"))
	assert.False(t, IsOperator("age"))
}

func TestOperatorPromotesShortName(t *testing.T) {
	assert.Equal(t, "$gt", Operator("gt"))
	assert.Equal(t, "$gt", Operator("$gt"))
}
