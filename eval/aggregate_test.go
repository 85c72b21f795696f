package eval

import (
	"testing"

	"github.com/nfx/storable/selector"

	"github.com/stretchr/testify/assert"
)

var library = []any{
	doc("title", "Dune", "genre", "sf", "tags", []any{"space", "desert"}, "pages", 412),
	doc("title", "Neuromancer", "genre", "sf", "tags", []any{"space", "ai"}, "pages", 271),
	doc("title", "Emma", "genre", "classic", "pages", 474),
}

func shelf(t *testing.T, opts Options) *Memory {
	t.Helper()
	m, err := NewMemory(library, selector.Selector{}, matchAll{}, opts)
	assert.NoError(t, err)
	return m
}

type matchAll struct{}

func (matchAll) Matches(record any, sel selector.Selector) bool {
	return true
}

func TestPluckSinglePath(t *testing.T) {
	assert.Equal(t, []any{"Dune", "Neuromancer", "Emma"},
		shelf(t, Options{}).Pluck("title"))
}

func TestPluckMissingFieldYieldsNil(t *testing.T) {
	assert.Equal(t, []any{412, 271, 474}, shelf(t, Options{}).Pluck("pages"))
	assert.Equal(t, []any{nil, nil, nil}, shelf(t, Options{}).Pluck("isbn"))
}

func TestPluckSeveralPathsYieldsRows(t *testing.T) {
	assert.Equal(t, []any{
		[]any{"Dune", "sf"},
		[]any{"Neuromancer", "sf"},
		[]any{"Emma", "classic"},
	}, shelf(t, Options{}).Pluck("title", "genre"))
}

func TestPickFirstRecordOnly(t *testing.T) {
	assert.Equal(t, "Dune", shelf(t, Options{}).Pick("title"))
	assert.Equal(t, []any{"Dune", "sf"}, shelf(t, Options{}).Pick("title", "genre"))
	assert.Nil(t, shelf(t, Options{Limit: LimitOf(0)}).Pick("title"))
}

func TestTallyCountsInFirstSeenOrder(t *testing.T) {
	assert.Equal(t, []Bucket{
		{Value: "sf", Count: 2},
		{Value: "classic", Count: 1},
	}, shelf(t, Options{}).Tally("genre", false))
}

func TestTallyUnwindCountsElements(t *testing.T) {
	assert.Equal(t, []Bucket{
		{Value: "space", Count: 2},
		{Value: "desert", Count: 1},
		{Value: "ai", Count: 1},
	}, shelf(t, Options{}).Tally("tags", true))
}

func TestTallyCompositeKeyWithoutUnwind(t *testing.T) {
	buckets := shelf(t, Options{}).Tally("tags", false)
	assert.Equal(t, []Bucket{
		{Value: []any{"space", "desert"}, Count: 1},
		{Value: []any{"space", "ai"}, Count: 1},
		{Value: nil, Count: 1},
	}, buckets)
}

func TestTallyRespectsWindow(t *testing.T) {
	assert.Equal(t, []Bucket{
		{Value: "sf", Count: 1},
	}, shelf(t, Options{Limit: LimitOf(1)}).Tally("genre", false))
}

func TestDistinctPreservesFirstSeenOrder(t *testing.T) {
	assert.Equal(t, []any{"sf", "classic"}, shelf(t, Options{}).Distinct("genre"))
}

func TestDistinctOnUnhashableValues(t *testing.T) {
	assert.Equal(t, []any{
		[]any{"space", "desert"},
		[]any{"space", "ai"},
		nil,
	}, shelf(t, Options{}).Distinct("tags"))
}
