// Package eval runs selectors over in-memory candidate records: eager
// filter, lazy stable sort, skip/limit window, aggregation and batched
// mutation. Contexts are single-threaded; two contexts mutating
// overlapping candidates race on the owning container, so callers keep
// one mutating context per owning document at a time.
package eval

import (
	"errors"
	"fmt"

	"github.com/nfx/storable/fieldpath"
	"github.com/nfx/storable/selector"
	"github.com/nfx/storable/sorter"
)

var (
	ErrNotFound          = errors.New("no matching record")
	ErrUnsupportedOption = errors.New("no in-memory equivalent")
)

// Matcher is the boolean predicate capability: does one record satisfy
// a selector. The context itself never interprets operator semantics.
type Matcher interface {
	Matches(record any, sel selector.Selector) bool
}

type Options struct {
	Skip int

	// Limit is a window size when set. Unset means all remaining; an
	// explicit zero or negative limit clamps to an empty page.
	Limit *int

	Sort selector.SortSpec

	// Collation has no in-memory semantics and fails construction.
	Collation any
}

func LimitOf(n int) *int {
	return &n
}

// Memory evaluates a selector over a fixed candidate sequence. Filtering
// is eager: candidates are partitioned at construction. Sort and the
// skip/limit window apply lazily on first read. One context drives at
// most one mutation over a given owning document; see the package doc.
type Memory struct {
	sel        selector.Selector
	matcher    Matcher
	candidates []any
	matched    []any
	sort       selector.SortSpec
	skip       int
	limit      *int
	ordered    []any
}

func NewMemory(candidates []any, sel selector.Selector, m Matcher, opts Options) (*Memory, error) {
	if opts.Collation != nil {
		return nil, fmt.Errorf("collation: %w", ErrUnsupportedOption)
	}
	matched := []any{}
	for _, rec := range candidates {
		if m.Matches(rec, sel) {
			matched = append(matched, rec)
		}
	}
	return &Memory{
		sel:        sel,
		matcher:    m,
		candidates: candidates,
		matched:    matched,
		sort:       opts.Sort,
		skip:       opts.Skip,
		limit:      opts.Limit,
	}, nil
}

// page is the working set after sort, skip and limit. Out-of-range and
// negative windows clamp to empty, never error.
func (m *Memory) page() []any {
	docs := m.sorted()
	if m.skip < 0 || m.skip > len(docs) {
		return nil
	}
	docs = docs[m.skip:]
	if m.limit != nil {
		n := *m.limit
		if n <= 0 {
			return nil
		}
		if n < len(docs) {
			docs = docs[:n]
		}
	}
	return docs
}

func (m *Memory) sorted() []any {
	if len(m.sort) == 0 {
		return m.matched
	}
	if m.ordered != nil {
		return m.ordered
	}
	docs := make([]any, len(m.matched))
	copy(docs, m.matched)
	sorter.Slice(docs, func(i int) sorter.Cmp {
		chain := make(sorter.Chain, 0, len(m.sort))
		for _, key := range m.sort {
			chain = append(chain, sorter.Key{
				V:   fieldpath.Resolve(docs[i], key.Path),
				Dir: key.Dir,
			})
		}
		return chain
	})
	m.ordered = docs
	return docs
}

func (m *Memory) Each(fn func(record any)) {
	for _, rec := range m.page() {
		fn(rec)
	}
}

func (m *Memory) Count() int {
	return len(m.page())
}

// First returns up to n records off the top of the window, fewer when
// the set is smaller.
func (m *Memory) First(n int) []any {
	docs := m.page()
	if n < 0 {
		return nil
	}
	if n > len(docs) {
		n = len(docs)
	}
	out := make([]any, n)
	copy(out, docs[:n])
	return out
}

func (m *Memory) Last(n int) []any {
	docs := m.page()
	if n < 0 {
		return nil
	}
	if n > len(docs) {
		n = len(docs)
	}
	out := make([]any, n)
	copy(out, docs[len(docs)-n:])
	return out
}

// FirstOrFail is the required variant: an empty window is an error, not
// an empty result.
func (m *Memory) FirstOrFail() (any, error) {
	docs := m.First(1)
	if len(docs) == 0 {
		return nil, fmt.Errorf("first: %w", ErrNotFound)
	}
	return docs[0], nil
}

func (m *Memory) LastOrFail() (any, error) {
	docs := m.Last(1)
	if len(docs) == 0 {
		return nil, fmt.Errorf("last: %w", ErrNotFound)
	}
	return docs[0], nil
}

// Exists dispatches three ways: no argument asks about the filtered set,
// nil and false are unconditionally false, a selector narrows the scope,
// anything else is treated as an identity filter.
func (m *Memory) Exists(conditions ...any) bool {
	if len(conditions) == 0 {
		return len(m.matched) > 0
	}
	switch c := conditions[0].(type) {
	case nil:
		return false
	case bool:
		if !c {
			return false
		}
		return m.scoped(selector.D("_id", c)).Exists()
	case selector.Selector:
		return m.scoped(c).Exists()
	default:
		return m.scoped(selector.D("_id", c)).Exists()
	}
}

func (m *Memory) scoped(extra selector.Selector) *Memory {
	merged := m.sel
	for _, key := range extra.Keys() {
		value, _ := extra.Get(key)
		if selector.IsOperator(key) {
			if seq, ok := value.([]selector.Selector); ok {
				merged = selector.AddLogicalOperatorExpression(merged, key, seq)
				continue
			}
			merged = merged.With(key, value)
			continue
		}
		next, err := selector.AddFieldExpression(merged, key, value)
		if err != nil {
			continue
		}
		merged = next
	}
	scoped, _ := NewMemory(m.candidates, merged, m.matcher, Options{})
	return scoped
}
