package eval

import (
	"encoding/json"
	"fmt"

	"github.com/nfx/storable/fieldpath"
)

// Pluck resolves paths per record: one value per record for a single
// path, a row of per-path values for several.
func (m *Memory) Pluck(paths ...string) []any {
	out := []any{}
	for _, rec := range m.page() {
		if len(paths) == 1 {
			out = append(out, fieldpath.Resolve(rec, paths[0]))
			continue
		}
		row := make([]any, len(paths))
		for i, path := range paths {
			row[i] = fieldpath.Resolve(rec, path)
		}
		out = append(out, row)
	}
	return out
}

// Pick is Pluck over the first record only.
func (m *Memory) Pick(paths ...string) any {
	docs := m.First(1)
	if len(docs) == 0 {
		return nil
	}
	if len(paths) == 1 {
		return fieldpath.Resolve(docs[0], paths[0])
	}
	row := make([]any, len(paths))
	for i, path := range paths {
		row[i] = fieldpath.Resolve(docs[0], path)
	}
	return row
}

type Bucket struct {
	Value any
	Count int
}

// Tally counts occurrences per resolved value in first-seen order.
// With unwind, a resolved sequence counts element by element instead of
// as one composite key.
func (m *Memory) Tally(path string, unwind bool) []Bucket {
	buckets := []Bucket{}
	index := map[string]int{}
	consume := func(v any) {
		key := canonical(v)
		if at, ok := index[key]; ok {
			buckets[at].Count++
			return
		}
		index[key] = len(buckets)
		buckets = append(buckets, Bucket{Value: v, Count: 1})
	}
	for _, rec := range m.page() {
		resolved := fieldpath.Resolve(rec, path)
		if seq, ok := resolved.([]any); ok && unwind {
			for _, elem := range seq {
				consume(elem)
			}
			continue
		}
		consume(resolved)
	}
	return buckets
}

// Distinct deduplicates plucked values preserving first-seen order.
func (m *Memory) Distinct(path string) []any {
	out := []any{}
	seen := map[string]bool{}
	for _, v := range m.Pluck(path) {
		key := canonical(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// canonical keys heterogeneous values for dedup and tallying; values that
// cannot marshal fall back to their printed form.
func canonical(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(raw)
}
