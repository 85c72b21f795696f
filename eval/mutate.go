package eval

import (
	"github.com/nfx/storable/selector"
)

// Flusher is the persistence write-through for batched mutation.
type Flusher interface {
	FlushUpdate(atomic selector.Selector, path string, set map[string]any) error
	FlushDelete(atomic selector.Selector, path string, removed []any) error
}

// Mutable is a record that can apply an attribute delta locally and
// address its root for a batched write.
type Mutable interface {
	AtomicPath() string
	AtomicSelector() selector.Selector

	// ApplyAttributes applies attrs to the record and reports only the
	// fields that actually changed.
	ApplyAttributes(attrs map[string]any) map[string]any
}

// Embedded additionally knows how to leave its owning parent.
type Embedded interface {
	Mutable

	// AtomicArrayPath addresses the array the record lives in, without
	// the trailing position that AtomicPath carries.
	AtomicArrayPath() string
	Detach()
	MarkDestroyed()
}

type attributed interface {
	Attributes() map[string]any
}

// Update applies attrs to the first record in the window and flushes the
// resulting delta as one $set.
func (m *Memory) Update(attrs map[string]any, f Flusher) error {
	return m.update(m.First(1), attrs, f)
}

// UpdateAll applies attrs to every record in the window. Deltas merge
// into one combined $set keyed by the root atomic selector; records with
// no actual change contribute nothing and do not block the others.
func (m *Memory) UpdateAll(attrs map[string]any, f Flusher) error {
	return m.update(m.page(), attrs, f)
}

func (m *Memory) update(docs []any, attrs map[string]any, f Flusher) error {
	var atomic selector.Selector
	var path string
	var addressed bool
	set := map[string]any{}
	for _, rec := range docs {
		mu, ok := rec.(Mutable)
		if !ok {
			continue
		}
		delta := mu.ApplyAttributes(attrs)
		if len(delta) == 0 {
			continue
		}
		if !addressed {
			atomic = mu.AtomicSelector()
			path = mu.AtomicPath()
			addressed = true
		}
		prefix := mu.AtomicPath()
		for field, value := range delta {
			key := field
			if prefix != "" {
				key = prefix + "." + field
			}
			set[key] = value
		}
	}
	if len(set) == 0 {
		return nil
	}
	return f.FlushUpdate(atomic, path, set)
}

// DeleteAll detaches every record in the window from its owning parent,
// marks it destroyed and flushes one combined removal keyed by the shared
// array path of the removed records. The returned count reflects the
// pre-mutation window.
func (m *Memory) DeleteAll(f Flusher) (int, error) {
	docs := m.page()
	deleted := len(docs)
	var atomic selector.Selector
	var path string
	removed := []any{}
	for _, rec := range docs {
		emb, ok := rec.(Embedded)
		if !ok {
			continue
		}
		if len(removed) == 0 {
			atomic = emb.AtomicSelector()
			path = emb.AtomicArrayPath()
		}
		emb.Detach()
		emb.MarkDestroyed()
		removed = append(removed, raw(rec))
	}
	if len(removed) == 0 {
		return deleted, nil
	}
	return deleted, f.FlushDelete(atomic, path, removed)
}

func raw(rec any) any {
	if a, ok := rec.(attributed); ok {
		return a.Attributes()
	}
	return rec
}
