package store

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/nfx/storable/app"
	"github.com/nfx/storable/selector"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Entry is one durable batched mutation: a combined $set or a combined
// removal, addressed by the root atomic selector and structural path.
type Entry struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Selector selector.Selector `json:"selector"`
	Path     string            `json:"path,omitempty"`
	Set      map[string]any    `json:"set,omitempty"`
	Removed  []any             `json:"removed,omitempty"`
}

const (
	kindSet  = "set"
	kindPull = "pull"
)

// Journal is the persistence write-through behind batched mutation:
// an append-only log of flushes in a pebble store. Replay order is the
// append order, keys are zero-padded sequence numbers.
type Journal struct {
	db  *pebble.DB
	dir string
	seq atomic.Uint64
}

func NewJournal() *Journal {
	return &Journal{}
}

func (j *Journal) Configure(c app.Config) error {
	j.dir = c.StrOr("dir", "$HOME/.$APP/journal")
	return j.open()
}

func (j *Journal) open() error {
	db, err := pebble.Open(j.dir, &pebble.Options{})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	j.db = db
	// continue the sequence after the last appended entry
	iter, err := db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()
	count := uint64(0)
	for iter.First(); iter.Valid(); iter.Next() {
		count++
	}
	j.seq.Store(count)
	log.Info().Str("dir", j.dir).Uint64("entries", count).Msg("journal open")
	return nil
}

func (j *Journal) Start(ctx app.Context) {
	go func() {
		<-ctx.Done()
		err := j.Close()
		log.Warn().Err(err).Msg("journal closed")
	}()
}

func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func (j *Journal) FlushUpdate(atomic selector.Selector, path string, set map[string]any) error {
	return j.append(Entry{
		Kind:     kindSet,
		Selector: atomic,
		Path:     path,
		Set:      set,
	})
}

func (j *Journal) FlushDelete(atomic selector.Selector, path string, removed []any) error {
	return j.append(Entry{
		Kind:     kindPull,
		Selector: atomic,
		Path:     path,
		Removed:  removed,
	})
}

func (j *Journal) append(e Entry) error {
	e.ID = uuid.NewString()
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	key := fmt.Sprintf("mutation/%020d", j.seq.Add(1))
	err = j.db.Set([]byte(key), raw, pebble.Sync)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	log.Debug().Str("kind", e.Kind).Str("key", key).Msg("flushed")
	return nil
}

// Replay walks entries in append order.
func (j *Journal) Replay(fn func(Entry) error) error {
	iter, err := j.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var e Entry
		err = json.Unmarshal(iter.Value(), &e)
		if err != nil {
			return fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		err = fn(e)
		if err != nil {
			return err
		}
	}
	return nil
}
