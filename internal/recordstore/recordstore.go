// Package recordstore holds keyed, time ordered records with cursor style traversal.
//
// Every accessor that finds a record moves the store's cursor to it, Next and Previous
// then walk relative to that cursor. Records are ordered by (time, key) so that records
// sharing a timestamp still have a well defined neighbour.
package recordstore

import (
	"aewatch/internal/components/assert"
	"aewatch/internal/components/telemetry"
	"aewatch/internal/eventbus"
	"context"
	"fmt"
	"sort"
	"sync"

	"dario.cat/mergo"
)

const (
	report_store_set = "store.set"
)

const (
	// TopicPreSet is published with the candidate id and patch before a write.
	TopicPreSet = "pre_set"
	// TopicPostSet is published with the resulting record after a successful write.
	TopicPostSet = "post_set"
)

// ErrRecordWriteRejected is returned by Set when the id or patch is missing, the store is left unchanged.
var ErrRecordWriteRejected = fmt.Errorf("record write rejected")

// Record is implemented by the value types kept in a Store.
type Record[T any] interface {
	comparable
	Key() string
	Timestamp() int64
	// WithKey returns a copy of the record with its key replaced.
	WithKey(key string) T
}

// WriteEvent is the payload of TopicPreSet and TopicPostSet, Record is only filled in for TopicPostSet.
type WriteEvent[T Record[T]] struct {
	ID     string
	Patch  T
	Record T
	Store  *Store[T]
}

type cursor struct {
	key  string
	time int64
}

// Store is safe for concurrent use, though the cursor is shared by all callers.
type Store[T Record[T]] struct {
	mu      sync.Mutex
	records map[string]T
	cursor  *cursor

	bus *eventbus.Bus[WriteEvent[T]]
	tel telemetry.API
}

// New creates an empty store, `name` scopes its telemetry (ex. "guild_messages").
func New[T Record[T]](name string, tel telemetry.API) *Store[T] {
	assert.NotEmptyStr(name)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI(name, tel)
	return &Store[T]{
		records: map[string]T{},
		bus:     eventbus.New[WriteEvent[T]](tel),
		tel:     tel,
	}
}

// Subscribe registers a handler for TopicPreSet or TopicPostSet.
func (s *Store[T]) Subscribe(topic string, handler eventbus.Handler[WriteEvent[T]]) eventbus.SubscriptionID {
	return s.bus.Subscribe(topic, handler)
}

func (s *Store[T]) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if ok {
		s.moveCursor(rec)
	}
	return rec, ok
}

// Set creates the record if it does not exist, otherwise the non-zero fields of `patch`
// are merged into the stored record and every other field is left as it was.
func (s *Store[T]) Set(ctx context.Context, id string, patch T) (T, error) {
	var zero T
	if id == "" || patch == zero {
		err := fmt.Errorf("%w: id %q, empty patch: %v", ErrRecordWriteRejected, id, patch == zero)
		s.tel.ReportWarning(report_store_set, err)
		return zero, err
	}

	s.bus.Publish(ctx, TopicPreSet, WriteEvent[T]{
		ID:    id,
		Patch: patch,
		Store: s,
	})

	s.mu.Lock()
	merged := patch
	existing, ok := s.records[id]
	if ok {
		merged = existing
		err := mergo.Merge(&merged, patch, mergo.WithOverride)
		if err != nil {
			s.mu.Unlock()
			s.tel.ReportBroken(report_store_set, fmt.Errorf("merge: %w", err), id)
			return zero, fmt.Errorf("%w: merge: %w", ErrRecordWriteRejected, err)
		}
	}
	merged = merged.WithKey(id)
	s.records[id] = merged
	s.moveCursor(merged)
	s.mu.Unlock()

	s.bus.Publish(ctx, TopicPostSet, WriteEvent[T]{
		ID:     id,
		Patch:  patch,
		Record: merged,
		Store:  s,
	})

	return merged, nil
}

// First returns the earliest record.
func (s *Store[T]) First() (T, bool) {
	return s.pick(func(candidate, best T) bool {
		return less(candidate, best)
	}, nil)
}

// Last returns the latest record.
func (s *Store[T]) Last() (T, bool) {
	return s.pick(func(candidate, best T) bool {
		return less(best, candidate)
	}, nil)
}

// Next returns the record immediately after the cursor, it never returns the cursor itself.
func (s *Store[T]) Next() (T, bool) {
	return s.pick(func(candidate, best T) bool {
		return less(candidate, best)
	}, func(c cursor, candidate T) bool {
		return lessCursor(c, candidate)
	})
}

// Previous returns the record immediately before the cursor.
func (s *Store[T]) Previous() (T, bool) {
	return s.pick(func(candidate, best T) bool {
		return less(best, candidate)
	}, func(c cursor, candidate T) bool {
		return cursorLess(candidate, c)
	})
}

// All returns every record in traversal order, it does not move the cursor.
func (s *Store[T]) All() []T {
	s.mu.Lock()
	out := make([]T, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return less(out[i], out[j])
	})
	return out
}

// pick finds the best record according to `better` among the records accepted by
// `relative`. When `relative` is non-nil a cursor is required.
func (s *Store[T]) pick(better func(candidate, best T) bool, relative func(c cursor, candidate T) bool) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best T
	if relative != nil && s.cursor == nil {
		return best, false
	}

	found := false
	for _, rec := range s.records {
		if relative != nil && !relative(*s.cursor, rec) {
			continue
		}
		if !found || better(rec, best) {
			best = rec
			found = true
		}
	}
	if found {
		s.moveCursor(best)
	}
	return best, found
}

func (s *Store[T]) moveCursor(rec T) {
	s.cursor = &cursor{key: rec.Key(), time: rec.Timestamp()}
}

func less[T Record[T]](a, b T) bool {
	if a.Timestamp() != b.Timestamp() {
		return a.Timestamp() < b.Timestamp()
	}
	return a.Key() < b.Key()
}

// lessCursor reports whether the cursor comes before `rec`.
func lessCursor[T Record[T]](c cursor, rec T) bool {
	if c.time != rec.Timestamp() {
		return c.time < rec.Timestamp()
	}
	return c.key < rec.Key()
}

// cursorLess reports whether `rec` comes before the cursor.
func cursorLess[T Record[T]](rec T, c cursor) bool {
	if rec.Timestamp() != c.time {
		return rec.Timestamp() < c.time
	}
	return rec.Key() < c.key
}
