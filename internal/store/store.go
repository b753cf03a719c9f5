// Package store holds ordered, append-only record collections backed by a
// snapshot key.
//
// Records are prepended, so All returns the most recent first. Every
// mutation writes the full collection to the snapshot once, under the store
// lock, which keeps writes in mutation order. A failed write is returned to
// the caller but the in-memory change stays.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"tripledger/internal/log"
	"tripledger/internal/snapshot"
)

// Record is anything with a stable identifier.
type Record interface {
	RecordID() string
}

type EventKind int

const (
	EventLoaded EventKind = iota + 1
	EventAdded
	EventReplaced
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventAdded:
		return "added"
	case EventReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Event is delivered to observers after a change. Record is set for EventAdded.
type Event[T Record] struct {
	Kind   EventKind
	Record T
	Len    int
}

// LoadSource reports where the collection came from on Load.
type LoadSource string

const (
	SourceSnapshot LoadSource = "snapshot"
	SourceDefaults LoadSource = "defaults"
	// SourceCurrent means the store was already loaded or mutated; Load did nothing.
	SourceCurrent LoadSource = "current"
)

var ErrDuplicateID = errors.New("duplicate record id")

const maxIDAttempts = 16

type options struct {
	newID  func() string
	logger *slog.Logger
}

type Option func(*options)

// WithIDGenerator replaces the default UUIDv7 generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type Store[T Record] struct {
	mu        sync.RWMutex
	key       string
	kv        snapshot.KV
	items     []T
	loaded    bool
	observers map[int]func(Event[T])
	nextObs   int
	newID     func() string
	logger    *slog.Logger
}

// New returns a store seeded with defaults. The defaults are what Load keeps
// when the snapshot is missing or unreadable.
func New[T Record](kv snapshot.KV, key string, defaults []T, opts ...Option) *Store[T] {
	o := options{
		newID:  newUUID,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	items := make([]T, len(defaults))
	copy(items, defaults)
	return &Store[T]{
		key:       key,
		kv:        kv,
		items:     items,
		observers: make(map[int]func(Event[T])),
		newID:     o.newID,
		logger:    o.logger.With(log.FieldComponent, log.ComponentStore, log.FieldSnapshotKey, key),
	}
}

// Key returns the snapshot key.
func (s *Store[T]) Key() string { return s.key }

// Load reads the snapshot once. A missing key, read failure or malformed
// value keeps the current defaults; the failure is logged, never returned.
// Later calls, or calls after any mutation, are no-ops.
func (s *Store[T]) Load(ctx context.Context) LoadSource {
	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return SourceCurrent
	}
	s.loaded = true

	source := s.loadLocked(ctx)
	n := len(s.items)
	observers := s.observerList()
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Collection loaded", log.FieldSource, string(source), log.FieldRecords, n)
	notify(observers, Event[T]{Kind: EventLoaded, Len: n})
	return source
}

func (s *Store[T]) loadLocked(ctx context.Context) LoadSource {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.logger.WarnContext(ctx, "Snapshot read failed, keeping defaults", log.FieldError, err)
		return SourceDefaults
	}
	if !ok {
		return SourceDefaults
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		s.logger.WarnContext(ctx, "Snapshot malformed, keeping defaults", log.FieldError, err)
		return SourceDefaults
	}
	if items == nil {
		s.logger.WarnContext(ctx, "Snapshot is null, keeping defaults")
		return SourceDefaults
	}

	s.items = s.dedupe(ctx, items)
	return SourceSnapshot
}

// dedupe keeps the first record for each identifier.
func (s *Store[T]) dedupe(ctx context.Context, items []T) []T {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		id := it.RecordID()
		if _, dup := seen[id]; dup {
			s.logger.WarnContext(ctx, "Dropping duplicate record from snapshot", log.FieldRecordID, id)
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}

// Insert assigns a fresh identifier, builds the record with it and prepends
// it. The returned error only reports a persistence failure.
func (s *Store[T]) Insert(ctx context.Context, build func(id string) T) (T, error) {
	s.mu.Lock()
	id, err := s.uniqueIDLocked()
	if err != nil {
		s.mu.Unlock()
		var zero T
		return zero, err
	}
	rec := build(id)

	items := make([]T, 0, len(s.items)+1)
	items = append(items, rec)
	s.items = append(items, s.items...)
	s.loaded = true

	err = s.persistLocked(ctx)
	n := len(s.items)
	observers := s.observerList()
	s.mu.Unlock()

	notify(observers, Event[T]{Kind: EventAdded, Record: rec, Len: n})
	return rec, err
}

func (s *Store[T]) uniqueIDLocked() (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := s.newID()
		if id == "" {
			continue
		}
		if _, taken := s.indexLocked(id); !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate id for %s: %w", s.key, ErrDuplicateID)
}

// Replace swaps the whole collection. It is the only destructive operation.
func (s *Store[T]) Replace(ctx context.Context, items []T) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.RecordID()]; dup {
			return fmt.Errorf("replace %s: %w: %s", s.key, ErrDuplicateID, it.RecordID())
		}
		seen[it.RecordID()] = struct{}{}
	}

	s.mu.Lock()
	s.items = make([]T, len(items))
	copy(s.items, items)
	s.loaded = true
	err := s.persistLocked(ctx)
	n := len(s.items)
	observers := s.observerList()
	s.mu.Unlock()

	notify(observers, Event[T]{Kind: EventReplaced, Len: n})
	return err
}

// Flush writes the current collection.
func (s *Store[T]) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Store[T]) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.key, err)
	}
	if err := s.kv.Put(ctx, s.key, data); err != nil {
		s.logger.ErrorContext(ctx, "Snapshot write failed", log.FieldError, err, log.FieldRecords, len(s.items))
		return fmt.Errorf("persist %s: %w", s.key, err)
	}
	s.logger.DebugContext(ctx, "Snapshot written", log.FieldRecords, len(s.items))
	return nil
}

// Get looks a record up by identifier.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.indexLocked(id); ok {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

func (s *Store[T]) indexLocked(id string) (int, bool) {
	for i := range s.items {
		if s.items[i].RecordID() == id {
			return i, true
		}
	}
	return -1, false
}

// All returns a copy of the collection, most recent first.
func (s *Store[T]) All() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Subscribe registers fn for change events and returns a function that
// removes it. Observers run synchronously after the store lock is released.
func (s *Store[T]) Subscribe(fn func(Event[T])) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store[T]) observerList() []func(Event[T]) {
	out := make([]func(Event[T]), 0, len(s.observers))
	for i := 0; i < s.nextObs; i++ {
		if fn, ok := s.observers[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify[T Record](observers []func(Event[T]), ev Event[T]) {
	for _, fn := range observers {
		fn(ev)
	}
}
