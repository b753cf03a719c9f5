// Package worker mirrors newly stored records to an external spreadsheet.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"tripledger/internal/amqp"
	"tripledger/internal/log"
	"tripledger/internal/sheets"
	"tripledger/internal/snapshot"
	"tripledger/internal/store"
)

// StateKey holds the identifiers already mirrored, with their row refs.
const StateKey = "mirror_state"

type mirrorState struct {
	Expenses map[string]string `json:"expenses"`
	Trips    map[string]string `json:"trips"`
}

// MirrorWorker appends records announced by record events to the mirror.
// It reads records from the same snapshot store the server writes.
type MirrorWorker struct {
	kv     snapshot.KV
	mirror sheets.RecordMirror
	base   *slog.Logger
	logger *slog.Logger
	mu     sync.Mutex

	// built-in defaults are never mirrored, even once written to a snapshot
	seedExpenses map[string]struct{}
	seedTrips    map[string]struct{}
}

func idSet[T store.Record](items []T) map[string]struct{} {
	ids := make(map[string]struct{}, len(items))
	for _, rec := range items {
		ids[rec.RecordID()] = struct{}{}
	}
	return ids
}

func NewMirrorWorker(kv snapshot.KV, mirror sheets.RecordMirror, logger *slog.Logger) *MirrorWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{
		kv:     kv,
		mirror: mirror,
		base:   logger,
		logger: logger.With(log.FieldComponent, log.ComponentWorker),

		seedExpenses: idSet(store.DefaultExpenses()),
		seedTrips:    idSet(store.DefaultTrips()),
	}
}

// HandleRecordEvent mirrors the record named by ev. Unknown kinds, seed
// records, records missing from the snapshot and records already mirrored
// are skipped.
// Only mirror failures are returned, so the event is redelivered.
func (w *MirrorWorker) HandleRecordEvent(ctx context.Context, ev *amqp.RecordEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.logger.InfoContext(ctx, "Processing record event",
		log.FieldRecordKind, ev.Kind,
		log.FieldRecordID, ev.ID)

	state, err := w.loadState(ctx)
	if err != nil {
		return err
	}

	var mirrored bool
	switch ev.Kind {
	case amqp.RecordKindExpense:
		expenses := store.NewExpenses(w.kv, store.WithLogger(w.base))
		expenses.Load(ctx)
		mirrored, err = mirrorOne(ctx, w.logger, expenses.Store, ev.ID, state.Expenses, w.seedExpenses, w.mirror.AppendExpense)
	case amqp.RecordKindTrip:
		trips := store.NewTrips(w.kv, store.WithLogger(w.base))
		trips.Load(ctx)
		mirrored, err = mirrorOne(ctx, w.logger, trips.Store, ev.ID, state.Trips, w.seedTrips, w.mirror.AppendTrip)
	default:
		w.logger.WarnContext(ctx, "Skipping event of unknown kind", log.FieldRecordKind, ev.Kind)
		return nil
	}
	if err != nil {
		return err
	}
	if mirrored {
		w.saveState(ctx, state)
	}
	return nil
}

func mirrorOne[T store.Record](ctx context.Context, logger *slog.Logger, s *store.Store[T], id string, done map[string]string, seeds map[string]struct{}, appendFn func(context.Context, T) (string, error)) (bool, error) {
	if ref, ok := done[id]; ok {
		logger.DebugContext(ctx, "Record already mirrored", log.FieldRecordID, id, "ref", ref)
		return false, nil
	}
	if _, ok := seeds[id]; ok {
		logger.DebugContext(ctx, "Seed record, not mirrored", log.FieldSnapshotKey, s.Key(), log.FieldRecordID, id)
		return false, nil
	}
	rec, ok := s.Get(id)
	if !ok {
		logger.WarnContext(ctx, "Record not found in snapshot, skipping",
			log.FieldSnapshotKey, s.Key(),
			log.FieldRecordID, id)
		return false, nil
	}

	ref, err := appendFn(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("mirror %s %s: %w", s.Key(), id, err)
	}
	done[id] = ref

	logger.InfoContext(ctx, "Successfully mirrored record",
		log.FieldSnapshotKey, s.Key(),
		log.FieldRecordID, id,
		"ref", ref)
	return true, nil
}

// SyncPending mirrors every stored record that is not mirrored yet, oldest
// first. It recovers from lost events or worker downtime. Seed records are
// skipped, and so are collections with no snapshot.
func (w *MirrorWorker) SyncPending(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, err := w.loadState(ctx)
	if err != nil {
		return 0, err
	}

	trips := store.NewTrips(w.kv, store.WithLogger(w.base))
	expenses := store.NewExpenses(w.kv, store.WithLogger(w.base))

	count := 0
	if trips.Load(ctx) == store.SourceSnapshot {
		n, err := syncAll(ctx, w.logger, trips.Store, state.Trips, w.seedTrips, w.mirror.AppendTrip)
		count += n
		if err != nil {
			w.saveState(ctx, state)
			return count, err
		}
	}
	if expenses.Load(ctx) == store.SourceSnapshot {
		n, err := syncAll(ctx, w.logger, expenses.Store, state.Expenses, w.seedExpenses, w.mirror.AppendExpense)
		count += n
		if err != nil {
			w.saveState(ctx, state)
			return count, err
		}
	}

	if count > 0 {
		w.saveState(ctx, state)
	}
	w.logger.InfoContext(ctx, "Pending sync completed", "mirrored", count)
	return count, nil
}

func syncAll[T store.Record](ctx context.Context, logger *slog.Logger, s *store.Store[T], done map[string]string, seeds map[string]struct{}, appendFn func(context.Context, T) (string, error)) (int, error) {
	items := s.All()
	slices.Reverse(items)

	n := 0
	for _, rec := range items {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := mirrorOne(ctx, logger, s, rec.RecordID(), done, seeds, appendFn)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (w *MirrorWorker) loadState(ctx context.Context) (*mirrorState, error) {
	state := &mirrorState{}
	data, ok, err := w.kv.Get(ctx, StateKey)
	if err != nil {
		return nil, fmt.Errorf("read mirror state: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, state); err != nil {
			w.logger.WarnContext(ctx, "Mirror state malformed, starting empty", log.FieldError, err)
			state = &mirrorState{}
		}
	}
	if state.Expenses == nil {
		state.Expenses = make(map[string]string)
	}
	if state.Trips == nil {
		state.Trips = make(map[string]string)
	}
	return state, nil
}

// saveState logs failures: the rows are already appended.
func (w *MirrorWorker) saveState(ctx context.Context, state *mirrorState) {
	data, err := json.Marshal(state)
	if err == nil {
		err = w.kv.Put(ctx, StateKey, data)
	}
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to save mirror state", log.FieldError, err)
	}
}

// Mirrored reports the row reference of a mirrored record.
func (w *MirrorWorker) Mirrored(ctx context.Context, kind, id string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	state, err := w.loadState(ctx)
	if err != nil {
		return "", false
	}
	var ref string
	var ok bool
	switch kind {
	case amqp.RecordKindExpense:
		ref, ok = state.Expenses[id]
	case amqp.RecordKindTrip:
		ref, ok = state.Trips[id]
	}
	return ref, ok
}
