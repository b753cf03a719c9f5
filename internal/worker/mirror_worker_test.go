package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"tripledger/internal/amqp"
	"tripledger/internal/core"
	"tripledger/internal/sheets/memory"
	"tripledger/internal/snapshot"
	"tripledger/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type flakyMirror struct {
	*memory.Mirror
	err error
}

func (f *flakyMirror) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.Mirror.AppendExpense(ctx, e)
}

func seed(t *testing.T, kv snapshot.KV) (core.Expense, core.Trip) {
	t.Helper()
	ctx := context.Background()

	trips := store.NewTrips(kv)
	trips.Load(ctx)
	trip, err := trips.Add(ctx, core.TripInput{
		Name: "Lisbon Offsite", StartDate: "2023-06-01", EndDate: "2023-06-03",
		Location: "Lisbon, Portugal", Status: core.TripUpcoming, Budget: core.Money{Cents: 90000},
	})
	if err != nil {
		t.Fatalf("add trip: %v", err)
	}

	expenses := store.NewExpenses(kv)
	expenses.Load(ctx)
	exp, err := expenses.Add(ctx, core.ExpenseInput{
		Date: "06/01/2023", Merchant: "TAP", Category: "Transportation",
		Amount: core.Money{Cents: 32000}, Currency: "EUR", Trip: trip.Name, TripID: trip.ID,
	})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	return exp, trip
}

func TestHandleRecordEvent(t *testing.T) {
	ctx := context.Background()
	kv := snapshot.NewMemory()
	exp, trip := seed(t, kv)

	mirror := memory.New()
	w := NewMirrorWorker(kv, mirror, quietLogger())

	if err := w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.RecordKindExpense, exp.ID)); err != nil {
		t.Fatalf("expense event: %v", err)
	}
	if err := w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.RecordKindTrip, trip.ID)); err != nil {
		t.Fatalf("trip event: %v", err)
	}

	got := mirror.Expenses()
	if len(got) != 1 || got[0].ID != exp.ID || got[0].Merchant != "TAP" {
		t.Fatalf("mirrored expenses = %+v", got)
	}
	if trips := mirror.Trips(); len(trips) != 1 || trips[0].Name != "Lisbon Offsite" {
		t.Fatalf("mirrored trips = %+v", trips)
	}

	ref, ok := w.Mirrored(ctx, amqp.RecordKindExpense, exp.ID)
	if !ok || ref != "mem:expenses:1" {
		t.Fatalf("Mirrored = %q, %v", ref, ok)
	}
}

func TestHandleRecordEvent_Redelivery(t *testing.T) {
	ctx := context.Background()
	kv := snapshot.NewMemory()
	exp, _ := seed(t, kv)

	mirror := memory.New()
	w := NewMirrorWorker(kv, mirror, quietLogger())
	ev := amqp.NewRecordEvent(amqp.RecordKindExpense, exp.ID)

	for i := 0; i < 3; i++ {
		if err := w.HandleRecordEvent(ctx, ev); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if n := len(mirror.Expenses()); n != 1 {
		t.Fatalf("expected one row after redelivery, got %d", n)
	}

	// a new worker process sees the persisted state
	w2 := NewMirrorWorker(kv, mirror, quietLogger())
	if err := w2.HandleRecordEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	if n := len(mirror.Expenses()); n != 1 {
		t.Fatalf("expected one row after restart, got %d", n)
	}
}

func TestHandleRecordEvent_Skips(t *testing.T) {
	ctx := context.Background()
	kv := snapshot.NewMemory()
	seed(t, kv)

	mirror := memory.New()
	w := NewMirrorWorker(kv, mirror, quietLogger())

	tests := []struct {
		name string
		ev   *amqp.RecordEvent
	}{
		{"unknown record", &amqp.RecordEvent{Kind: amqp.RecordKindExpense, ID: "missing"}},
		{"seed expense", &amqp.RecordEvent{Kind: amqp.RecordKindExpense, ID: store.DefaultExpenses()[0].ID}},
		{"seed trip", &amqp.RecordEvent{Kind: amqp.RecordKindTrip, ID: store.DefaultTrips()[0].ID}},
		{"unknown kind", &amqp.RecordEvent{Kind: "invoice", ID: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.HandleRecordEvent(ctx, tt.ev); err != nil {
				t.Fatalf("expected skip, got %v", err)
			}
		})
	}
	if len(mirror.Expenses()) != 0 || len(mirror.Trips()) != 0 {
		t.Fatal("nothing should be mirrored")
	}
}

func TestHandleRecordEvent_MirrorFailure(t *testing.T) {
	ctx := context.Background()
	kv := snapshot.NewMemory()
	exp, _ := seed(t, kv)

	boom := errors.New("quota exceeded")
	mirror := &flakyMirror{Mirror: memory.New(), err: boom}
	w := NewMirrorWorker(kv, mirror, quietLogger())
	ev := amqp.NewRecordEvent(amqp.RecordKindExpense, exp.ID)

	if err := w.HandleRecordEvent(ctx, ev); !errors.Is(err, boom) {
		t.Fatalf("expected mirror error, got %v", err)
	}
	if _, ok := w.Mirrored(ctx, amqp.RecordKindExpense, exp.ID); ok {
		t.Fatal("failed append must not be recorded")
	}

	mirror.err = nil
	if err := w.HandleRecordEvent(ctx, ev); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(mirror.Expenses()) != 1 {
		t.Fatal("retry should mirror the record")
	}
}

func TestSyncPending(t *testing.T) {
	ctx := context.Background()
	kv := snapshot.NewMemory()
	exp, trip := seed(t, kv)

	mirror := memory.New()
	w := NewMirrorWorker(kv, mirror, quietLogger())

	if err := w.HandleRecordEvent(ctx, amqp.NewRecordEvent(amqp.RecordKindExpense, exp.ID)); err != nil {
		t.Fatal(err)
	}

	n, err := w.SyncPending(ctx)
	if err != nil {
		t.Fatalf("SyncPending: %v", err)
	}
	// only the new trip: the new expense is already mirrored and seeds never are
	if n != 1 {
		t.Fatalf("mirrored %d records, want 1", n)
	}
	if trips := mirror.Trips(); len(trips) != 1 || trips[0].ID != trip.ID {
		t.Fatalf("mirrored trips = %+v", trips)
	}
	if exps := mirror.Expenses(); len(exps) != 1 || exps[0].ID != exp.ID {
		t.Fatalf("mirrored expenses = %+v", exps)
	}

	n, err = w.SyncPending(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second sync: n=%d err=%v", n, err)
	}
}

func TestSyncPending_NoSnapshots(t *testing.T) {
	mirror := memory.New()
	w := NewMirrorWorker(snapshot.NewMemory(), mirror, quietLogger())

	n, err := w.SyncPending(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if len(mirror.Expenses()) != 0 {
		t.Fatal("seed data must not be mirrored")
	}
}

func TestSyncPending_OrdersNewRecordsOldestFirst(t *testing.T) {
	ctx := context.Background()
	kv := snapshot.NewMemory()
	_, first := seed(t, kv)

	trips := store.NewTrips(kv)
	trips.Load(ctx)
	second, err := trips.Add(ctx, core.TripInput{
		Name: "Oslo Workshop", StartDate: "2023-07-01", EndDate: "2023-07-02",
		Location: "Oslo, Norway", Status: core.TripUpcoming, Budget: core.Money{Cents: 50000},
	})
	if err != nil {
		t.Fatal(err)
	}

	mirror := memory.New()
	n, err := NewMirrorWorker(kv, mirror, quietLogger()).SyncPending(ctx)
	if err != nil || n != 3 {
		t.Fatalf("n=%d err=%v, want 3 (two trips, one expense)", n, err)
	}
	got := mirror.Trips()
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Fatalf("mirrored trips = %+v", got)
	}
}
