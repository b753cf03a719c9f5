package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tripledger/internal/amqp"
	"tripledger/internal/core"
	"tripledger/internal/report"
	"tripledger/internal/snapshot"
	"tripledger/internal/store"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
	closed bool
}

func (p *recordingPublisher) PublishRecordCreated(_ context.Context, kind, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind+":"+id)
	return p.err
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

type brokenKV struct {
	*snapshot.Memory
}

func (brokenKV) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

var march15 = time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, kv snapshot.KV, opts ...Option) *LedgerService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithLogger(logger), WithClock(func() time.Time { return march15 })}, opts...)
	s := NewLedgerService(
		store.NewExpenses(kv, store.WithLogger(logger)),
		store.NewTrips(kv, store.WithLogger(logger)),
		opts...,
	)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func validExpense() core.ExpenseInput {
	return core.ExpenseInput{
		Date:     "2023-03-18",
		Merchant: "Lyft",
		Category: "Transportation",
		Amount:   core.Money{Cents: 2310},
		Currency: "USD",
	}
}

func TestCreateExpense(t *testing.T) {
	pub := &recordingPublisher{}
	s := newService(t, snapshot.NewMemory(), WithPublisher(pub))

	e, err := s.CreateExpense(context.Background(), validExpense())
	if err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	if e.Date != "03/18/2023" {
		t.Errorf("date should be stored as MM/DD/YYYY, got %q", e.Date)
	}
	if e.Status != core.StatusPending || e.Receipt {
		t.Errorf("defaults not applied: %+v", e)
	}
	if got := s.ListExpenses(report.ExpenseCriteria{}); len(got) != 6 || got[0].ID != e.ID {
		t.Fatalf("new expense should be first of 6, got %d", len(got))
	}
	if len(pub.events) != 1 || pub.events[0] != amqp.RecordKindExpense+":"+e.ID {
		t.Fatalf("events = %v", pub.events)
	}
}

func TestCreateExpense_TripLinking(t *testing.T) {
	s := newService(t, snapshot.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name       string
		trip       string
		tripID     string
		wantTrip   string
		wantTripID string
		wantErr    error
	}{
		{name: "by id copies name", tripID: "2", wantTrip: "Berlin Client Meeting", wantTripID: "2"},
		{name: "id wins over stale name", trip: "Old Name", tripID: "1", wantTrip: "New York Conference", wantTripID: "1"},
		{name: "by name links id", trip: "Tokyo Office Visit", wantTrip: "Tokyo Office Visit", wantTripID: "3"},
		{name: "unknown name kept unlinked", trip: "Side Quest", wantTrip: "Side Quest"},
		{name: "unknown id rejected", tripID: "nope", wantErr: core.ErrUnknownTrip},
		{name: "no trip", wantTrip: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validExpense()
			in.Trip, in.TripID = tt.trip, tt.tripID

			e, err := s.CreateExpense(ctx, in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) || !errors.Is(err, core.ErrValidation) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateExpense: %v", err)
			}
			if e.Trip != tt.wantTrip || e.TripID != tt.wantTripID {
				t.Fatalf("trip = %q/%q, want %q/%q", e.Trip, e.TripID, tt.wantTrip, tt.wantTripID)
			}
		})
	}
}

func TestCreateExpense_Validation(t *testing.T) {
	pub := &recordingPublisher{}
	s := newService(t, snapshot.NewMemory(), WithPublisher(pub))

	in := validExpense()
	in.Amount = core.Money{}
	_, err := s.CreateExpense(context.Background(), in)
	if !errors.Is(err, core.ErrValidation) || !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("err = %v", err)
	}
	if len(s.ListExpenses(report.ExpenseCriteria{})) != 5 {
		t.Fatal("invalid input must not be stored")
	}
	if len(pub.events) != 0 {
		t.Fatal("nothing should be published")
	}
}

func TestCreateExpense_PersistFailureKeepsRecord(t *testing.T) {
	pub := &recordingPublisher{}
	s := newService(t, brokenKV{snapshot.NewMemory()}, WithPublisher(pub))

	e, err := s.CreateExpense(context.Background(), validExpense())
	if !errors.Is(err, ErrNotPersisted) {
		t.Fatalf("err = %v, want ErrNotPersisted", err)
	}
	if _, getErr := s.Expense(e.ID); getErr != nil {
		t.Fatalf("record should stay in memory: %v", getErr)
	}
	if len(pub.events) != 0 {
		t.Fatal("unpersisted records are not announced")
	}
}

func TestCreateExpense_PublishFailureIsLogged(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("circuit breaker is open")}
	s := newService(t, snapshot.NewMemory(), WithPublisher(pub))

	if _, err := s.CreateExpense(context.Background(), validExpense()); err != nil {
		t.Fatalf("publish failures must not fail the create: %v", err)
	}
}

func TestCreateTrip(t *testing.T) {
	pub := &recordingPublisher{}
	s := newService(t, snapshot.NewMemory(), WithPublisher(pub))
	ctx := context.Background()

	tr, err := s.CreateTrip(ctx, core.TripInput{
		Name: "Lisbon Offsite", StartDate: "2023-06-01", EndDate: "2023-06-03",
		Location: "Lisbon", Status: core.TripUpcoming, Budget: core.Money{Cents: 90000},
	})
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	if tr.Spent.Cents != 0 || tr.Expenses != 0 {
		t.Fatalf("new trip should start empty: %+v", tr)
	}
	if got, err := s.Trip(tr.ID); err != nil || got.Name != "Lisbon Offsite" {
		t.Fatalf("Trip = %+v, %v", got, err)
	}
	if pub.events[0] != amqp.RecordKindTrip+":"+tr.ID {
		t.Fatalf("events = %v", pub.events)
	}

	_, err = s.CreateTrip(ctx, core.TripInput{Name: "Backwards", StartDate: "2023-06-03", EndDate: "2023-06-01", Status: core.TripUpcoming, Budget: core.Money{Cents: 1}})
	if !errors.Is(err, core.ErrTripDateOrder) {
		t.Fatalf("err = %v", err)
	}
}

func TestCreateTrip_NormalizesDates(t *testing.T) {
	s := newService(t, snapshot.NewMemory())

	tr, err := s.CreateTrip(context.Background(), core.TripInput{
		Name: "Porto Retreat", StartDate: "04/05/2023", EndDate: "2023-4-8",
		Location: "Porto", Status: core.TripUpcoming, Budget: core.Money{Cents: 120000},
	})
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	if tr.StartDate != "2023-04-05" || tr.EndDate != "2023-04-08" {
		t.Fatalf("dates = %s..%s, want 2023-04-05..2023-04-08", tr.StartDate, tr.EndDate)
	}
}

func TestLookupNotFound(t *testing.T) {
	s := newService(t, snapshot.NewMemory())
	if _, err := s.Expense("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.Trip("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestViewsInvalidateOnChange(t *testing.T) {
	s := newService(t, snapshot.NewMemory())
	ctx := context.Background()

	before := s.Summary(report.ExpenseCriteria{})
	if again := s.Summary(report.ExpenseCriteria{}); again != before {
		t.Fatalf("cached summary changed: %+v vs %+v", again, before)
	}
	facets := s.Facets()

	in := validExpense()
	in.Amount = core.Money{Cents: 10000}
	in.Category = "Other"
	if _, err := s.CreateExpense(ctx, in); err != nil {
		t.Fatal(err)
	}

	after := s.Summary(report.ExpenseCriteria{})
	if after.Total.Cents != before.Total.Cents+10000 {
		t.Fatalf("summary not recomputed: before %v after %v", before.Total, after.Total)
	}
	if len(s.Facets().Categories) != len(facets.Categories)+1 {
		t.Fatalf("facets not recomputed: %v", s.Facets().Categories)
	}
}

func TestTripUsageIsDerived(t *testing.T) {
	s := newService(t, snapshot.NewMemory())
	ctx := context.Background()

	in := validExpense()
	in.TripID = "2"
	if _, err := s.CreateExpense(ctx, in); err != nil {
		t.Fatal(err)
	}

	var berlin core.TripUsage
	for _, u := range s.TripUsage() {
		if u.TripID == "2" {
			berlin = u
		}
	}
	if berlin.ExpenseCount != 3 || berlin.Spent.Cents != 45000+2500+2310 {
		t.Fatalf("usage = %+v", berlin)
	}

	stored, _ := s.Trip("2")
	if stored.Expenses != 0 {
		t.Fatalf("stored count must not be recomputed, got %d", stored.Expenses)
	}
}

func TestMonthlyTotalsUsesClock(t *testing.T) {
	s := newService(t, snapshot.NewMemory())
	months := s.MonthlyTotals()
	if len(months) != report.MonthsInSeries {
		t.Fatalf("got %d months", len(months))
	}
	last := months[len(months)-1]
	if last.Month != "Mar" || last.Year != 2023 {
		t.Fatalf("series should end in March 2023, got %+v", last)
	}
}

func TestClose(t *testing.T) {
	pub := &recordingPublisher{}
	s := newService(t, snapshot.NewMemory(), WithPublisher(pub))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !pub.closed {
		t.Fatal("publisher should be closed")
	}
	if !s.Loaded() {
		t.Fatal("service should report loaded")
	}
}
