package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"tripledger/internal/amqp"
	"tripledger/internal/core"
	"tripledger/internal/log"
	"tripledger/internal/report"
	"tripledger/internal/store"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrNotPersisted is returned with the created record when the snapshot
	// write failed. The record stays in the collection.
	ErrNotPersisted = errors.New("record not persisted")
)

// EventPublisher announces created records. *amqp.Client implements it.
type EventPublisher interface {
	PublishRecordCreated(ctx context.Context, kind, id string) error
}

type Option func(*LedgerService)

func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *LedgerService) { s.ttl = ttl }
}

// LedgerService owns the expense and trip stores and serves derived views.
// Views are cached until the next change to either store.
type LedgerService struct {
	expenses  *store.Expenses
	trips     *store.Trips
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
	ttl       time.Duration

	viewsMu     sync.RWMutex
	views       *cache.Cache
	generation  atomic.Uint64
	unsubscribe []func()
	loaded      atomic.Bool
}

func NewLedgerService(expenses *store.Expenses, trips *store.Trips, opts ...Option) *LedgerService {
	s := &LedgerService{
		expenses: expenses,
		trips:    trips,
		logger:   slog.Default(),
		now:      time.Now,
		ttl:      5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.FieldComponent, log.ComponentLedger)
	s.views = cache.New(s.ttl, 2*s.ttl)

	s.unsubscribe = append(s.unsubscribe,
		expenses.Subscribe(func(store.Event[core.Expense]) { s.invalidate() }),
		trips.Subscribe(func(store.Event[core.Trip]) { s.invalidate() }),
	)
	return s
}

func (s *LedgerService) invalidate() {
	s.viewsMu.Lock()
	defer s.viewsMu.Unlock()
	s.generation.Add(1)
	s.views.Flush()
}

// Load reads both snapshots concurrently. Unreadable snapshots fall back to
// the seed data and are logged by the stores.
func (s *LedgerService) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		source := s.expenses.Load(ctx)
		s.logger.DebugContext(ctx, "Expenses ready", log.FieldSource, string(source))
		return nil
	})
	g.Go(func() error {
		source := s.trips.Load(ctx)
		s.logger.DebugContext(ctx, "Trips ready", log.FieldSource, string(source))
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	s.loaded.Store(true)
	return nil
}

// Loaded reports whether Load has completed.
func (s *LedgerService) Loaded() bool {
	return s.loaded.Load()
}

// CreateExpense validates the input, links it to a trip and stores it with
// its date in MM/DD/YYYY form. A tripId must name an existing trip; a bare
// trip name is linked to the most recent trip with that name, if any.
func (s *LedgerService) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}
	date, _ := core.ParseDate(in.Date)
	in.Date = date.FormatUS()

	in.TripID = strings.TrimSpace(in.TripID)
	switch {
	case in.TripID != "":
		trip, ok := s.trips.Get(in.TripID)
		if !ok {
			return core.Expense{}, fmt.Errorf("%w: %w: %s", core.ErrValidation, core.ErrUnknownTrip, in.TripID)
		}
		in.Trip = trip.Name
	case in.Trip != "":
		if trip, ok := s.trips.FindByName(in.Trip); ok {
			in.TripID = trip.ID
		}
	}

	e, err := s.expenses.Add(ctx, in)
	if err != nil {
		return e, fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}

	s.logger.InfoContext(ctx, "Expense created",
		log.FieldRecordID, e.ID,
		log.FieldAmount, e.Amount.String(),
		log.FieldCurrency, e.Currency,
		log.FieldCategory, e.Category,
		log.FieldTrip, e.TripRef())
	s.publish(ctx, amqp.RecordKindExpense, e.ID)
	return e, nil
}

// CreateTrip validates the input and stores the trip with its dates in
// YYYY-MM-DD form.
func (s *LedgerService) CreateTrip(ctx context.Context, in core.TripInput) (core.Trip, error) {
	if err := in.Validate(); err != nil {
		return core.Trip{}, err
	}
	start, _ := core.ParseDate(in.StartDate)
	end, _ := core.ParseDate(in.EndDate)
	in.StartDate, in.EndDate = start.FormatISO(), end.FormatISO()

	t, err := s.trips.Add(ctx, in)
	if err != nil {
		return t, fmt.Errorf("%w: %w", ErrNotPersisted, err)
	}

	s.logger.InfoContext(ctx, "Trip created", log.FieldRecordID, t.ID, "name", t.Name)
	s.publish(ctx, amqp.RecordKindTrip, t.ID)
	return t, nil
}

// publish logs failures; the record is already stored.
func (s *LedgerService) publish(ctx context.Context, kind, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordCreated(ctx, kind, id); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish record event",
			log.FieldRecordKind, kind,
			log.FieldRecordID, id,
			log.FieldError, err)
	}
}

func (s *LedgerService) Expense(id string) (core.Expense, error) {
	e, ok := s.expenses.Get(id)
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ErrNotFound)
	}
	return e, nil
}

func (s *LedgerService) Trip(id string) (core.Trip, error) {
	t, ok := s.trips.Get(id)
	if !ok {
		return core.Trip{}, fmt.Errorf("trip %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// ListExpenses returns the matching expenses, most recent first.
func (s *LedgerService) ListExpenses(c report.ExpenseCriteria) []core.Expense {
	return report.FilterExpenses(s.expenses.All(), c)
}

// ListTrips returns the matching trips with their stored spent and count.
func (s *LedgerService) ListTrips(c report.TripCriteria) []core.Trip {
	return report.FilterTrips(s.trips.All(), c)
}

// The views below are cached and shared; callers must not modify them.

func (s *LedgerService) Summary(c report.ExpenseCriteria) core.Summary {
	return cached(s, "summary|"+criteriaKey(c), func() core.Summary {
		return report.Summarize(report.FilterExpenses(s.expenses.All(), c))
	})
}

// MonthlyTotals is the trailing twelve month series ending this month.
func (s *LedgerService) MonthlyTotals() []core.MonthTotal {
	now := s.now()
	return cached(s, "monthly|"+now.Format("2006-01"), func() []core.MonthTotal {
		return report.GroupByMonth(s.expenses.All(), now)
	})
}

func (s *LedgerService) CategoryTotals(c report.ExpenseCriteria) []core.CategoryTotal {
	return cached(s, "categories|"+criteriaKey(c), func() []core.CategoryTotal {
		return report.GroupByCategory(report.FilterExpenses(s.expenses.All(), c))
	})
}

// TripUsage derives spent and expense count per trip from the expenses.
func (s *LedgerService) TripUsage() []core.TripUsage {
	return cached(s, "usage", func() []core.TripUsage {
		return report.TripUsage(s.trips.All(), s.expenses.All())
	})
}

func (s *LedgerService) TripBreakdowns(c report.ExpenseCriteria) []report.TripBreakdown {
	return cached(s, "breakdowns|"+criteriaKey(c), func() []report.TripBreakdown {
		return report.TripBreakdowns(report.FilterExpenses(s.expenses.All(), c))
	})
}

func (s *LedgerService) Facets() report.Facets {
	return cached(s, "facets", func() report.Facets {
		return report.ExpenseFacets(s.expenses.All())
	})
}

// Now is the service clock.
func (s *LedgerService) Now() time.Time {
	return s.now()
}

// cached computes a view once per store generation. A result computed
// while a store changed is returned but not kept.
func cached[V any](s *LedgerService, key string, compute func() V) V {
	if v, ok := s.views.Get(key); ok {
		if typed, ok := v.(V); ok {
			return typed
		}
	}
	gen := s.generation.Load()
	v := compute()

	s.viewsMu.RLock()
	defer s.viewsMu.RUnlock()
	if s.generation.Load() == gen {
		s.views.Set(key, v, cache.DefaultExpiration)
	}
	return v
}

func criteriaKey(c report.ExpenseCriteria) string {
	return strings.Join([]string{
		strings.ToLower(c.Search), c.Status, c.Category, c.Trip,
		c.Start.FormatISO(), c.End.FormatISO(), fmt.Sprint(int(c.Unparseable)),
	}, "\x1f")
}

// Close detaches the view cache and closes the publisher when it can be closed.
func (s *LedgerService) Close() error {
	for _, fn := range s.unsubscribe {
		fn()
	}
	s.unsubscribe = nil

	if closer, ok := s.publisher.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
