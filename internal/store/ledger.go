package store

import (
	"context"

	"tripledger/internal/core"
	"tripledger/internal/snapshot"
)

// Expenses is the expense collection under the "expenses" key.
type Expenses struct {
	*Store[core.Expense]
}

func NewExpenses(kv snapshot.KV, opts ...Option) *Expenses {
	return &Expenses{Store: New(kv, snapshot.KeyExpenses, DefaultExpenses(), opts...)}
}

// Add stores a new expense with status Pending and no receipt. Input is
// not validated here.
func (e *Expenses) Add(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	return e.Insert(ctx, func(id string) core.Expense {
		return core.NewExpense(id, in)
	})
}

// Trips is the trip collection under the "trips" key.
type Trips struct {
	*Store[core.Trip]
}

func NewTrips(kv snapshot.KV, opts ...Option) *Trips {
	return &Trips{Store: New(kv, snapshot.KeyTrips, DefaultTrips(), opts...)}
}

// Add stores a new trip with zero spent and expense count.
func (t *Trips) Add(ctx context.Context, in core.TripInput) (core.Trip, error) {
	return t.Insert(ctx, func(id string) core.Trip {
		return core.NewTrip(id, in)
	})
}

// FindByName returns the first trip, most recent first, with the given name.
func (t *Trips) FindByName(name string) (core.Trip, bool) {
	for _, tr := range t.All() {
		if tr.Name == name {
			return tr, true
		}
	}
	return core.Trip{}, false
}
