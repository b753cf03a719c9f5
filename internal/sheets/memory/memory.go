package memory

import (
	"context"
	"fmt"
	"sync"

	"tripledger/internal/core"
	ports "tripledger/internal/sheets"
)

// Mirror keeps appended records in process. Row references count from 1
// per tab.
type Mirror struct {
	mu       sync.Mutex
	expenses []core.Expense
	trips    []core.Trip
}

var _ ports.RecordMirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{}
}

// AppendExpense stores the expense and returns a synthetic row reference.
func (m *Mirror) AppendExpense(_ context.Context, e core.Expense) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = append(m.expenses, e)
	return fmt.Sprintf("mem:expenses:%d", len(m.expenses)), nil
}

// AppendTrip stores the trip and returns a synthetic row reference.
func (m *Mirror) AppendTrip(_ context.Context, t core.Trip) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips = append(m.trips, t)
	return fmt.Sprintf("mem:trips:%d", len(m.trips)), nil
}

// Expenses returns the mirrored expenses in append order.
func (m *Mirror) Expenses() []core.Expense {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Expense(nil), m.expenses...)
}

// Trips returns the mirrored trips in append order.
func (m *Mirror) Trips() []core.Trip {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Trip(nil), m.trips...)
}
