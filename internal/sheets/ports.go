package sheets

import (
	"context"

	"tripledger/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordMirror appends stored records to an external spreadsheet.
	RecordMirror interface {
		AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
		AppendTrip(ctx context.Context, t core.Trip) (rowRef string, err error)
	}
)
