package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"tripledger/internal/core"
	"tripledger/internal/export"
	"tripledger/internal/log"
	ports "tripledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options selects the spreadsheet, its tabs and the service account.
type Options struct {
	SpreadsheetID   string
	ExpensesSheet   string
	TripsSheet      string
	CredentialsJSON string
	CredentialsFile string
	Logger          *slog.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	tripsSheet    string
	logger        *slog.Logger
}

// Ensure interface conformance
var _ ports.RecordMirror = (*Client)(nil)

var errNotInitialized = errors.New("sheets service not initialized")

// New creates a Sheets mirror authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	creds, err := credentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an existing service. Empty sheet names fall back to
// "Expenses" and "Trips".
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	expenses := strings.TrimSpace(opts.ExpensesSheet)
	if expenses == "" {
		expenses = "Expenses"
	}
	trips := strings.TrimSpace(opts.TripsSheet)
	if trips == "" {
		trips = "Trips"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		expensesSheet: expenses,
		tripsSheet:    trips,
		logger:        logger.With(log.FieldComponent, log.ComponentSheets),
	}
}

func credentials(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// AppendExpense appends the expense below the last row of the expenses tab.
func (c *Client) AppendExpense(ctx context.Context, e core.Expense) (string, error) {
	rows := export.ExpenseRows([]core.Expense{e})
	return c.append(ctx, c.expensesSheet, e.ID, rows[0])
}

// AppendTrip appends the trip below the last row of the trips tab.
func (c *Client) AppendTrip(ctx context.Context, t core.Trip) (string, error) {
	rows := export.TripRows([]core.Trip{t})
	return c.append(ctx, c.tripsSheet, t.ID, rows[0])
}

func (c *Client) append(ctx context.Context, sheet, id string, row export.Row) (string, error) {
	if c.svc == nil {
		return "", errNotInitialized
	}

	vr := &gsheet.ValueRange{Values: [][]any{rowValues(id, row)}}
	rng := fmt.Sprintf("%s!A:A", sheet)

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.InfoContext(ctx, "Appended row", log.FieldRecordID, id, "sheet", sheet, "range", ref)
	return ref, nil
}

// rowValues puts the record id in column A followed by the export fields.
func rowValues(id string, row export.Row) []any {
	out := make([]any, 0, len(row)+1)
	out = append(out, id)
	for _, f := range row {
		out = append(out, f.Value)
	}
	return out
}
