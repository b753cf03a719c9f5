package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	StatusPending    ExpenseStatus = "Pending"
	StatusApproved   ExpenseStatus = "Approved"
	StatusReimbursed ExpenseStatus = "Reimbursed"

	TripActive    TripStatus = "Active"
	TripUpcoming  TripStatus = "Upcoming"
	TripCompleted TripStatus = "Completed"

	// MaxNotesLength bounds Expense.Notes, counted in characters.
	MaxNotesLength = 500
)

type (
	ExpenseStatus string

	TripStatus string

	// Expense is one recorded expense. Trip is a denormalized trip name kept
	// for display and filtering; TripID is the authoritative reference when set.
	Expense struct {
		ID       string        `json:"id"`
		Date     string        `json:"date"`
		Merchant string        `json:"merchant"`
		Category string        `json:"category"`
		Amount   Money         `json:"amount"`
		Currency string        `json:"currency"`
		Status   ExpenseStatus `json:"status"`
		Trip     string        `json:"trip,omitempty"`
		TripID   string        `json:"tripId,omitempty"`
		Location string        `json:"location,omitempty"`
		Notes    string        `json:"notes,omitempty"`
		Receipt  bool          `json:"receipt"`
	}

	// Trip is one planned or completed trip. Spent and Expenses are set to
	// zero on creation and are never recomputed from the expense collection;
	// use a derived TripUsage for live figures.
	Trip struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		StartDate string     `json:"startDate"`
		EndDate   string     `json:"endDate"`
		Location  string     `json:"location"`
		Status    TripStatus `json:"status"`
		Budget    Money      `json:"budget"`
		Spent     Money      `json:"spent"`
		Expenses  int        `json:"expenses"`
	}

	// ExpenseInput carries the user-supplied fields of a new expense.
	ExpenseInput struct {
		Date     string
		Merchant string
		Category string
		Amount   Money
		Currency string
		Trip     string
		TripID   string
		Location string
		Notes    string
	}

	// TripInput carries the user-supplied fields of a new trip.
	TripInput struct {
		Name      string
		StartDate string
		EndDate   string
		Location  string
		Status    TripStatus
		Budget    Money
	}
)

// Categories offered for new expenses. Append to extend.
var Categories = []string{
	"Accommodation",
	"Transportation",
	"Meals",
	"Entertainment",
	"Office Supplies",
	"Other",
}

// Currencies offered for new expenses. Any three-letter upper-case code validates.
var Currencies = []string{"USD", "EUR", "GBP", "JPY", "CAD"}

var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyMerchant   = errors.New("empty merchant")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidCurrency = errors.New("invalid currency")
	ErrNotesTooLong    = errors.New("notes too long")
	ErrEmptyTripName   = errors.New("empty trip name")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrTripDateOrder   = errors.New("end date before start date")
	ErrUnknownTrip     = errors.New("unknown trip")
)

// RecordID implements store.Record.
func (e Expense) RecordID() string { return e.ID }

// RecordID implements store.Record.
func (t Trip) RecordID() string { return t.ID }

// TripRef returns the trip reference used to group expenses: the trip name
// when present, otherwise the trip identifier.
func (e Expense) TripRef() string {
	if e.Trip != "" {
		return e.Trip
	}
	return e.TripID
}

func (s ExpenseStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusReimbursed:
		return true
	}
	return false
}

func (s TripStatus) Valid() bool {
	switch s {
	case TripActive, TripUpcoming, TripCompleted:
		return true
	}
	return false
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

// Validate checks the input the way the entry form does. The record store
// never validates; callers do.
func (in ExpenseInput) Validate() error {
	if _, ok := ParseDate(in.Date); !ok {
		return invalid(ErrInvalidDate)
	}
	if strings.TrimSpace(in.Merchant) == "" {
		return invalid(ErrEmptyMerchant)
	}
	if !knownCategory(in.Category) {
		return invalid(ErrInvalidCategory)
	}
	if err := in.Amount.Validate(); err != nil {
		return invalid(err)
	}
	if !validCurrency(in.Currency) {
		return invalid(ErrInvalidCurrency)
	}
	if utf8.RuneCountInString(in.Notes) > MaxNotesLength {
		return invalid(ErrNotesTooLong)
	}
	return nil
}

func (in TripInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid(ErrEmptyTripName)
	}
	start, ok := ParseDate(in.StartDate)
	if !ok {
		return invalid(fmt.Errorf("start date: %w", ErrInvalidDate))
	}
	end, ok := ParseDate(in.EndDate)
	if !ok {
		return invalid(fmt.Errorf("end date: %w", ErrInvalidDate))
	}
	if end.Before(start.Time) {
		return invalid(ErrTripDateOrder)
	}
	if !in.Status.Valid() {
		return invalid(ErrInvalidStatus)
	}
	if err := in.Budget.Validate(); err != nil {
		return invalid(err)
	}
	return nil
}

// NewExpense builds a record from input, filling the defaulted fields.
func NewExpense(id string, in ExpenseInput) Expense {
	return Expense{
		ID:       id,
		Date:     in.Date,
		Merchant: in.Merchant,
		Category: in.Category,
		Amount:   in.Amount,
		Currency: in.Currency,
		Status:   StatusPending,
		Trip:     in.Trip,
		TripID:   in.TripID,
		Location: in.Location,
		Notes:    in.Notes,
		Receipt:  false,
	}
}

// NewTrip builds a record from input with zero spent and expense count.
func NewTrip(id string, in TripInput) Trip {
	return Trip{
		ID:        id,
		Name:      in.Name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Location:  in.Location,
		Status:    in.Status,
		Budget:    in.Budget,
		Spent:     Money{},
		Expenses:  0,
	}
}

func knownCategory(c string) bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

func validCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
