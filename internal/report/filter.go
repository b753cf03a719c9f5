// Package report derives filtered subsets and aggregates from record
// collections. Every function is pure: the input slices are never modified
// and the result depends only on the arguments.
package report

import (
	"strings"

	"tripledger/internal/core"
)

// DatePolicy decides how a record whose date cannot be parsed is treated by
// a date-bounded query.
type DatePolicy int

const (
	// IncludeUnparseable lets undated records through any date bound.
	IncludeUnparseable DatePolicy = iota
	// ExcludeUnparseable drops undated records whenever a bound is set.
	ExcludeUnparseable
)

// All matches any value in a string criterion. The empty string does too.
const All = "all"

// ExpenseCriteria selects expenses. Zero value matches everything.
type ExpenseCriteria struct {
	Search      string
	Status      string
	Category    string
	Trip        string // trip name or trip id
	Start       core.Date
	End         core.Date
	Unparseable DatePolicy
}

// HasDateRange reports whether either bound is set.
func (c ExpenseCriteria) HasDateRange() bool {
	return !c.Start.IsEmpty() || !c.End.IsEmpty()
}

// TripCriteria selects trips.
type TripCriteria struct {
	Search string
	Status string
}

func isAll(s string) bool {
	return s == "" || strings.EqualFold(s, All)
}

// FilterExpenses returns the matching expenses in their original order.
func FilterExpenses(items []core.Expense, c ExpenseCriteria) []core.Expense {
	search := strings.ToLower(c.Search)
	out := make([]core.Expense, 0, len(items))
	for _, e := range items {
		if search != "" && !containsFold(search, e.Merchant, e.Category, e.Trip) {
			continue
		}
		if !isAll(c.Status) && string(e.Status) != c.Status {
			continue
		}
		if !isAll(c.Category) && e.Category != c.Category {
			continue
		}
		if !isAll(c.Trip) && e.Trip != c.Trip && e.TripID != c.Trip {
			continue
		}
		if !InDateRange(e.Date, c.Start, c.End, c.Unparseable) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// InDateRange checks a record date against inclusive calendar-day bounds.
// An empty bound is open. With no bounds every date matches, parseable or not.
func InDateRange(date string, start, end core.Date, policy DatePolicy) bool {
	if start.IsEmpty() && end.IsEmpty() {
		return true
	}
	d, ok := core.ParseDate(date)
	if !ok {
		return policy == IncludeUnparseable
	}
	if !start.IsEmpty() && d.Before(start.Time) {
		return false
	}
	if !end.IsEmpty() && d.After(end.Time) {
		return false
	}
	return true
}

// FilterTrips matches search against name and location, plus an exact status.
func FilterTrips(trips []core.Trip, c TripCriteria) []core.Trip {
	search := strings.ToLower(c.Search)
	out := make([]core.Trip, 0, len(trips))
	for _, t := range trips {
		if search != "" && !containsFold(search, t.Name, t.Location) {
			continue
		}
		if !isAll(c.Status) && string(t.Status) != c.Status {
			continue
		}
		out = append(out, t)
	}
	return out
}

func containsFold(lowerNeedle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerNeedle) {
			return true
		}
	}
	return false
}
