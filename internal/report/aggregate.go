package report

import (
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tripledger/internal/core"
)

// MonthsInSeries is the length of the GroupByMonth series.
const MonthsInSeries = 12

// Summarize totals a set of expenses. Amounts are summed regardless of
// currency. TotalDays counts distinct date strings as written, so the same
// day in two formats counts twice.
func Summarize(items []core.Expense) core.Summary {
	s := core.Summary{TopCategory: core.NoCategory}
	if len(items) == 0 {
		return s
	}

	days := make(map[string]struct{})
	trips := make(map[string]struct{})
	for _, e := range items {
		s.Total = s.Total.Add(e.Amount)
		days[e.Date] = struct{}{}
		if ref := e.TripRef(); ref != "" {
			trips[ref] = struct{}{}
		}
	}
	s.TotalDays = len(days)
	s.TripCount = len(trips)

	if s.TotalDays > 0 {
		avg := decimal.NewFromInt(s.Total.Cents).
			Div(decimal.NewFromInt(int64(s.TotalDays))).
			Round(0)
		s.AveragePerDay = core.Money{Cents: avg.IntPart()}
	}

	// strictly greater: first seen wins ties, zero never wins
	for _, ct := range categoryTotals(items) {
		if ct.Total.Cents > s.TopCategoryAmount.Cents {
			s.TopCategory = ct.Category
			s.TopCategoryAmount = ct.Total
		}
	}
	if s.Total.Cents != 0 {
		s.TopCategoryPercentage = float64(s.TopCategoryAmount.Cents) / float64(s.Total.Cents) * 100
	}
	return s
}

// categoryTotals sums per category in first-seen order.
func categoryTotals(items []core.Expense) []core.CategoryTotal {
	index := make(map[string]int)
	var out []core.CategoryTotal
	for _, e := range items {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, core.CategoryTotal{Category: e.Category})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
	}
	return out
}

// GroupByCategory returns per-category totals, largest first. Equal totals
// keep first-seen order.
func GroupByCategory(items []core.Expense) []core.CategoryTotal {
	out := categoryTotals(items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.Cents > out[j].Total.Cents
	})
	if out == nil {
		out = []core.CategoryTotal{}
	}
	return out
}

// GroupByMonth returns exactly twelve buckets, oldest first, for the
// calendar months ending with the month of now. Records whose date cannot
// be parsed are left out.
func GroupByMonth(items []core.Expense, now time.Time) []core.MonthTotal {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(MonthsInSeries - 1), 0)

	out := make([]core.MonthTotal, MonthsInSeries)
	index := make(map[[2]int]int, MonthsInSeries)
	for i := range out {
		m := first.AddDate(0, i, 0)
		out[i] = core.MonthTotal{Month: m.Month().String()[:3], Year: m.Year()}
		index[[2]int{m.Year(), int(m.Month())}] = i
	}

	for _, e := range items {
		d, ok := core.ParseDate(e.Date)
		if !ok {
			continue
		}
		if i, ok := index[[2]int{d.Year(), int(d.Month())}]; ok {
			out[i].Total = out[i].Total.Add(e.Amount)
		}
	}
	return out
}

// TripUsage derives spent and expense count per trip from the expense
// collection. An expense counts toward a trip by TripID, or by name when it
// has no TripID. The stored Spent and Expenses fields are ignored.
func TripUsage(trips []core.Trip, expenses []core.Expense) []core.TripUsage {
	out := make([]core.TripUsage, 0, len(trips))
	for _, t := range trips {
		u := core.TripUsage{
			TripID: t.ID,
			Name:   t.Name,
			Status: t.Status,
			Budget: t.Budget,
		}
		for _, e := range expenses {
			if belongsTo(e, t) {
				u.Spent = u.Spent.Add(e.Amount)
				u.ExpenseCount++
			}
		}
		u.Remaining = core.Money{Cents: t.Budget.Cents - u.Spent.Cents}
		if t.Budget.Cents > 0 {
			u.PercentUsed = float64(u.Spent.Cents) / float64(t.Budget.Cents) * 100
		}
		out = append(out, u)
	}
	return out
}

func belongsTo(e core.Expense, t core.Trip) bool {
	if e.TripID != "" {
		return e.TripID == t.ID
	}
	return e.Trip != "" && e.Trip == t.Name
}

// TripBreakdown summarizes the expenses filed under one trip reference.
type TripBreakdown struct {
	Trip      string     `json:"trip"`
	Total     core.Money `json:"total"`
	Count     int        `json:"count"`
	FirstDate string     `json:"firstDate"`
	LastDate  string     `json:"lastDate"`
}

// TripBreakdowns groups expenses by trip reference in first-seen order.
// FirstDate and LastDate are the dates of the first and last expense of the
// group in collection order. Expenses without a trip are skipped.
func TripBreakdowns(items []core.Expense) []TripBreakdown {
	index := make(map[string]int)
	out := []TripBreakdown{}
	for _, e := range items {
		ref := e.TripRef()
		if ref == "" {
			continue
		}
		i, ok := index[ref]
		if !ok {
			i = len(out)
			index[ref] = i
			out = append(out, TripBreakdown{Trip: ref, FirstDate: e.Date})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
		out[i].LastDate = e.Date
	}
	return out
}

// Facets lists the distinct values available to the expense filters.
type Facets struct {
	Categories []string `json:"categories"`
	Statuses   []string `json:"statuses"`
	Trips      []string `json:"trips"`
}

// ExpenseFacets collects sorted distinct categories, statuses and trip names.
func ExpenseFacets(items []core.Expense) Facets {
	cats := map[string]struct{}{}
	statuses := map[string]struct{}{}
	trips := map[string]struct{}{}
	for _, e := range items {
		cats[e.Category] = struct{}{}
		statuses[string(e.Status)] = struct{}{}
		if e.Trip != "" {
			trips[e.Trip] = struct{}{}
		}
	}
	return Facets{
		Categories: sortedKeys(cats),
		Statuses:   sortedKeys(statuses),
		Trips:      sortedKeys(trips),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}
