package export

import (
	"fmt"
	"time"

	"tripledger/internal/core"
	"tripledger/internal/report"
)

// periodLayout matches how the reports screen prints a picked day.
const periodLayout = "1/2/2006"

// ExpenseColumns declares the expense export formats.
var ExpenseColumns = []Column{
	{Name: "Date", Format: FormatDate},
	{Name: "Notes", Format: FormatText},
}

// ExpenseRows maps expenses to export rows in the given order.
func ExpenseRows(items []core.Expense) []Row {
	rows := make([]Row, 0, len(items))
	for _, e := range items {
		rows = append(rows, Row{
			{Key: "Date", Value: e.Date},
			{Key: "Merchant", Value: e.Merchant},
			{Key: "Category", Value: e.Category},
			{Key: "Amount", Value: e.Amount.Fixed()},
			{Key: "Currency", Value: e.Currency},
			{Key: "Trip", Value: e.Trip},
			{Key: "Status", Value: string(e.Status)},
			{Key: "Notes", Value: e.Notes},
		})
	}
	return rows
}

// ReportColumns keeps the period label out of date rewriting.
var ReportColumns = []Column{
	{Name: "Period", Format: FormatText},
}

// ReportRows renders a summary as a single export row.
func ReportRows(s core.Summary, period string) []Row {
	return []Row{{
		{Key: "Period", Value: period},
		{Key: "TotalExpenses", Value: "$" + s.Total.Fixed()},
		{Key: "AveragePerDay", Value: "$" + s.AveragePerDay.Fixed()},
		{Key: "TopCategory", Value: s.TopCategory},
		{Key: "CategoryAmount", Value: "$" + s.TopCategoryAmount.Fixed()},
		{Key: "CategoryPercentage", Value: fmt.Sprintf("%.1f%%", s.TopCategoryPercentage)},
		{Key: "TripCount", Value: fmt.Sprint(s.TripCount)},
		{Key: "TotalDays", Value: fmt.Sprint(s.TotalDays)},
	}}
}

// TripColumns declares the trip export formats.
var TripColumns = []Column{
	{Name: "StartDate", Format: FormatDate},
	{Name: "EndDate", Format: FormatDate},
}

// TripRows maps trips to export rows; used by the sheet mirror.
func TripRows(trips []core.Trip) []Row {
	rows := make([]Row, 0, len(trips))
	for _, t := range trips {
		rows = append(rows, Row{
			{Key: "Name", Value: t.Name},
			{Key: "StartDate", Value: t.StartDate},
			{Key: "EndDate", Value: t.EndDate},
			{Key: "Location", Value: t.Location},
			{Key: "Status", Value: string(t.Status)},
			{Key: "Budget", Value: t.Budget.Fixed()},
		})
	}
	return rows
}

// Period describes the date bounds of a report.
func Period(c report.ExpenseCriteria) string {
	switch {
	case !c.Start.IsEmpty() && !c.End.IsEmpty():
		return c.Start.Format(periodLayout) + " to " + c.End.Format(periodLayout)
	case !c.Start.IsEmpty():
		return "From " + c.Start.Format(periodLayout)
	case !c.End.IsEmpty():
		return "Until " + c.End.Format(periodLayout)
	default:
		return "All Time"
	}
}

// ExpensesFilename is the download name for an expense export.
func ExpensesFilename(now time.Time) string {
	return "expenses-" + now.UTC().Format(core.ISODateLayout) + ".csv"
}

// ReportFilename is the download name for a report export.
func ReportFilename(now time.Time) string {
	return "expense-report-" + now.UTC().Format(core.ISODateLayout) + ".csv"
}
