package store

import "tripledger/internal/core"

// DefaultExpenses is the collection used until a snapshot is loaded.
func DefaultExpenses() []core.Expense {
	return []core.Expense{
		{ID: "1", Date: "03/15/2023", Merchant: "Hilton Hotels", Category: "Accommodation", Amount: core.Money{Cents: 24550}, Currency: "USD", Status: core.StatusReimbursed, Trip: "New York Conference", TripID: "1", Receipt: true},
		{ID: "2", Date: "03/14/2023", Merchant: "Uber", Category: "Transportation", Amount: core.Money{Cents: 3250}, Currency: "USD", Status: core.StatusPending, Trip: "New York Conference", TripID: "1", Receipt: true},
		{ID: "3", Date: "03/14/2023", Merchant: "Starbucks", Category: "Meals", Amount: core.Money{Cents: 875}, Currency: "USD", Status: core.StatusApproved, Trip: "New York Conference", TripID: "1", Receipt: true},
		{ID: "4", Date: "02/28/2023", Merchant: "Lufthansa", Category: "Transportation", Amount: core.Money{Cents: 45000}, Currency: "EUR", Status: core.StatusReimbursed, Trip: "Berlin Client Meeting", TripID: "2", Receipt: false},
		{ID: "5", Date: "02/27/2023", Merchant: "Taxi", Category: "Transportation", Amount: core.Money{Cents: 2500}, Currency: "EUR", Status: core.StatusReimbursed, Trip: "Berlin Client Meeting", TripID: "2", Receipt: false},
	}
}

// DefaultTrips is the collection used until a snapshot is loaded.
func DefaultTrips() []core.Trip {
	return []core.Trip{
		{ID: "1", Name: "New York Conference", StartDate: "2023-03-12", EndDate: "2023-03-16", Location: "New York, USA", Status: core.TripActive, Budget: core.Money{Cents: 300000}, Spent: core.Money{Cents: 210000}, Expenses: 12},
		{ID: "2", Name: "Berlin Client Meeting", StartDate: "2023-04-05", EndDate: "2023-04-08", Location: "Berlin, Germany", Status: core.TripUpcoming, Budget: core.Money{Cents: 250000}},
		{ID: "3", Name: "Tokyo Office Visit", StartDate: "2023-05-10", EndDate: "2023-05-17", Location: "Tokyo, Japan", Status: core.TripUpcoming, Budget: core.Money{Cents: 500000}},
		{ID: "4", Name: "San Francisco Team Building", StartDate: "2023-02-15", EndDate: "2023-02-18", Location: "San Francisco, USA", Status: core.TripCompleted, Budget: core.Money{Cents: 400000}, Spent: core.Money{Cents: 380000}, Expenses: 18},
		{ID: "5", Name: "London Sales Meeting", StartDate: "2023-01-20", EndDate: "2023-01-24", Location: "London, UK", Status: core.TripCompleted, Budget: core.Money{Cents: 350000}, Spent: core.Money{Cents: 320000}, Expenses: 15},
	}
}
