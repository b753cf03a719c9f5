package core

// NoCategory is reported as the top category when nothing was spent.
const NoCategory = "None"

// CategoryTotal is an amount aggregated by category name.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

// MonthTotal is one bucket of the trailing twelve month series.
type MonthTotal struct {
	Month string `json:"month"` // short month name, e.g. "Mar"
	Year  int    `json:"year"`
	Total Money  `json:"total"`
}

// Summary is the derived overview of a set of expenses.
type Summary struct {
	Total                 Money   `json:"total"`
	AveragePerDay         Money   `json:"averagePerDay"`
	TopCategory           string  `json:"topCategory"`
	TopCategoryAmount     Money   `json:"topCategoryAmount"`
	TopCategoryPercentage float64 `json:"topCategoryPercentage"`
	TripCount             int     `json:"tripCount"`
	TotalDays             int     `json:"totalDays"`
}

// TripUsage is a trip's budget use computed from the expense collection.
type TripUsage struct {
	TripID       string     `json:"tripId"`
	Name         string     `json:"name"`
	Status       TripStatus `json:"status"`
	Budget       Money      `json:"budget"`
	Spent        Money      `json:"spent"`
	Remaining    Money      `json:"remaining"`
	ExpenseCount int        `json:"expenseCount"`
	PercentUsed  float64    `json:"percentUsed"`
}
