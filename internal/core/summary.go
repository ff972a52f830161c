package core

import "time"

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Type   TxType `json:"type"`
	Amount Money  `json:"amount"`
	Count  int    `json:"count"`
}

// DayTotal is the income/expense split for one calendar day.
type DayTotal struct {
	Day     time.Time `json:"day"`
	Income  Money     `json:"income"`
	Expense Money     `json:"expense"`
}

// Net is income minus expense for the day.
func (d DayTotal) Net() Money {
	return d.Income.Sub(d.Expense)
}

// Summary is a compact financial report for a half-open time range [From, To).
type Summary struct {
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	Income     Money            `json:"income"`
	Expense    Money            `json:"expense"`
	Net        Money            `json:"net"`
	Count      int              `json:"count"`
	ByCategory []CategoryAmount `json:"by_category"`
	Days       []DayTotal       `json:"days"`
}
