package ledger

import (
	"sort"
	"time"

	"shopledger/internal/core"
)

// DailyTotals returns one entry per calendar day in loc that has at least one
// transaction inside [from, to). Days are ascending.
func (s *Store) DailyTotals(from, to time.Time, loc *time.Location) []core.DayTotal {
	return dailyTotals(s.Filter(core.TransactionFilter{From: from, To: to}), loc)
}

// CategorySums totals transactions in [from, to) per category, largest first.
func (s *Store) CategorySums(from, to time.Time) []core.CategoryAmount {
	return categorySums(s.Filter(core.TransactionFilter{From: from, To: to}))
}

// Summary builds the full report for [from, to).
func (s *Store) Summary(from, to time.Time, loc *time.Location) core.Summary {
	return Summarize(s.Filter(core.TransactionFilter{From: from, To: to}), from, to, loc)
}

// Summarize aggregates rows that already fall inside [from, to).
func Summarize(rows []core.Transaction, from, to time.Time, loc *time.Location) core.Summary {
	sum := core.Summary{From: from, To: to, Count: len(rows)}
	for _, tx := range rows {
		switch tx.Type {
		case core.TypeIncome:
			sum.Income = sum.Income.Add(tx.Amount)
		case core.TypeExpense:
			sum.Expense = sum.Expense.Add(tx.Amount)
		}
	}
	sum.Net = sum.Income.Sub(sum.Expense)
	sum.ByCategory = categorySums(rows)
	sum.Days = dailyTotals(rows, loc)
	return sum
}

func dailyTotals(rows []core.Transaction, loc *time.Location) []core.DayTotal {
	if loc == nil {
		loc = time.UTC
	}
	byDay := map[time.Time]*core.DayTotal{}
	for _, tx := range rows {
		t := tx.Timestamp.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		dt, ok := byDay[day]
		if !ok {
			dt = &core.DayTotal{Day: day}
			byDay[day] = dt
		}
		switch tx.Type {
		case core.TypeIncome:
			dt.Income = dt.Income.Add(tx.Amount)
		case core.TypeExpense:
			dt.Expense = dt.Expense.Add(tx.Amount)
		}
	}
	out := make([]core.DayTotal, 0, len(byDay))
	for _, dt := range byDay {
		out = append(out, *dt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

func categorySums(rows []core.Transaction) []core.CategoryAmount {
	idx := map[string]int{}
	var out []core.CategoryAmount
	for _, tx := range rows {
		key := string(tx.Type) + "/" + tx.Category
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, core.CategoryAmount{Name: tx.Category, Type: tx.Type})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}
