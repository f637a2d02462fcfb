package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	// DashboardTopCategories bounds the category breakdown on the dashboard.
	DashboardTopCategories = 8
	// DashboardRecent is the number of recent transactions on the dashboard.
	DashboardRecent = 5
)

// Totals summarizes a sequence of transactions.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// CategorySummary accumulates the amounts recorded under one category.
type CategorySummary struct {
	Total decimal.Decimal
	Count int
}

// CategoryTotal is a named CategorySummary, used for sorted views.
type CategoryTotal struct {
	Name  string
	Total decimal.Decimal
	Count int
}

// Aggregate sums income and expense amounts. Negative amounts count as zero,
// and transactions of an unknown type are ignored.
func Aggregate(ts []Transaction) Totals {
	income := decimal.Zero
	expense := decimal.Zero
	for _, t := range ts {
		amt := nonNegative(t.Amount)
		switch t.Type {
		case Income:
			income = income.Add(amt)
		case Expense:
			expense = expense.Add(amt)
		}
	}
	return Totals{
		Income:  income,
		Expense: expense,
		Balance: income.Sub(expense),
	}
}

// CategoryBreakdown groups the full sequence by category name in one pass.
// Every transaction is counted, so the counts add up to len(ts).
func CategoryBreakdown(ts []Transaction) map[string]CategorySummary {
	out := make(map[string]CategorySummary)
	for _, t := range ts {
		s := out[t.Category]
		s.Total = s.Total.Add(nonNegative(t.Amount))
		s.Count++
		out[t.Category] = s
	}
	return out
}

// TopCategories sorts a breakdown by total descending (ties by name) and
// keeps at most n entries. n <= 0 keeps everything.
func TopCategories(breakdown map[string]CategorySummary, n int) []CategoryTotal {
	list := make([]CategoryTotal, 0, len(breakdown))
	for name, s := range breakdown {
		list = append(list, CategoryTotal{Name: name, Total: s.Total, Count: s.Count})
	}
	sort.Slice(list, func(i, j int) bool {
		if c := list[i].Total.Cmp(list[j].Total); c != 0 {
			return c > 0
		}
		return list[i].Name < list[j].Name
	})
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	return list
}

// Recent returns the first n transactions of an already ordered sequence.
func Recent(ts []Transaction, n int) []Transaction {
	if n < 0 || len(ts) <= n {
		n = len(ts)
	}
	out := make([]Transaction, n)
	copy(out, ts[:n])
	return out
}
