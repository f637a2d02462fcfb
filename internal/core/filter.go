package core

import (
	"sort"
	"strings"
)

// TypeFilter restricts a listing to one transaction type, or to none.
type TypeFilter string

const (
	FilterAll     TypeFilter = "all"
	FilterIncome  TypeFilter = "income"
	FilterExpense TypeFilter = "expense"
)

// ParseTypeFilter accepts the English names and the Portuguese ones used in
// the UI ("todos", "entrada", "saida"). Anything else means all.
func ParseTypeFilter(s string) TypeFilter {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "entrada":
		return FilterIncome
	case "expense", "saida":
		return FilterExpense
	default:
		return FilterAll
	}
}

// Matches reports whether t passes the type filter.
func (f TypeFilter) Matches(t TxType) bool {
	switch f {
	case FilterIncome:
		return t == Income
	case FilterExpense:
		return t == Expense
	default:
		return true
	}
}

// Filter returns the transactions that pass the type filter and whose
// description, category or responsible contains query, ignoring case.
// Only the empty query matches everything; whitespace is part of the
// needle. Input order is preserved.
func Filter(ts []Transaction, f TypeFilter, query string) []Transaction {
	q := strings.ToLower(query)
	out := make([]Transaction, 0, len(ts))
	for _, t := range ts {
		if !f.Matches(t.Type) {
			continue
		}
		if q != "" && !matchesQuery(t, q) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func matchesQuery(t Transaction, lowered string) bool {
	return strings.Contains(strings.ToLower(t.Description), lowered) ||
		strings.Contains(strings.ToLower(t.Category), lowered) ||
		strings.Contains(strings.ToLower(t.Responsible), lowered)
}

// SortForDisplay orders transactions by date descending. Ties fall back to
// creation time descending and then to the incoming order.
func SortForDisplay(ts []Transaction) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].Date.Equal(ts[j].Date.Time) {
			return ts[i].Date.After(ts[j].Date.Time)
		}
		return ts[i].CreatedAt.After(ts[j].CreatedAt)
	})
}
