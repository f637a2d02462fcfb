package app

import (
	"tesouraria/internal/core"
)

// ViewModel is everything a page derives from the state. It is recomputed
// on every render.
type ViewModel struct {
	Totals         core.Totals
	Recent         []core.Transaction
	TopCategories  []core.CategoryTotal
	Filtered       []core.Transaction
	FilteredTotals core.Totals
	Count          int
}

func View(s State) ViewModel {
	filtered := core.Filter(s.Transactions, s.Filter, s.Query)
	return ViewModel{
		Totals:         core.Aggregate(s.Transactions),
		Recent:         core.Recent(s.Transactions, core.DashboardRecent),
		TopCategories:  core.TopCategories(core.CategoryBreakdown(s.Transactions), core.DashboardTopCategories),
		Filtered:       filtered,
		FilteredTotals: core.Aggregate(filtered),
		Count:          len(s.Transactions),
	}
}
