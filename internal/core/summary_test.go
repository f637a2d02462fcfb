package core

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
)

func tx(t TxType, cat string, amount int64) Transaction {
	return Transaction{Type: t, Category: cat, Amount: decimal.NewFromInt(amount), Date: NewDate(2025, 1, 1)}
}

// randomLedger builds a reproducible sequence that also contains negative
// amounts and unknown types.
func randomLedger(r *rand.Rand, n int) []Transaction {
	cats := []string{"dizimo", "oferta", "aluguel", "luz", "Outros", ""}
	types := []TxType{Income, Expense, Income, Expense, "legacy"}
	out := make([]Transaction, n)
	for i := range out {
		out[i] = Transaction{
			Type:        types[r.IntN(len(types))],
			Category:    cats[r.IntN(len(cats))],
			Amount:      decimal.NewFromInt(r.Int64N(20000) - 2000).Shift(-2),
			Description: []string{"Culto", "Conta de luz", "OFERTA missionária", ""}[r.IntN(4)],
			Responsible: []string{"Ana", "joão", "Pr. Carlos"}[r.IntN(3)],
			Date:        NewDate(2024, 1+r.IntN(12), 1+r.IntN(28)),
		}
	}
	return out
}

func TestAggregateEmpty(t *testing.T) {
	got := Aggregate(nil)
	if !got.Income.IsZero() || !got.Expense.IsZero() || !got.Balance.IsZero() {
		t.Fatalf("Aggregate(nil) = %+v, want zeros", got)
	}
	if b := CategoryBreakdown(nil); len(b) != 0 {
		t.Fatalf("CategoryBreakdown(nil) has %d entries", len(b))
	}
}

func TestAggregateScenario(t *testing.T) {
	ts := []Transaction{tx(Income, "tithe", 100), tx(Expense, "rent", 40)}

	got := Aggregate(ts)
	if !got.Income.Equal(decimal.NewFromInt(100)) || !got.Expense.Equal(decimal.NewFromInt(40)) || !got.Balance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("Aggregate = %+v, want 100/40/60", got)
	}

	b := CategoryBreakdown(ts)
	if len(b) != 2 {
		t.Fatalf("breakdown has %d entries, want 2", len(b))
	}
	if s := b["tithe"]; !s.Total.Equal(decimal.NewFromInt(100)) || s.Count != 1 {
		t.Fatalf("tithe = %+v", s)
	}
	if s := b["rent"]; !s.Total.Equal(decimal.NewFromInt(40)) || s.Count != 1 {
		t.Fatalf("rent = %+v", s)
	}
}

func TestAggregateClampsNegative(t *testing.T) {
	ts := []Transaction{tx(Income, "oferta", -50), tx(Expense, "luz", 10)}
	got := Aggregate(ts)
	if !got.Income.IsZero() {
		t.Fatalf("negative income should count as zero, got %s", got.Income)
	}
	if !got.Balance.Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("balance = %s, want -10", got.Balance)
	}
	if s := CategoryBreakdown(ts)["oferta"]; !s.Total.IsZero() || s.Count != 1 {
		t.Fatalf("oferta = %+v", s)
	}
}

func TestAggregateProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 200; round++ {
		ts := randomLedger(r, r.IntN(40))
		got := Aggregate(ts)
		if !got.Balance.Equal(got.Income.Sub(got.Expense)) {
			t.Fatalf("round %d: balance %s != %s - %s", round, got.Balance, got.Income, got.Expense)
		}
		if got.Income.IsNegative() || got.Expense.IsNegative() {
			t.Fatalf("round %d: negative sum %+v", round, got)
		}

		count := 0
		for _, s := range CategoryBreakdown(ts) {
			count += s.Count
		}
		if count != len(ts) {
			t.Fatalf("round %d: breakdown counts %d, want %d", round, count, len(ts))
		}
	}
}

func TestTopCategories(t *testing.T) {
	b := map[string]CategorySummary{
		"a": {Total: decimal.NewFromInt(10), Count: 1},
		"b": {Total: decimal.NewFromInt(30), Count: 2},
		"c": {Total: decimal.NewFromInt(10), Count: 1},
		"d": {Total: decimal.NewFromInt(5), Count: 4},
	}
	got := TopCategories(b, 3)
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d = %s, want %s", i, got[i].Name, name)
		}
	}
	if all := TopCategories(b, 0); len(all) != 4 {
		t.Fatalf("n=0 should keep all, got %d", len(all))
	}
}

func TestRecent(t *testing.T) {
	ts := []Transaction{tx(Income, "a", 1), tx(Income, "b", 2), tx(Income, "c", 3)}
	if got := Recent(ts, 2); len(got) != 2 || got[0].Category != "a" || got[1].Category != "b" {
		t.Fatalf("Recent(2) = %+v", got)
	}
	if got := Recent(ts, 10); len(got) != 3 {
		t.Fatalf("Recent(10) len = %d", len(got))
	}
	got := Recent(ts, 1)
	got[0].Category = "changed"
	if ts[0].Category != "a" {
		t.Fatalf("Recent must copy its input")
	}
}
