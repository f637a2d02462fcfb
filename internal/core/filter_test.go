package core

import (
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseTypeFilter(t *testing.T) {
	cases := map[string]TypeFilter{
		"":        FilterAll,
		"todos":   FilterAll,
		"all":     FilterAll,
		"entrada": FilterIncome,
		"income":  FilterIncome,
		"saida":   FilterExpense,
		"Expense": FilterExpense,
		"bogus":   FilterAll,
	}
	for in, want := range cases {
		if got := ParseTypeFilter(in); got != want {
			t.Fatalf("ParseTypeFilter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterByType(t *testing.T) {
	tithe := tx(Income, "tithe", 100)
	rent := tx(Expense, "rent", 40)
	got := Filter([]Transaction{tithe, rent}, FilterExpense, "")
	if len(got) != 1 || got[0].Category != "rent" {
		t.Fatalf("Filter(expense) = %+v, want only rent", got)
	}
}

func TestFilterQuery(t *testing.T) {
	ts := []Transaction{
		{Type: Income, Category: "oferta", Description: "Culto de domingo", Responsible: "Ana"},
		{Type: Expense, Category: "luz", Description: "Conta", Responsible: "João"},
		{Type: Expense, Category: "aluguel", Description: "Salão", Responsible: "Carlos"},
	}
	cases := []struct {
		q    string
		want []string
	}{
		{"", []string{"oferta", "luz", "aluguel"}},
		{"CULTO", []string{"oferta"}},
		{"joão", []string{"luz"}},
		{"LUZ", []string{"luz"}},
		{"a", []string{"oferta", "luz", "aluguel"}},
		{"zzz", []string{}},
		{" ", []string{"oferta"}},
		{"   ", []string{}},
		// No trimming: a leading space is part of the needle.
		{" domingo", []string{"oferta"}},
		{" conta", []string{}},
	}
	for _, tc := range cases {
		got := Filter(ts, FilterAll, tc.q)
		names := make([]string, 0, len(got))
		for _, tr := range got {
			names = append(names, tr.Category)
		}
		if !reflect.DeepEqual(names, tc.want) {
			t.Fatalf("Filter(%q) = %v, want %v", tc.q, names, tc.want)
		}
	}
}

func TestFilterNeverNil(t *testing.T) {
	if got := Filter(nil, FilterAll, "x"); got == nil {
		t.Fatalf("Filter must return an empty slice, not nil")
	}
}

func TestFilterProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	queries := []string{"", "o", "LUZ", "ana", "culto", "pr.", "x", " ", " a"}
	filters := []TypeFilter{FilterAll, FilterIncome, FilterExpense}

	for round := 0; round < 200; round++ {
		ts := randomLedger(r, r.IntN(30))
		f := filters[r.IntN(len(filters))]
		q := queries[r.IntN(len(queries))]
		got := Filter(ts, f, q)

		for _, tr := range got {
			if f != FilterAll && string(tr.Type) != string(f) {
				t.Fatalf("round %d: %q passed filter %q", round, tr.Type, f)
			}
			lq := strings.ToLower(q)
			if !strings.Contains(strings.ToLower(tr.Description), lq) &&
				!strings.Contains(strings.ToLower(tr.Category), lq) &&
				!strings.Contains(strings.ToLower(tr.Responsible), lq) {
				t.Fatalf("round %d: %+v does not contain %q", round, tr, q)
			}
		}

		if again := Filter(got, f, q); !reflect.DeepEqual(again, got) {
			t.Fatalf("round %d: filter is not idempotent", round)
		}

		// Relative order is preserved.
		j := 0
		for _, tr := range ts {
			if j < len(got) && reflect.DeepEqual(tr, got[j]) {
				j++
			}
		}
		if j != len(got) {
			t.Fatalf("round %d: output is not a subsequence of input", round)
		}
	}
}

func TestSortForDisplay(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ts := []Transaction{
		{ID: "old", Date: NewDate(2024, 5, 1), CreatedAt: base},
		{ID: "same-early", Date: NewDate(2025, 1, 1), CreatedAt: base},
		{ID: "new", Date: NewDate(2025, 3, 1), CreatedAt: base},
		{ID: "same-late", Date: NewDate(2025, 1, 1), CreatedAt: base.Add(time.Hour)},
	}
	SortForDisplay(ts)
	want := []string{"new", "same-late", "same-early", "old"}
	for i, id := range want {
		if ts[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, ts[i].ID, id)
		}
	}
}
