package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tesouraria/internal/auth"
	"tesouraria/internal/core"
	"tesouraria/internal/live"
)

func tx(id string, typ core.TxType, category, amount, description, responsible string, day int) core.Transaction {
	return core.Transaction{
		ID:          id,
		Type:        typ,
		Category:    category,
		Amount:      decimal.RequireFromString(amount),
		Description: description,
		Responsible: responsible,
		Date:        core.NewDate(2024, 3, day),
	}
}

func ledger() []core.Transaction {
	return []core.Transaction{
		tx("1", core.Expense, "luz", "100", "Conta de luz", "Maria", 20),
		tx("2", core.Income, "dizimo", "500", "Dízimo de março", "João", 15),
		tx("3", core.Income, "oferta", "50", "Oferta culto", "Ana", 10),
		tx("4", core.Expense, "aluguel", "1000", "Aluguel do salão", "Maria", 5),
		tx("5", core.Income, "doacao", "20", "Doação anônima", "Pedro", 3),
		tx("6", core.Income, "oferta", "30", "Oferta jovens", "Ana", 1),
	}
}

func TestReduceSetTab(t *testing.T) {
	s := Reduce(Initial(), SetTab{Tab: TabHistory})
	assert.Equal(t, TabHistory, s.Tab)

	s = Reduce(s, SetTab{Tab: "relatorios"})
	assert.Equal(t, TabHistory, s.Tab, "unknown tabs are ignored")
}

func TestReduceSnapshotReplacesList(t *testing.T) {
	s := Reduce(Initial(), SnapshotReceived{Snapshot: live.Snapshot{Version: 1, Transactions: ledger()}})
	require.Len(t, s.Transactions, 6)

	next := ledger()[:2]
	s = Reduce(s, SnapshotReceived{Snapshot: live.Snapshot{Version: 2, Transactions: next}})
	assert.Len(t, s.Transactions, 2)
	assert.Equal(t, uint64(2), s.Version)

	stale := Reduce(s, SnapshotReceived{Snapshot: live.Snapshot{Version: 1, Transactions: ledger()}})
	assert.Len(t, stale.Transactions, 2, "older snapshot must not replace a newer one")
}

func TestReduceQueryKeepsWhitespace(t *testing.T) {
	s := ReduceAll(Initial(),
		SnapshotReceived{Snapshot: live.Snapshot{Version: 1, Transactions: ledger()}},
		SetQuery{Query: " de"},
	)
	assert.Equal(t, " de", s.Query)

	var ids []string
	for _, tr := range View(s).Filtered {
		ids = append(ids, tr.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)

	s = Reduce(s, SetQuery{Query: " "})
	assert.Equal(t, " ", s.Query)
}

func TestReduceFilterKeepsQuery(t *testing.T) {
	s := ReduceAll(Initial(),
		SetQuery{Query: "oferta"},
		SetFilter{Filter: core.FilterIncome},
	)
	assert.Equal(t, "oferta", s.Query)
	assert.Equal(t, core.FilterIncome, s.Filter)

	s = Reduce(s, SetFilter{Filter: "saida"})
	assert.Equal(t, core.FilterExpense, s.Filter)
	assert.Equal(t, "oferta", s.Query)

	s = Reduce(s, SetFilter{Filter: "whatever"})
	assert.Equal(t, core.FilterAll, s.Filter)
}

func TestReduceIdentityChanged(t *testing.T) {
	alice := auth.Identity{UserID: "u1", Email: "alice@example.com"}
	bob := auth.Identity{UserID: "u2", Email: "bob@example.com"}

	s := ReduceAll(Initial(),
		IdentityChanged{Identity: alice, SignedIn: true},
		SetTab{Tab: TabConfig},
		SetDarkMode{Enabled: true},
		SetQuery{Query: "luz"},
	)
	assert.True(t, s.SignedIn)
	assert.Equal(t, alice, s.Identity)

	same := Reduce(s, IdentityChanged{Identity: alice, SignedIn: true})
	assert.Equal(t, TabConfig, same.Tab)
	assert.Equal(t, "luz", same.Query)

	switched := Reduce(s, IdentityChanged{Identity: bob, SignedIn: true})
	assert.Equal(t, bob, switched.Identity)
	assert.Equal(t, TabDashboard, switched.Tab)
	assert.Empty(t, switched.Query)

	out := Reduce(s, IdentityChanged{})
	assert.False(t, out.SignedIn)
	assert.Empty(t, out.Identity.UserID)
	assert.Empty(t, out.Query)
	assert.True(t, out.DarkMode, "theme survives sign-out")
}

func TestReduceFlash(t *testing.T) {
	s := Reduce(Initial(), Flash{Kind: FlashSuccess, Message: "Transação salva com sucesso!"})
	require.NotNil(t, s.Flash)
	assert.Equal(t, FlashSuccess, s.Flash.Kind)

	assert.Nil(t, Reduce(s, ClearFlash{}).Flash)
	assert.Nil(t, Reduce(s, Flash{}).Flash)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	before := Initial()
	_ = ReduceAll(before, SetTab{Tab: TabNew}, SetQuery{Query: "x"}, SetDarkMode{Enabled: true})
	assert.Equal(t, Initial(), before)
}

func TestView(t *testing.T) {
	s := ReduceAll(Initial(),
		SnapshotReceived{Snapshot: live.Snapshot{Version: 1, Transactions: ledger()}},
		SetFilter{Filter: core.FilterIncome},
		SetQuery{Query: "ANA"},
	)
	v := View(s)

	assert.True(t, v.Totals.Income.Equal(decimal.NewFromInt(600)))
	assert.True(t, v.Totals.Expense.Equal(decimal.NewFromInt(1100)))
	assert.True(t, v.Totals.Balance.Equal(decimal.NewFromInt(-500)))
	assert.Equal(t, 6, v.Count)

	require.Len(t, v.Recent, core.DashboardRecent)
	assert.Equal(t, "1", v.Recent[0].ID)

	require.NotEmpty(t, v.TopCategories)
	assert.Equal(t, "aluguel", v.TopCategories[0].Name)

	require.Len(t, v.Filtered, 2)
	assert.Equal(t, "3", v.Filtered[0].ID)
	assert.Equal(t, "6", v.Filtered[1].ID)
	assert.True(t, v.FilteredTotals.Income.Equal(decimal.NewFromInt(80)))
	assert.True(t, v.FilteredTotals.Expense.IsZero())
}

func TestSessions(t *testing.T) {
	sessions := NewSessions(10, time.Hour)

	assert.Equal(t, Initial(), sessions.Get("missing"))

	st := sessions.Dispatch("tok", SetTab{Tab: TabNew}, Flash{Kind: FlashError, Message: "falhou"})
	assert.Equal(t, TabNew, st.Tab)
	assert.Equal(t, TabNew, sessions.Get("tok").Tab)

	flash := sessions.TakeFlash("tok")
	require.NotNil(t, flash)
	assert.Equal(t, "falhou", flash.Message)
	assert.Nil(t, sessions.TakeFlash("tok"))
	assert.Equal(t, TabNew, sessions.Get("tok").Tab)

	id := auth.Identity{UserID: "u1", Email: "a@b.c"}
	sessions.HandleAuthEvent(auth.Event{Kind: auth.SignedIn, Identity: id, Session: "s2"})
	assert.True(t, sessions.Get("s2").SignedIn)

	sessions.HandleAuthEvent(auth.Event{Kind: auth.SignedOut, Identity: id, Session: "s2"})
	assert.False(t, sessions.Get("s2").SignedIn)
	assert.Equal(t, 1, sessions.Cache().Size())
}

func TestParseTab(t *testing.T) {
	tab, ok := ParseTab("historico")
	assert.True(t, ok)
	assert.Equal(t, TabHistory, tab)
	assert.Equal(t, "/historico", tab.Path())
	assert.Equal(t, "/", TabDashboard.Path())

	_, ok = ParseTab("nope")
	assert.False(t, ok)
}
