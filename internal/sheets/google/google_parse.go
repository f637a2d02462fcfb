package google

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
)

// ledgerRow renders t in header order.
func ledgerRow(t core.Transaction) []any {
	return []any{
		t.ID,
		t.Date.Display(),
		t.Type.Label(),
		t.Category,
		t.Description,
		t.Responsible,
		t.Amount.Round(2).InexactFloat64(),
	}
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// findRow returns the zero-based index of the row whose first cell is id.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if id != "" && cell(row, 0) == id {
			return i
		}
	}
	return -1
}

func parseType(s string) core.TxType {
	switch strings.ToLower(s) {
	case "entrada", "income":
		return core.Income
	default:
		return core.Expense
	}
}

func parseDate(s string) (core.Date, bool) {
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return core.DateOf(t), true
	}
	if d, err := core.ParseDate(s); err == nil {
		return d, true
	}
	return core.Date{}, false
}

func parseValue(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case float64:
		return core.CoerceAmount(x), true
	case string:
		d, err := core.ParseAmount(x)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// parseLedgerRows turns a values matrix back into transactions. The header
// and rows without an id or a readable date or value are skipped.
func parseLedgerRows(values [][]any) []core.Transaction {
	var out []core.Transaction
	for i, row := range values {
		id := cell(row, 0)
		if id == "" || (i == 0 && strings.EqualFold(id, "ID")) {
			continue
		}
		date, ok := parseDate(cell(row, 1))
		if !ok {
			continue
		}
		var raw any
		if len(row) > 6 {
			raw = row[6]
		}
		amount, ok := parseValue(raw)
		if !ok {
			continue
		}
		out = append(out, core.Transaction{
			ID:          id,
			Date:        date,
			Type:        parseType(cell(row, 2)),
			Category:    cell(row, 3),
			Description: cell(row, 4),
			Responsible: cell(row, 5),
			Amount:      amount,
		})
	}
	return out
}
