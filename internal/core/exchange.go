package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExternalRecord is the field convention used by backup files and bulk
// imports: {id, type, category, amount, description, date, responsible}.
type ExternalRecord struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type"`
	Category    string     `json:"category"`
	Amount      FlexAmount `json:"amount"`
	Description string     `json:"description"`
	Date        string     `json:"date"`
	Responsible string     `json:"responsible"`
}

// FlexAmount decodes whatever a backup file holds in its amount field
// (number, numeric string, null, garbage) through CoerceAmount, and encodes
// as a bare JSON number.
type FlexAmount struct {
	decimal.Decimal
}

func (a FlexAmount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *FlexAmount) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		a.Decimal = decimal.Zero
		return nil
	}
	a.Decimal = CoerceAmount(v)
	return nil
}

// ToExternal maps a transaction into the backup convention.
func ToExternal(t Transaction) ExternalRecord {
	return ExternalRecord{
		ID:          t.ID,
		Type:        t.Type.Code(),
		Category:    t.Category,
		Amount:      FlexAmount{nonNegative(t.Amount)},
		Description: t.Description,
		Date:        t.Date.String(),
		Responsible: t.Responsible,
	}
}

// ToExternalList maps a whole snapshot.
func ToExternalList(ts []Transaction) []ExternalRecord {
	out := make([]ExternalRecord, len(ts))
	for i, t := range ts {
		out[i] = ToExternal(t)
	}
	return out
}

// ImportedType maps an external type value: "income" or "entrada" is income,
// anything else is expense.
func ImportedType(s string) TxType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Income), codeIncome:
		return Income
	default:
		return Expense
	}
}

// FromExternal maps an external record into a transaction ready to store.
// The record id is ignored; the store assigns a new one. Category membership
// is not enforced so that legacy categories survive a restore, but the
// fields required at entry must be present.
func FromExternal(r ExternalRecord, now time.Time) (Transaction, error) {
	category := strings.TrimSpace(r.Category)
	description := strings.TrimSpace(r.Description)
	responsible := strings.TrimSpace(r.Responsible)
	switch {
	case category == "":
		return Transaction{}, invalid("category", ErrMissingFields)
	case description == "":
		return Transaction{}, invalid("description", ErrMissingFields)
	case responsible == "":
		return Transaction{}, invalid("responsible", ErrMissingFields)
	}

	date := DateOf(now)
	if s := strings.TrimSpace(r.Date); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return Transaction{}, invalid("date", ErrInvalidDate)
		}
		date = d
	}

	t := Transaction{
		Type:        ImportedType(r.Type),
		Category:    category,
		Amount:      nonNegative(r.Amount.Decimal),
		Description: description,
		Date:        date,
		Responsible: responsible,
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, invalid("transaction", err)
	}
	return t, nil
}

// FromExternalList maps stored records back without validation; used for
// the local mirror, which only ever holds records that were valid when written.
func FromExternalList(rs []ExternalRecord) []Transaction {
	out := make([]Transaction, 0, len(rs))
	for _, r := range rs {
		d, _ := ParseDate(r.Date)
		out = append(out, Transaction{
			ID:          r.ID,
			Type:        ImportedType(r.Type),
			Category:    r.Category,
			Amount:      nonNegative(r.Amount.Decimal),
			Description: r.Description,
			Date:        d,
			Responsible: r.Responsible,
		})
	}
	return out
}
