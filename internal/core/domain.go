package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

// Stored codes for transaction types. Rows, documents and backup files
// use these values.
const (
	codeIncome  = "entrada"
	codeExpense = "saida"
)

const dateLayout = "2006-01-02"

type (
	TxType string

	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string
		Type        TxType
		Category    string
		Amount      decimal.Decimal
		Description string
		Date        Date
		Responsible string
		CreatedAt   time.Time
		UserID      string // creator, not used for access control
	}
)

var (
	ErrInvalidDay     = errors.New("invalid day")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrUnknownType    = errors.New("unknown transaction type")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrZeroDate       = errors.New("date cannot be zero")
)

// ParseTxType accepts both the English names and the stored codes.
func ParseTxType(s string) (TxType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Income), codeIncome:
		return Income, nil
	case string(Expense), codeExpense:
		return Expense, nil
	}
	return "", ErrUnknownType
}

// Code returns the stored representation of the type.
func (t TxType) Code() string {
	if t == Income {
		return codeIncome
	}
	return codeExpense
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Label returns the Portuguese display name.
func (t TxType) Label() string {
	if t == Income {
		return "Entrada"
	}
	return "Saída"
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD and RFC 3339 timestamps; the time part is dropped.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// Display formats the date the way Brazilian users read it (dd/mm/yyyy).
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("02/01/2006")
}

// Validate checks the invariants every stored transaction holds. Category
// membership is only enforced at the form boundary, see Draft.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrUnknownType
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// SignedAmount returns the amount with the sign implied by the type.
func (t Transaction) SignedAmount() decimal.Decimal {
	amt := nonNegative(t.Amount)
	if t.Type == Expense {
		return amt.Neg()
	}
	return amt
}
