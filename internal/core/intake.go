package core

import (
	"errors"
	"strings"
	"time"
)

// MissingFieldsMessage is shown when a required form field is empty.
const MissingFieldsMessage = "Por favor, preencha todos os campos obrigatórios."

var (
	ErrMissingFields   = errors.New("missing required fields")
	ErrUnknownCategory = errors.New("category does not belong to transaction type")
	ErrInvalidDate     = errors.New("invalid date")
)

// ValidationError names the field that failed intake validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Draft is a transaction as submitted from the entry form: every field is
// still raw text.
type Draft struct {
	Type        string
	Category    string
	Amount      string
	Description string
	Date        string
	Responsible string
}

// Validate checks the draft and builds the transaction to store. Nothing is
// written when it returns an error. An empty date defaults to now.
func (d Draft) Validate(now time.Time) (Transaction, error) {
	txType, err := ParseTxType(d.Type)
	if err != nil {
		return Transaction{}, invalid("type", err)
	}

	category := strings.TrimSpace(d.Category)
	amount := strings.TrimSpace(d.Amount)
	description := strings.TrimSpace(d.Description)
	responsible := strings.TrimSpace(d.Responsible)

	for _, f := range []struct{ name, value string }{
		{"category", category},
		{"amount", amount},
		{"description", description},
		{"responsible", responsible},
	} {
		if f.value == "" {
			return Transaction{}, invalid(f.name, ErrMissingFields)
		}
	}

	amt, err := ParseAmount(amount)
	if err != nil {
		return Transaction{}, invalid("amount", err)
	}
	if !IsCategory(txType, category) {
		return Transaction{}, invalid("category", ErrUnknownCategory)
	}

	date := DateOf(now)
	if s := strings.TrimSpace(d.Date); s != "" {
		date, err = ParseDate(s)
		if err != nil {
			return Transaction{}, invalid("date", ErrInvalidDate)
		}
	}

	t := Transaction{
		Type:        txType,
		Category:    category,
		Amount:      amt,
		Description: description,
		Date:        date,
		Responsible: responsible,
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, invalid("transaction", err)
	}
	return t, nil
}

// UserMessage translates intake errors into the message shown to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingFields):
		return MissingFieldsMessage
	case errors.Is(err, ErrNegativeAmount), errors.Is(err, ErrInvalidAmount):
		return "Informe um valor válido (ex.: 150,00)."
	case errors.Is(err, ErrUnknownCategory):
		return "Selecione uma categoria válida para o tipo escolhido."
	case errors.Is(err, ErrUnknownType):
		return "Selecione o tipo da transação."
	case errors.Is(err, ErrInvalidDate), errors.Is(err, ErrZeroDate):
		return "Informe uma data válida."
	default:
		return "Dados inválidos: " + err.Error()
	}
}
