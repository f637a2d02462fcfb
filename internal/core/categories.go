package core

// Category is one entry of the closed category set for a transaction type.
type Category struct {
	Value string
	Label string
}

var categoriesByType = map[TxType][]Category{
	Income: {
		{Value: "dizimo", Label: "Dízimo"},
		{Value: "oferta", Label: "Oferta"},
		{Value: "doacao", Label: "Doação"},
		{Value: "evento", Label: "Evento"},
		{Value: "outros", Label: "Outros"},
	},
	Expense: {
		{Value: "aluguel", Label: "Aluguel"},
		{Value: "luz", Label: "Luz"},
		{Value: "agua", Label: "Água"},
		{Value: "manutencao", Label: "Manutenção"},
		{Value: "evangelismo", Label: "Evangelismo"},
		{Value: "missoes", Label: "Missões"},
		{Value: "assistencia", Label: "Assistência Social"},
		{Value: "salarios", Label: "Salários"},
		{Value: "outros", Label: "Outros"},
	},
}

// Categories returns the selectable categories for t, in display order.
// Unknown types yield nil.
func Categories(t TxType) []Category {
	src := categoriesByType[t]
	if src == nil {
		return nil
	}
	out := make([]Category, len(src))
	copy(out, src)
	return out
}

// IsCategory reports whether value belongs to the closed set of t.
func IsCategory(t TxType, value string) bool {
	for _, c := range categoriesByType[t] {
		if c.Value == value {
			return true
		}
	}
	return false
}

// CategoryLabel returns the display label for value, or value itself when
// it is not part of any set (imported legacy data).
func CategoryLabel(value string) string {
	for _, t := range []TxType{Income, Expense} {
		for _, c := range categoriesByType[t] {
			if c.Value == value {
				return c.Label
			}
		}
	}
	return value
}
