package sheets

import (
	"context"

	"tesouraria/internal/core"
)

// Ports for the spreadsheet mirror.
type (
	// Writer mirrors one transaction. Writing an id that is already present
	// replaces its row.
	Writer interface {
		Upsert(ctx context.Context, t core.Transaction) error
	}

	// Deleter removes the row of a transaction. Unknown ids are not an error.
	Deleter interface {
		Remove(ctx context.Context, id string) error
	}

	// Lister reads back the mirrored transactions.
	Lister interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}

	Mirror interface {
		Writer
		Deleter
		Lister
	}
)
