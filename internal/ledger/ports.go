package ledger

import (
	"context"
	"errors"

	"tesouraria/internal/core"
)

// ErrNotFound is returned when a transaction id does not exist in the store.
var ErrNotFound = errors.New("transaction not found")

// Ports for the transaction store.
type (
	Writer interface {
		Create(ctx context.Context, t core.Transaction) (id string, err error)
	}

	// BatchWriter stores a batch atomically: either every transaction is
	// written or none is.
	BatchWriter interface {
		CreateMany(ctx context.Context, ts []core.Transaction) (ids []string, err error)
	}

	Deleter interface {
		// Delete removes a transaction; ErrNotFound when the id is unknown.
		Delete(ctx context.Context, id string) error
	}

	// Lister returns the full collection ordered by date descending.
	Lister interface {
		List(ctx context.Context) ([]core.Transaction, error)
	}

	Getter interface {
		Get(ctx context.Context, id string) (core.Transaction, error)
	}

	// Watcher is implemented by stores that can announce changes made by
	// other processes. The channel is closed when ctx ends.
	Watcher interface {
		Watch(ctx context.Context) (<-chan struct{}, error)
	}

	// MirrorTracker lets the spreadsheet worker find transactions that have
	// not been copied to the sheet yet.
	MirrorTracker interface {
		PendingMirror(ctx context.Context, limit int) ([]string, error)
		MarkMirrored(ctx context.Context, id string) error
	}

	Store interface {
		Writer
		BatchWriter
		Deleter
		Lister
		Getter
	}
)
