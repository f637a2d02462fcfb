package worker

import (
	"context"
	"errors"
	"fmt"

	"tesouraria/internal/amqp"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"
	"tesouraria/internal/sheets"
)

// Source is what the worker reads from the transaction store.
type Source interface {
	ledger.Getter
	ledger.MirrorTracker
}

// SyncWorker copies transactions from the store into the spreadsheet mirror.
type SyncWorker struct {
	store     Source
	mirror    sheets.Mirror
	batchSize int
	logger    *log.Logger
}

func NewSyncWorker(store Source, mirror sheets.Mirror, batchSize int, logger *log.Logger) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		store:     store,
		mirror:    mirror,
		batchSize: batchSize,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage dispatches a broker message by operation.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	switch msg.Op {
	case amqp.OpDelete:
		return w.HandleDeleteMessage(ctx, msg)
	default:
		return w.HandleSyncMessage(ctx, msg)
	}
}

// HandleSyncMessage writes the current state of the transaction to the
// sheet. A transaction deleted in the meantime is removed instead.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	w.logger.InfoContext(ctx, "Processing sync message",
		log.FieldTxID, msg.ID,
		log.FieldOperation, log.OpSync)

	return w.syncOne(ctx, msg.ID)
}

func (w *SyncWorker) HandleDeleteMessage(ctx context.Context, msg *amqp.SyncMessage) error {
	w.logger.InfoContext(ctx, "Processing delete message", log.FieldTxID, msg.ID)

	if err := w.mirror.Remove(ctx, msg.ID); err != nil {
		return fmt.Errorf("remove row from sheet: %w", err)
	}
	w.logger.InfoContext(ctx, "Removed transaction from sheet",
		log.FieldTxID, msg.ID,
		"timestamp", msg.Timestamp)
	return nil
}

func (w *SyncWorker) syncOne(ctx context.Context, id string) error {
	t, err := w.store.Get(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		w.logger.InfoContext(ctx, "Transaction no longer exists, removing row", log.FieldTxID, id)
		return w.mirror.Remove(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("get transaction from store: %w", err)
	}

	if err := w.mirror.Upsert(ctx, t); err != nil {
		return fmt.Errorf("write transaction to sheet: %w", err)
	}

	if err := w.store.MarkMirrored(ctx, id); err != nil {
		// The row is written; the next sweep rewrites it in place.
		w.logger.WarnContext(ctx, "Failed to mark transaction as mirrored",
			log.FieldTxID, id,
			log.FieldError, err.Error())
	}

	w.logger.InfoContext(ctx, "Mirrored transaction",
		log.FieldTxID, t.ID,
		log.FieldTxType, t.Type.Code(),
		log.FieldAmount, t.Amount.StringFixed(2))
	return nil
}

// ProcessPending mirrors up to one batch of transactions that were never
// copied to the sheet. It covers messages lost while the broker was down.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep when the worker starts.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	w.logger.InfoContext(ctx, "Startup sync completed", log.FieldCount, synced)
	return nil
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	ids, err := w.store.PendingMirror(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Processing pending transactions", log.FieldCount, len(ids))

	synced := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := w.syncOne(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "Failed to mirror pending transaction",
				log.FieldTxID, id,
				log.FieldError, err.Error())
			continue
		}
		synced++
	}
	return synced, nil
}
