package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"tesouraria/internal/auth"
	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/live"
	"tesouraria/internal/localstore"
	"tesouraria/internal/log"
)

const (
	MaxImportBytes   = 5 << 20
	MaxImportRecords = 5000
)

var (
	ErrImportTooLarge = errors.New("import file is too large")
	ErrTooManyRecords = errors.New("import has too many records")
	ErrImportInvalid  = errors.New("import contains invalid records")
	ErrImportFormat   = errors.New("import file is not a JSON array of transactions")
)

// Publisher notifies the spreadsheet mirror about changes.
type Publisher interface {
	PublishUpsert(ctx context.Context, id string) error
	PublishDelete(ctx context.Context, id string) error
}

// Refresher republishes the ledger after a write.
type Refresher interface {
	Refresh(ctx context.Context) (live.Snapshot, error)
}

// ImportItem is the outcome for one record of an import, by position.
type ImportItem struct {
	Index int
	ID    string
	Err   error
}

type ImportReport struct {
	Items    []ImportItem
	Imported int
}

// Failed returns the items that did not validate.
func (r ImportReport) Failed() []ImportItem {
	var out []ImportItem
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// TransactionService orchestrates ledger writes across the store, the live
// feed, the local mirror and the message broker.
type TransactionService struct {
	store     ledger.Store
	feed      Refresher
	mirror    *localstore.Store
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
}

func NewTransactionService(store ledger.Store, feed Refresher, mirror *localstore.Store, publisher Publisher, logger *log.Logger) *TransactionService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &TransactionService{
		store:     store,
		feed:      feed,
		mirror:    mirror,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
		now:       time.Now,
	}
}

// Create validates the draft and stores it on behalf of the identity.
// Validation errors are returned as is and nothing is written.
func (s *TransactionService) Create(ctx context.Context, id auth.Identity, d core.Draft) (core.Transaction, error) {
	t, err := d.Validate(s.now())
	if err != nil {
		return core.Transaction{}, err
	}
	t.UserID = id.UserID

	ref, err := s.store.Create(ctx, t)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to save transaction",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldOperation, log.OpCreate)
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	t.ID = ref

	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldTxID, t.ID,
		log.FieldTxType, t.Type.Code(),
		log.FieldCategory, t.Category,
		log.FieldAmount, t.Amount.StringFixed(2),
		log.FieldUserID, id.UserID)

	s.refresh(ctx)
	s.publish(ctx, ref, false)
	return t, nil
}

// Delete removes a transaction. ledger.ErrNotFound is passed through.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldTxID, id)
	s.refresh(ctx)
	s.publish(ctx, id, true)
	return nil
}

// DecodeImport reads a JSON array of records, refusing oversized input.
func DecodeImport(r io.Reader) ([]core.ExternalRecord, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	if len(data) > MaxImportBytes {
		return nil, ErrImportTooLarge
	}
	var records []core.ExternalRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFormat, err)
	}
	return records, nil
}

// Import maps and validates every record first. When any record fails the
// report marks it and nothing is written; otherwise the whole batch is
// stored at once.
func (s *TransactionService) Import(ctx context.Context, id auth.Identity, records []core.ExternalRecord) (ImportReport, error) {
	if len(records) > MaxImportRecords {
		return ImportReport{}, ErrTooManyRecords
	}

	now := s.now()
	report := ImportReport{Items: make([]ImportItem, len(records))}
	batch := make([]core.Transaction, 0, len(records))
	failed := 0
	for i, r := range records {
		report.Items[i].Index = i
		t, err := core.FromExternal(r, now)
		if err != nil {
			report.Items[i].Err = err
			failed++
			continue
		}
		t.UserID = id.UserID
		batch = append(batch, t)
	}
	if failed > 0 {
		s.logger.WarnContext(ctx, "Import rejected",
			log.FieldCount, len(records),
			"failed", failed,
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldOperation, log.OpImport)
		return report, ErrImportInvalid
	}
	if len(batch) == 0 {
		return report, nil
	}

	ids, err := s.store.CreateMany(ctx, batch)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to import transactions",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldOperation, log.OpImport)
		return report, fmt.Errorf("import transactions: %w", err)
	}
	for i, ref := range ids {
		report.Items[i].ID = ref
	}
	report.Imported = len(ids)

	s.logger.InfoContext(ctx, "Transactions imported",
		log.FieldCount, report.Imported,
		log.FieldUserID, id.UserID)

	s.refresh(ctx)
	for _, ref := range ids {
		s.publish(ctx, ref, false)
	}
	return report, nil
}

// ExportFilename is the download name for a backup taken at t.
func ExportFilename(t time.Time) string {
	return "tesouraria_backup_" + t.Format("2006-01-02") + ".json"
}

// Export serializes the local mirror as an indented JSON array.
func (s *TransactionService) Export(ctx context.Context) ([]byte, string, error) {
	records, err := s.mirror.Transactions(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("read local mirror: %w", err)
	}
	if records == nil {
		records = []core.ExternalRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode export: %w", err)
	}

	s.logger.InfoContext(ctx, "Ledger exported", log.FieldCount, len(records))
	return data, ExportFilename(s.now()), nil
}

// MirrorSnapshot rewrites the local mirror from a snapshot.
func (s *TransactionService) MirrorSnapshot(ctx context.Context, snap live.Snapshot) error {
	if err := s.mirror.SaveTransactions(ctx, core.ToExternalList(snap.Transactions)); err != nil {
		return fmt.Errorf("write local mirror: %w", err)
	}
	return nil
}

func (s *TransactionService) refresh(ctx context.Context) {
	if s.feed == nil {
		return
	}
	if _, err := s.feed.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to refresh live feed after write",
			log.FieldError, err.Error(),
			log.FieldOperation, log.OpRefresh)
	}
}

// publish never fails the request: the sweeper picks up anything missed.
func (s *TransactionService) publish(ctx context.Context, id string, deleted bool) {
	if s.publisher == nil {
		return
	}
	var err error
	if deleted {
		err = s.publisher.PublishDelete(ctx, id)
	} else {
		err = s.publisher.PublishUpsert(ctx, id)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish sync message",
			log.FieldTxID, id,
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeNetwork)
	}
}
