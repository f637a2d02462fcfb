package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"

	_ "modernc.org/sqlite"
)

// timeLayout keeps stored timestamps sortable as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db     *sql.DB
	now    func() time.Time
	logger *log.Logger
}

// NewSQLiteRepository opens dbPath and migrates it. A nil logger falls back
// to the default one; records are tagged as the ledger component.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentLedger),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const insertTransaction = `
INSERT INTO transactions (id, type, category, amount, description, date, responsible, user_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectTransaction = `
SELECT id, type, category, amount, description, date, responsible, user_id, created_at
FROM transactions`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLiteRepository) insert(ctx context.Context, db execer, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err := db.ExecContext(ctx, insertTransaction,
		id,
		t.Type.Code(),
		t.Category,
		t.Amount.String(),
		t.Description,
		t.Date.String(),
		t.Responsible,
		t.UserID,
		r.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

// Create implements ledger.Writer.
func (r *SQLiteRepository) Create(ctx context.Context, t core.Transaction) (string, error) {
	id, err := r.insert(ctx, r.db, t)
	if err != nil {
		return "", err
	}

	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		log.FieldTxID, id,
		"type", t.Type,
		"category", t.Category,
		"amount", t.Amount.String(),
		"date", t.Date.String())

	return id, nil
}

// CreateMany implements ledger.BatchWriter inside a single SQL transaction.
func (r *SQLiteRepository) CreateMany(ctx context.Context, ts []core.Transaction) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(ts))
	for i, t := range ts {
		id, err := r.insert(ctx, tx, t)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	r.logger.InfoContext(ctx, "Transaction batch saved to SQLite", log.FieldCount, len(ids))
	return ids, nil
}

// Delete implements ledger.Deleter.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return ledger.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Transaction deleted from SQLite", log.FieldTxID, id)
	return nil
}

// List implements ledger.Lister.
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, selectTransaction+` ORDER BY date DESC, created_at DESC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// Get implements ledger.Getter.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	return t, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t                         core.Transaction
		typ, amount, date, create string
	)
	err := s.Scan(&t.ID, &typ, &t.Category, &amount, &t.Description, &date, &t.Responsible, &t.UserID, &create)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("scan transaction: %w", err)
	}

	t.Type = core.ImportedType(typ)
	// Rows are written from validated transactions; a bad amount is read as zero.
	if d, err := decimal.NewFromString(amount); err == nil {
		t.Amount = d
	}
	if d, err := core.ParseDate(date); err == nil {
		t.Date = d
	}
	if ts, err := time.Parse(timeLayout, create); err == nil {
		t.CreatedAt = ts
	}
	return t, nil
}

// PendingMirror implements ledger.MirrorTracker.
func (r *SQLiteRepository) PendingMirror(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM transactions WHERE mirrored_at IS NULL ORDER BY created_at ASC, rowid ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending mirror: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending mirror: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkMirrored implements ledger.MirrorTracker.
func (r *SQLiteRepository) MarkMirrored(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET mirrored_at = ? WHERE id = ?`, r.now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark transaction mirrored: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Transaction marked as mirrored", log.FieldTxID, id)
	return nil
}

// CountTransactions is used by the readiness check.
func (r *SQLiteRepository) CountTransactions(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ ledger.Store         = (*SQLiteRepository)(nil)
	_ ledger.MirrorTracker = (*SQLiteRepository)(nil)
)
