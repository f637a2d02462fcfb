package storage

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tesouraria/internal/auth"
	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/localstore"
	"tesouraria/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTx(cat string, day int, amount string) core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Category:    cat,
		Amount:      decimal.RequireFromString(amount),
		Description: "Conta de " + cat,
		Date:        core.NewDate(2025, 3, day),
		Responsible: "Tesoureiro",
		UserID:      "u1",
	}
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	in := sampleTx("luz", 10, "123.45")
	id, err := repo.Create(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, core.Expense, got.Type)
	assert.Equal(t, "luz", got.Category)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("123.45")), "amount %s", got.Amount)
	assert.Equal(t, "2025-03-10", got.Date.String())
	assert.Equal(t, "Tesoureiro", got.Responsible)
	assert.Equal(t, "u1", got.UserID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteListOrder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	oldID, _ := repo.Create(ctx, sampleTx("agua", 1, "1"))
	firstSameDay, _ := repo.Create(ctx, sampleTx("luz", 5, "2"))
	secondSameDay, _ := repo.Create(ctx, sampleTx("aluguel", 5, "3"))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{secondSameDay, firstSameDay, oldID}, []string{list[0].ID, list[1].ID, list[2].ID})
}

func TestSQLiteDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	id, err := repo.Create(ctx, sampleTx("luz", 1, "5"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, id))
	assert.ErrorIs(t, repo.Delete(ctx, id), ledger.ErrNotFound)

	_, err = repo.Get(ctx, id)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestSQLiteCreateManyIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	bad := sampleTx("luz", 2, "1")
	bad.Type = "transfer"
	_, err := repo.CreateMany(ctx, []core.Transaction{sampleTx("luz", 1, "1"), bad})
	require.Error(t, err)

	n, err := repo.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "failed batch must leave no rows")

	ids, err := repo.CreateMany(ctx, []core.Transaction{sampleTx("luz", 1, "1"), sampleTx("agua", 2, "2")})
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	n, _ = repo.CountTransactions(ctx)
	assert.EqualValues(t, 2, n)
}

func TestSQLiteMirrorTracking(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a, _ := repo.Create(ctx, sampleTx("luz", 1, "1"))
	b, _ := repo.Create(ctx, sampleTx("agua", 2, "1"))

	pending, err := repo.PendingMirror(ctx, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b}, pending)

	require.NoError(t, repo.MarkMirrored(ctx, a))
	pending, _ = repo.PendingMirror(ctx, 0)
	assert.Equal(t, []string{b}, pending)

	assert.ErrorIs(t, repo.MarkMirrored(ctx, "missing"), ledger.ErrNotFound)
}

func TestSQLiteUsers(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	u := auth.User{ID: "u1", Email: "Ana@Igreja.org", PasswordHash: "hash", CreatedAt: time.Now()}
	require.NoError(t, repo.CreateUser(ctx, u))

	dup := u
	dup.ID = "u2"
	dup.Email = "ana@igreja.org"
	assert.ErrorIs(t, repo.CreateUser(ctx, dup), auth.ErrEmailInUse)

	got, err := repo.UserByEmail(ctx, "ANA@igreja.org")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.UserByEmail(ctx, "nobody@igreja.org")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestSQLiteKV(t *testing.T) {
	ctx := context.Background()
	kv := newTestRepo(t).KV()

	_, err := kv.Get(ctx, "u1", "church-dark-mode")
	assert.ErrorIs(t, err, localstore.ErrNoValue)

	require.NoError(t, kv.Put(ctx, "u1", "church-dark-mode", []byte("true")))
	require.NoError(t, kv.Put(ctx, "u1", "church-dark-mode", []byte("false")))
	v, err := kv.Get(ctx, "u1", "church-dark-mode")
	require.NoError(t, err)
	assert.Equal(t, "false", string(v))

	_, err = kv.Get(ctx, "u2", "church-dark-mode")
	assert.ErrorIs(t, err, localstore.ErrNoValue, "namespaces are isolated")

	require.NoError(t, kv.Delete(ctx, "u1", "church-dark-mode"))
	_, err = kv.Get(ctx, "u1", "church-dark-mode")
	assert.ErrorIs(t, err, localstore.ErrNoValue)
}

func TestSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()

	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)
	assert.False(t, dirty)
}

func TestRepositoryLogsAsLedger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Handler: slog.NewTextHandler(&buf, nil)}).WithComponent(log.ComponentBackend)

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "l.db"), logger)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	id, err := repo.Create(ctx, sampleTx("luz", 3, "10.00"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, id))

	out := buf.String()
	assert.Contains(t, out, "Transaction saved to SQLite")
	assert.Contains(t, out, "Transaction deleted from SQLite")
	assert.Contains(t, out, "component=ledger")
	assert.NotContains(t, out, "component=backend")
	assert.Contains(t, out, "transaction_id="+id)
}
