package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tesouraria/internal/auth"
	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/ledger/memory"
	"tesouraria/internal/live"
	"tesouraria/internal/localstore"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishUpsert(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPublisher) PublishDelete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Create(ctx context.Context, t core.Transaction) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

func (m *mockStore) CreateMany(ctx context.Context, ts []core.Transaction) ([]string, error) {
	args := m.Called(ctx, ts)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockStore) List(ctx context.Context) ([]core.Transaction, error) {
	args := m.Called(ctx)
	ts, _ := args.Get(0).([]core.Transaction)
	return ts, args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	args := m.Called(ctx, id)
	t, _ := args.Get(0).(core.Transaction)
	return t, args.Error(1)
}

var treasurer = auth.Identity{UserID: "u1", Email: "tesouraria@igreja.org"}

type fixture struct {
	svc    *TransactionService
	store  *memory.Store
	feed   *live.Feed
	mirror *localstore.Store
	pub    *mockPublisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New()
	feed := live.NewFeed(store, nil)
	mirror := localstore.New(localstore.NewMemoryKV())
	pub := &mockPublisher{}
	svc := NewTransactionService(store, feed, mirror, pub, nil)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, store: store, feed: feed, mirror: mirror, pub: pub}
}

func draft() core.Draft {
	return core.Draft{
		Type:        "income",
		Category:    "dizimo",
		Amount:      "100",
		Description: "Dízimo",
		Responsible: "Ana",
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pub.On("PublishUpsert", mock.Anything, mock.AnythingOfType("string")).Return(nil).Once()

	got, err := f.svc.Create(ctx, treasurer, draft())
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "2025-06-15", got.Date.String())

	snap := f.feed.Current()
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, got.ID, snap.Transactions[0].ID)
	f.pub.AssertExpectations(t)
}

func TestCreateValidationErrorWritesNothing(t *testing.T) {
	store := &mockStore{}
	pub := &mockPublisher{}
	svc := NewTransactionService(store, nil, nil, pub, nil)

	d := draft()
	d.Description = ""
	_, err := svc.Create(context.Background(), treasurer, d)
	require.ErrorIs(t, err, core.ErrMissingFields)
	assert.Equal(t, core.MissingFieldsMessage, core.UserMessage(err))

	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	pub.AssertNotCalled(t, "PublishUpsert", mock.Anything, mock.Anything)
}

func TestCreatePublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.On("PublishUpsert", mock.Anything, mock.Anything).Return(errors.New("circuit breaker is open"))

	_, err := f.svc.Create(context.Background(), treasurer, draft())
	require.NoError(t, err)
}

func TestCreateStoreFailure(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.Anything).Return("", errors.New("disk I/O error"))
	svc := NewTransactionService(store, nil, nil, nil, nil)

	_, err := svc.Create(context.Background(), treasurer, draft())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk I/O error")
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pub.On("PublishUpsert", mock.Anything, mock.Anything).Return(nil)
	f.pub.On("PublishDelete", mock.Anything, mock.Anything).Return(nil)

	created, err := f.svc.Create(ctx, treasurer, draft())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.Empty(t, f.feed.Current().Transactions)
	f.pub.AssertCalled(t, "PublishDelete", mock.Anything, created.ID)

	err = f.svc.Delete(ctx, created.ID)
	require.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestImportScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pub.On("PublishUpsert", mock.Anything, mock.Anything).Return(nil)

	records, err := DecodeImport(strings.NewReader(
		`[{"type":"entrada","category":"oferta","amount":50,"description":"x","date":"2024-01-01","responsible":"y"}]`))
	require.NoError(t, err)

	report, err := f.svc.Import(ctx, treasurer, records)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.Items, 1)
	assert.NotEmpty(t, report.Items[0].ID)

	got, err := f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.Income, got[0].Type)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, "2024-01-01", got[0].Date.String())
	assert.Equal(t, "u1", got[0].UserID)
}

func TestImportIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	records := []core.ExternalRecord{
		{Type: "income", Category: "oferta", Description: "a", Responsible: "r", Date: "2024-01-01"},
		{Type: "income", Category: "oferta", Description: "", Responsible: "r", Date: "2024-01-01"},
		{Type: "expense", Category: "luz", Description: "c", Responsible: "r", Date: "01/01/2024"},
	}
	report, err := f.svc.Import(ctx, treasurer, records)
	require.ErrorIs(t, err, ErrImportInvalid)
	assert.Zero(t, report.Imported)

	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, 1, failed[0].Index)
	assert.ErrorIs(t, failed[0].Err, core.ErrMissingFields)
	assert.Equal(t, 2, failed[1].Index)
	assert.ErrorIs(t, failed[1].Err, core.ErrInvalidDate)

	got, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	f.pub.AssertNotCalled(t, "PublishUpsert", mock.Anything, mock.Anything)
}

func TestImportEmptyIsNoop(t *testing.T) {
	store := &mockStore{}
	svc := NewTransactionService(store, nil, nil, nil, nil)

	report, err := svc.Import(context.Background(), treasurer, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Imported)
	store.AssertNotCalled(t, "CreateMany", mock.Anything, mock.Anything)
}

func TestImportLimits(t *testing.T) {
	svc := NewTransactionService(&mockStore{}, nil, nil, nil, nil)
	_, err := svc.Import(context.Background(), treasurer, make([]core.ExternalRecord, MaxImportRecords+1))
	require.ErrorIs(t, err, ErrTooManyRecords)

	_, err = DecodeImport(strings.NewReader("[" + strings.Repeat(" ", MaxImportBytes) + "]"))
	require.ErrorIs(t, err, ErrImportTooLarge)

	_, err = DecodeImport(strings.NewReader(`{"type":"income"}`))
	require.ErrorIs(t, err, ErrImportFormat)
}

func TestImportStoreFailure(t *testing.T) {
	store := &mockStore{}
	store.On("CreateMany", mock.Anything, mock.Anything).Return(nil, errors.New("constraint failed"))
	svc := NewTransactionService(store, nil, nil, nil, nil)

	records := []core.ExternalRecord{{Type: "income", Category: "oferta", Description: "a", Responsible: "r"}}
	_, err := svc.Import(context.Background(), treasurer, records)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrImportInvalid)
}

func TestExportReadsMirror(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.pub.On("PublishUpsert", mock.Anything, mock.Anything).Return(nil)
	f.feed.OnSnapshot(func(s live.Snapshot) {
		require.NoError(t, f.svc.MirrorSnapshot(ctx, s))
	})

	data, name, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tesouraria_backup_2025-06-15.json", name)
	assert.Equal(t, "[]", string(data))

	created, err := f.svc.Create(ctx, treasurer, draft())
	require.NoError(t, err)

	data, _, err = f.svc.Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"id\": \""+created.ID+"\"")

	var records []core.ExternalRecord
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	assert.Equal(t, "entrada", records[0].Type)
	assert.Equal(t, "2025-06-15", records[0].Date)
}
