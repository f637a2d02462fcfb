package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
	"tesouraria/internal/log"
)

const (
	TransactionsCollection = "transactions"
	UsersCollection        = "users"
	KVCollection           = "local_kv"
)

type transactionDoc struct {
	ID          string     `bson:"_id"`
	Type        string     `bson:"type"`
	Category    string     `bson:"category"`
	Amount      string     `bson:"amount"`
	Description string     `bson:"description"`
	Date        string     `bson:"date"`
	Responsible string     `bson:"responsible"`
	UserID      string     `bson:"userId"`
	CreatedAt   time.Time  `bson:"createdAt"`
	MirroredAt  *time.Time `bson:"mirroredAt,omitempty"`
}

func (d transactionDoc) toCore() core.Transaction {
	t := core.Transaction{
		ID:          d.ID,
		Type:        core.ImportedType(d.Type),
		Category:    d.Category,
		Description: d.Description,
		Responsible: d.Responsible,
		UserID:      d.UserID,
		CreatedAt:   d.CreatedAt,
	}
	if amt, err := decimal.NewFromString(d.Amount); err == nil {
		t.Amount = amt
	}
	if date, err := core.ParseDate(d.Date); err == nil {
		t.Date = date
	}
	return t
}

// Store is the MongoDB transaction store.
type Store struct {
	txs    DataStore
	now    func() time.Time
	logger *log.Logger
}

func NewStore(provider CollectionProvider) *Store {
	return &Store{
		txs:    provider.Collection(TransactionsCollection),
		now:    time.Now,
		logger: log.FromContext(context.Background()).WithComponent(log.ComponentDocstore),
	}
}

func (s *Store) newDoc(t core.Transaction) (transactionDoc, error) {
	if err := t.Validate(); err != nil {
		return transactionDoc{}, err
	}
	return transactionDoc{
		ID:          uuid.NewString(),
		Type:        t.Type.Code(),
		Category:    t.Category,
		Amount:      t.Amount.String(),
		Description: t.Description,
		Date:        t.Date.String(),
		Responsible: t.Responsible,
		UserID:      t.UserID,
		CreatedAt:   s.now().UTC(),
	}, nil
}

// Create implements ledger.Writer.
func (s *Store) Create(ctx context.Context, t core.Transaction) (string, error) {
	doc, err := s.newDoc(t)
	if err != nil {
		return "", err
	}
	if _, err := s.txs.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction saved to MongoDB", log.FieldTxID, doc.ID)
	return doc.ID, nil
}

// CreateMany implements ledger.BatchWriter. Standalone servers have no
// multi-document transactions, so a failed insert is undone by deleting
// whatever part of the batch made it in.
func (s *Store) CreateMany(ctx context.Context, ts []core.Transaction) ([]string, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	docs := make([]any, len(ts))
	ids := make([]string, len(ts))
	for i, t := range ts {
		doc, err := s.newDoc(t)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		docs[i] = doc
		ids[i] = doc.ID
	}

	if _, err := s.txs.InsertMany(ctx, docs); err != nil {
		if _, derr := s.txs.DeleteMany(context.WithoutCancel(ctx), bson.M{"_id": bson.M{"$in": ids}}); derr != nil {
			s.logger.ErrorContext(ctx, "Failed to undo partial batch",
				log.FieldCount, len(ids), log.FieldError, derr.Error())
			return nil, errors.Join(fmt.Errorf("insert batch: %w", err), fmt.Errorf("undo batch: %w", derr))
		}
		return nil, fmt.Errorf("insert batch: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction batch saved to MongoDB", log.FieldCount, len(ids))
	return ids, nil
}

// Delete implements ledger.Deleter.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.txs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

// List implements ledger.Lister.
func (s *Store) List(ctx context.Context) ([]core.Transaction, error) {
	var docs []transactionDoc
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	if err := s.txs.FindAll(ctx, bson.M{}, &docs, opts); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, len(docs))
	for i, d := range docs {
		out[i] = d.toCore()
	}
	return out, nil
}

// Get implements ledger.Getter.
func (s *Store) Get(ctx context.Context, id string) (core.Transaction, error) {
	var doc transactionDoc
	err := s.txs.FindOne(ctx, bson.M{"_id": id}, &doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Transaction{}, ledger.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return doc.toCore(), nil
}

// Watch implements ledger.Watcher with a change stream. Change streams need
// a replica set; on a standalone server the error is returned and callers
// fall back to polling.
func (s *Store) Watch(ctx context.Context) (<-chan struct{}, error) {
	cs, err := s.txs.Watch(ctx)
	if err != nil {
		return nil, err
	}
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "Change stream stopped", log.FieldError, err.Error())
		}
	}()
	return ch, nil
}

// PendingMirror implements ledger.MirrorTracker.
func (s *Store) PendingMirror(ctx context.Context, limit int) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	var docs []transactionDoc
	if err := s.txs.FindAll(ctx, bson.M{"mirroredAt": bson.M{"$exists": false}}, &docs, opts); err != nil {
		return nil, fmt.Errorf("get pending mirror: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// MarkMirrored implements ledger.MirrorTracker.
func (s *Store) MarkMirrored(ctx context.Context, id string) error {
	res, err := s.txs.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"mirroredAt": s.now().UTC()}})
	if err != nil {
		return fmt.Errorf("mark transaction mirrored: %w", err)
	}
	if res.MatchedCount == 0 {
		return ledger.ErrNotFound
	}
	return nil
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.Watcher       = (*Store)(nil)
	_ ledger.MirrorTracker = (*Store)(nil)
)
