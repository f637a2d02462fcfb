package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"tesouraria/internal/core"
	"tesouraria/internal/ledger"
)

// Store is an in-memory transaction store for development and tests.
type Store struct {
	mu       sync.Mutex
	items    []core.Transaction
	mirrored map[string]bool
	now      func() time.Time
}

func New() *Store {
	return &Store{mirrored: map[string]bool{}, now: time.Now}
}

// NewFromFile seeds the store from a JSON backup file. A missing or empty
// path yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var records []core.ExternalRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	ts := make([]core.Transaction, 0, len(records))
	for i, r := range records {
		t, err := core.FromExternal(r, s.now())
		if err != nil {
			return nil, fmt.Errorf("seed record %d: %w", i, err)
		}
		ts = append(ts, t)
	}
	if _, err := s.CreateMany(context.Background(), ts); err != nil {
		return nil, err
	}
	return s, nil
}

// Create stores the transaction and returns its new id.
func (s *Store) Create(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t = s.stamp(t)
	s.items = append(s.items, t)
	return t.ID, nil
}

// CreateMany validates the whole batch before appending any of it.
func (s *Store) CreateMany(_ context.Context, ts []core.Transaction) ([]string, error) {
	for i, t := range ts {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(ts))
	for i, t := range ts {
		t = s.stamp(t)
		s.items = append(s.items, t)
		ids[i] = t.ID
	}
	return ids, nil
}

func (s *Store) stamp(t core.Transaction) core.Transaction {
	t.ID = uuid.NewString()
	t.CreatedAt = s.now().UTC()
	return t
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			delete(s.mirrored, id)
			return nil
		}
	}
	return ledger.ErrNotFound
}

// List returns a copy of the collection, newest date first.
func (s *Store) List(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	out := append([]core.Transaction(nil), s.items...)
	s.mu.Unlock()
	core.SortForDisplay(out)
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.items {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, ledger.ErrNotFound
}

// PendingMirror returns up to limit ids not yet marked as mirrored, oldest first.
func (s *Store) PendingMirror(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, t := range s.items {
		if limit > 0 && len(ids) >= limit {
			break
		}
		if !s.mirrored[t.ID] {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (s *Store) MarkMirrored(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.items {
		if t.ID == id {
			s.mirrored[id] = true
			return nil
		}
	}
	return ledger.ErrNotFound
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.MirrorTracker = (*Store)(nil)
)
