// Package memory is an in-process spreadsheet mirror for development and
// tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"tesouraria/internal/core"
)

type Mirror struct {
	mu   sync.Mutex
	rows []core.Transaction
}

func New() *Mirror {
	return &Mirror{}
}

func (m *Mirror) Upsert(_ context.Context, t core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(t.ID); i >= 0 {
		m.rows[i] = t
		return nil
	}
	m.rows = append(m.rows, t)
	return nil
}

func (m *Mirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		m.rows = slices.Delete(m.rows, i, i+1)
	}
	return nil
}

// ListTransactions returns the rows in sheet order.
func (m *Mirror) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.rows), nil
}

func (m *Mirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *Mirror) indexLocked(id string) int {
	return slices.IndexFunc(m.rows, func(t core.Transaction) bool { return t.ID == id })
}
