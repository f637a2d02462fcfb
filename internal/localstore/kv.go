package localstore

import (
	"context"
	"errors"
	"sync"
)

// ErrNoValue is returned by KV.Get when nothing is stored under the key.
var ErrNoValue = errors.New("no value stored")

// KV is a namespaced key/value store holding opaque bytes.
type KV interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

// MemoryKV keeps values in a map; used with the memory backend and in tests.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: map[string][]byte{}}
}

func memKey(namespace, key string) string {
	return namespace + "\x00" + key
}

func (m *MemoryKV) Get(_ context.Context, namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[memKey(namespace, key)]
	if !ok {
		return nil, ErrNoValue
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Put(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[memKey(namespace, key)] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, memKey(namespace, key))
	return nil
}
