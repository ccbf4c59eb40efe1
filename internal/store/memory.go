package store

import (
	"context"
	"sync"

	"github.com/serroba/chatid-bot/internal/quota"
)

// MemoryStore is an in-memory implementation of quota.Store.
// Documents are copied on the way in and out so callers never share state
// with the store.
type MemoryStore struct {
	mu  sync.RWMutex
	doc quota.Document
}

// NewMemoryStore creates a new in-memory quota store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		doc: quota.Document{},
	}
}

func (m *MemoryStore) Load(_ context.Context) (quota.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.doc.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, doc quota.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc = doc.Clone()

	return nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}
