package csrf

import (
	"context"
	"sync"

	"github.com/greenfolio/auth-core/internal/errors"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process CSRF record store.
type MemoryStore struct {
	records map[string]*Record
	lock    sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (ms *MemoryStore) Upsert(_ context.Context, record *Record) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	ms.records[record.UserID] = record
	return nil
}

func (ms *MemoryStore) Get(_ context.Context, userID string) (*Record, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	record, ok := ms.records[userID]
	if !ok {
		return nil, errors.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (ms *MemoryStore) Delete(_ context.Context, userID string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	delete(ms.records, userID)
	return nil
}
