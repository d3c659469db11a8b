// Package memory provides in-memory store implementations for tests and
// single-process runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
type AlertStore struct {
	mu   sync.RWMutex
	data []*domain.AlertRecord
	keys map[string]bool
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		data: make([]*domain.AlertRecord, 0),
		keys: make(map[string]bool),
	}
}

// Insert adds a new alert record. Returns ErrDuplicateKey if the
// signature exists.
func (s *AlertStore) Insert(_ context.Context, a *domain.AlertRecord) error {
	if a == nil || a.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys[a.Signature] {
		return storage.ErrDuplicateKey
	}

	// Store a copy
	copy := *a
	s.data = append(s.data, &copy)
	s.keys[a.Signature] = true

	return nil
}

// GetBySignature retrieves an alert by signature. Returns ErrNotFound
// if not exists.
func (s *AlertStore) GetBySignature(_ context.Context, signature string) (*domain.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.data {
		if a.Signature == signature {
			copy := *a
			return &copy, nil
		}
	}

	return nil, storage.ErrNotFound
}

// GetRecent retrieves the most recent alerts, newest first.
func (s *AlertStore) GetRecent(_ context.Context, limit int) ([]*domain.AlertRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.AlertRecord, 0, len(s.data))
	for _, a := range s.data {
		copy := *a
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SentAt.After(result[j].SentAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AlertStore = (*AlertStore)(nil)
