package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/storage"
)

// BuyEventStore is an in-memory implementation of
// storage.BuyEventStore. The archive is append-only and tolerates
// duplicate signatures from reconnect replays.
type BuyEventStore struct {
	mu   sync.RWMutex
	data []*domain.BuyEventRecord
}

// NewBuyEventStore creates a new in-memory buy event store.
func NewBuyEventStore() *BuyEventStore {
	return &BuyEventStore{
		data: make([]*domain.BuyEventRecord, 0),
	}
}

// Insert appends an observed buy event.
func (s *BuyEventStore) Insert(_ context.Context, e *domain.BuyEventRecord) error {
	if e == nil || e.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy
	copy := *e
	s.data = append(s.data, &copy)

	return nil
}

// GetByTimeRange retrieves events observed within [start, end]
// (inclusive), ordered by observation time ASC.
func (s *BuyEventStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.BuyEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BuyEventRecord
	for _, e := range s.data {
		if !e.ObservedAt.Before(start) && !e.ObservedAt.After(end) {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.Before(result[j].ObservedAt)
		}
		return result[i].Signature < result[j].Signature
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BuyEventStore = (*BuyEventStore)(nil)
