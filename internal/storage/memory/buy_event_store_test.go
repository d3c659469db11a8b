package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/storage"
)

func buyEventRecord(sig string, observedAt time.Time) *domain.BuyEventRecord {
	return &domain.BuyEventRecord{
		Signature:   sig,
		Buyer:       "BuyerAddr",
		QuoteAmount: decimal.NewFromFloat(0.5),
		AssetAmount: decimal.NewFromInt(50_000),
		ObservedAt:  observedAt,
	}
}

func TestBuyEventStore_InsertAndRange(t *testing.T) {
	s := NewBuyEventStore()
	ctx := context.Background()

	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 5; i++ {
		rec := buyEventRecord("sig"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	// Inclusive bounds.
	got, err := s.GetByTimeRange(ctx, base.Add(time.Minute), base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Signature != "sigb" || got[2].Signature != "sigd" {
		t.Errorf("order = [%s %s %s]", got[0].Signature, got[1].Signature, got[2].Signature)
	}
}

func TestBuyEventStore_DuplicatesTolerated(t *testing.T) {
	s := NewBuyEventStore()
	ctx := context.Background()

	at := time.Unix(1_700_000_000, 0)
	if err := s.Insert(ctx, buyEventRecord("sig1", at)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// Reconnect replays append a second row rather than failing.
	if err := s.Insert(ctx, buyEventRecord("sig1", at.Add(time.Second))); err != nil {
		t.Fatalf("replayed Insert: %v", err)
	}

	got, _ := s.GetByTimeRange(ctx, at, at.Add(time.Minute))
	if len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestBuyEventStore_InvalidInput(t *testing.T) {
	s := NewBuyEventStore()
	if err := s.Insert(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil record: err = %v, want ErrInvalidInput", err)
	}
}
