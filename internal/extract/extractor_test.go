package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/solana"
)

const (
	trackedMint = "3an5tHZm8Yc1ieDaqH68oXZHTV7qsNqCSaTVNEBCpump"
	buyerAddr   = "BuyerWa11etXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"
	poolAddr    = "pumpVau1tBondingCurveXXXXXXXXXXXXXXXXXXXXXX"
	systemAddr  = "11111111111111111111111111111111"
)

// fakeProvider returns canned transactions or an error.
type fakeProvider struct {
	txs []solana.EnhancedTransaction
	err error
}

func (f *fakeProvider) GetEnhancedTransactions(_ context.Context, _ []string) ([]solana.EnhancedTransaction, error) {
	return f.txs, f.err
}

func buyTx(sig string) solana.EnhancedTransaction {
	return solana.EnhancedTransaction{
		Signature:    sig,
		Instructions: []solana.Instruction{{ProgramID: PumpFun}},
		TokenTransfers: []solana.TokenTransfer{
			{Mint: trackedMint, ToUserAccount: buyerAddr, TokenAmount: 125_000_000},
		},
		NativeTransfers: []solana.NativeTransfer{
			{FromUserAccount: buyerAddr, ToUserAccount: poolAddr, Amount: 2_500_000_000},
		},
	}
}

func TestExtractor_BuyEvent(t *testing.T) {
	provider := &fakeProvider{txs: []solana.EnhancedTransaction{buyTx("SIG")}}
	x := NewExtractor(provider, trackedMint, zerolog.Nop())

	ev, err := x.Extract(context.Background(), "SIG")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if ev == nil {
		t.Fatal("expected a buy event")
	}

	if ev.Signature != "SIG" {
		t.Errorf("Signature = %q, want SIG", ev.Signature)
	}
	if ev.Buyer != buyerAddr {
		t.Errorf("Buyer = %q, want %q", ev.Buyer, buyerAddr)
	}
	if !ev.QuoteAmount.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("QuoteAmount = %s, want 2.5", ev.QuoteAmount)
	}
	if !ev.AssetAmount.Equal(decimal.NewFromInt(125_000_000)) {
		t.Errorf("AssetAmount = %s, want 125000000", ev.AssetAmount)
	}
	if ev.ObservedAt.IsZero() {
		t.Error("ObservedAt not set")
	}
}

func TestExtractor_BuyerFromNativeTransfer(t *testing.T) {
	// No token transfer for the tracked mint; buyer comes from the SOL
	// transfer source, asset amount stays zero.
	tx := buyTx("SIG2")
	tx.TokenTransfers = nil

	provider := &fakeProvider{txs: []solana.EnhancedTransaction{tx}}
	x := NewExtractor(provider, trackedMint, zerolog.Nop())

	ev, err := x.Extract(context.Background(), "SIG2")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if ev == nil {
		t.Fatal("expected a buy event")
	}
	if ev.Buyer != buyerAddr {
		t.Errorf("Buyer = %q, want %q", ev.Buyer, buyerAddr)
	}
	if !ev.AssetAmount.IsZero() {
		t.Errorf("AssetAmount = %s, want 0", ev.AssetAmount)
	}
}

func TestExtractor_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*solana.EnhancedTransaction)
	}{
		{
			name: "wrong program",
			mutate: func(tx *solana.EnhancedTransaction) {
				tx.Instructions = []solana.Instruction{{ProgramID: "SomeOtherProgram"}}
			},
		},
		{
			name: "failed transaction",
			mutate: func(tx *solana.EnhancedTransaction) {
				tx.TransactionError = map[string]interface{}{"InstructionError": []interface{}{}}
			},
		},
		{
			name: "no qualifying transfers",
			mutate: func(tx *solana.EnhancedTransaction) {
				tx.TokenTransfers = nil
				tx.NativeTransfers = nil
			},
		},
		{
			name: "quote transfer to system account only",
			mutate: func(tx *solana.EnhancedTransaction) {
				tx.TokenTransfers = nil
				tx.NativeTransfers = []solana.NativeTransfer{
					{FromUserAccount: buyerAddr, ToUserAccount: systemAddr, Amount: 2_500_000_000},
				}
			},
		},
		{
			name: "different mint",
			mutate: func(tx *solana.EnhancedTransaction) {
				tx.TokenTransfers[0].Mint = "OtherMint"
				tx.NativeTransfers = nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := buyTx("SIGR")
			tt.mutate(&tx)

			provider := &fakeProvider{txs: []solana.EnhancedTransaction{tx}}
			x := NewExtractor(provider, trackedMint, zerolog.Nop())

			ev, err := x.Extract(context.Background(), "SIGR")
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if ev != nil {
				t.Errorf("expected no event, got %+v", ev)
			}
		})
	}
}

func TestExtractor_ProviderErrorIsSkipped(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited (429)")}
	x := NewExtractor(provider, trackedMint, zerolog.Nop())

	ev, err := x.Extract(context.Background(), "SIG")
	if err != nil {
		t.Fatalf("provider errors must be absorbed, got %v", err)
	}
	if ev != nil {
		t.Errorf("expected no event on provider failure, got %+v", ev)
	}
}

func TestExtractor_EmptyResponse(t *testing.T) {
	provider := &fakeProvider{}
	x := NewExtractor(provider, trackedMint, zerolog.Nop())

	ev, err := x.Extract(context.Background(), "SIG")
	if err != nil || ev != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", ev, err)
	}
}

func TestLooksLikePoolAccount(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"", false},
		{systemAddr, false},
		{poolAddr, true},                      // "pump" label
		{"GfVPzUxMDvhFJ1Xs6C9i1XPkjyFqUvnqQg", true}, // does not start with '1'
	}

	for _, tt := range tests {
		if got := looksLikePoolAccount(tt.addr); got != tt.want {
			t.Errorf("looksLikePoolAccount(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}
