// Package extract turns raw transaction detail into canonical buy events.
//
// Extraction is a best-effort heuristic over decoded transfer lists, not
// an instruction-level decode. The venue check and the pool-destination
// guess below are known approximations; they are isolated behind the
// Parser interface so exact decoding can replace them without touching
// the rest of the pipeline.
package extract

import (
	"context"
	"strings"
	"time"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-buy-watcher/internal/domain"
	"solana-buy-watcher/internal/solana"
)

// PumpFun is the pump.fun program ID.
const PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// LamportsPerSOL is the fixed minor-unit conversion for SOL.
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOLDec = decimal.NewFromInt(LamportsPerSOL)

// Parser extracts a buy event from a transaction signature, or decides
// none applies. A nil event with a nil error means "no event"; provider
// failures are absorbed the same way and the signature is skipped.
type Parser interface {
	Extract(ctx context.Context, signature string) (*domain.BuyEvent, error)
}

// Extractor is the pump.fun buy extractor for one tracked mint.
type Extractor struct {
	provider solana.TransactionProvider
	mint     string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewExtractor creates an extractor bound to the tracked mint.
func NewExtractor(provider solana.TransactionProvider, mint string, logger zerolog.Logger) *Extractor {
	return &Extractor{
		provider: provider,
		mint:     mint,
		logger:   logger.With().Str("component", "extractor").Logger(),
		now:      time.Now,
	}
}

// Extract fetches transaction detail for the signature and applies the
// buy heuristic: a transfer of the tracked mint to the buyer plus an
// outbound SOL transfer to a pool-like account.
func (x *Extractor) Extract(ctx context.Context, signature string) (*domain.BuyEvent, error) {
	txs, err := x.provider.GetEnhancedTransactions(ctx, []string{signature})
	if err != nil {
		// Transient provider failure: skip this signature. It is not
		// marked seen, so a re-observation can still produce an alert.
		x.logger.Debug().Err(err).Str("signature", signature).Msg("detail fetch failed, skipping")
		return nil, nil
	}
	if len(txs) == 0 {
		return nil, nil
	}

	tx := txs[0]
	if tx.TransactionError != nil {
		return nil, nil
	}
	if !touchesProgram(tx.Instructions, PumpFun) {
		return nil, nil
	}

	var buyer string
	var asset decimal.Decimal
	for _, tt := range tx.TokenTransfers {
		if tt.Mint == x.mint && tt.TokenAmount > 0 {
			buyer = tt.ToUserAccount
			asset = decimal.NewFromFloat(tt.TokenAmount)
			break
		}
	}

	var quote decimal.Decimal
	for _, nt := range tx.NativeTransfers {
		if nt.Amount <= 0 || !looksLikePoolAccount(nt.ToUserAccount) {
			continue
		}
		quote = decimal.NewFromInt(nt.Amount).Div(lamportsPerSOLDec)
		if buyer == "" {
			buyer = nt.FromUserAccount
		}
		break
	}

	ev := &domain.BuyEvent{
		Signature:   signature,
		Buyer:       buyer,
		QuoteAmount: quote,
		AssetAmount: asset,
		ObservedAt:  x.now(),
	}
	if !ev.Valid() {
		return nil, nil
	}

	x.logger.Debug().
		Str("signature", signature).
		Str("buyer", buyer).
		Str("sol", quote.String()).
		Msg("buy event extracted")

	return ev, nil
}

func touchesProgram(instructions []solana.Instruction, programID string) bool {
	for _, inst := range instructions {
		if inst.ProgramID == programID {
			return true
		}
	}
	return false
}

// looksLikePoolAccount guesses whether an address belongs to a pool or
// program account rather than a plain wallet. Pump.fun vault and
// bonding-curve accounts are PDAs, which are off the ed25519 curve; the
// substring and leading-'1' checks cover labeled accounts and system
// addresses. Known approximation.
func looksLikePoolAccount(addr string) bool {
	if addr == "" {
		return false
	}

	lower := strings.ToLower(addr)
	if strings.Contains(lower, "pump") || strings.Contains(lower, "pool") {
		return true
	}

	if raw, err := base58.Decode(addr); err == nil && len(raw) == 32 && !isOnCurve(raw) {
		return true
	}

	return !strings.HasPrefix(addr, "1")
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// Verify interface compliance at compile time.
var _ Parser = (*Extractor)(nil)
