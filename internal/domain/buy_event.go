package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTransactionRef is a transaction signature as observed on the log
// stream, together with its arrival time. It lives for exactly one
// pipeline pass.
type RawTransactionRef struct {
	Signature  string
	ObservedAt time.Time
}

// BuyEvent is a normalized record of one purchase of the tracked token,
// extracted from a raw transaction.
type BuyEvent struct {
	Signature   string          // transaction signature, used as dedup key
	Buyer       string          // account that received the tokens
	QuoteAmount decimal.Decimal // SOL spent
	AssetAmount decimal.Decimal // tokens received
	ObservedAt  time.Time       // extraction time
}

// Valid reports whether the event meets the minimum shape of a buy:
// a positive SOL amount and a known buyer. Extraction yields no event
// otherwise.
func (e *BuyEvent) Valid() bool {
	return e != nil && e.Buyer != "" && e.QuoteAmount.IsPositive()
}
