package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertRecord is the audit row written after a buy alert was delivered.
// Signature is unique per record.
type AlertRecord struct {
	Signature   string
	Buyer       string
	QuoteAmount decimal.Decimal // SOL
	AssetAmount decimal.Decimal
	USDValue    decimal.Decimal
	Whale       bool
	SentAt      time.Time
}

// BuyEventRecord archives an extracted buy event before threshold
// filtering. Append-only; duplicates may occur on reconnect replays and
// are tolerated by the archive.
type BuyEventRecord struct {
	Signature   string
	Buyer       string
	QuoteAmount decimal.Decimal
	AssetAmount decimal.Decimal
	ObservedAt  time.Time
}
