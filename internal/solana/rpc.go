package solana

import "context"

// TransactionProvider fetches decoded transaction detail for signatures.
// Implementations resolve asset and native transfers that the extractor
// works from; batch-of-one calls are the normal case for the watcher.
type TransactionProvider interface {
	GetEnhancedTransactions(ctx context.Context, signatures []string) ([]EnhancedTransaction, error)
}

// EnhancedTransaction is a decoded transaction record from the
// enhanced-transactions API.
type EnhancedTransaction struct {
	Signature        string           `json:"signature"`
	Timestamp        int64            `json:"timestamp"` // Unix seconds
	TransactionError interface{}      `json:"transactionError"`
	Instructions     []Instruction    `json:"instructions"`
	TokenTransfers   []TokenTransfer  `json:"tokenTransfers"`
	NativeTransfers  []NativeTransfer `json:"nativeTransfers"`
}

// Instruction is a top-level instruction reference.
type Instruction struct {
	ProgramID string `json:"programId"`
}

// TokenTransfer is one SPL token movement.
type TokenTransfer struct {
	Mint            string  `json:"mint"`
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	TokenAmount     float64 `json:"tokenAmount"` // UI amount, decimals applied
}

// NativeTransfer is one SOL movement in lamports.
type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          int64  `json:"amount"` // lamports
}
