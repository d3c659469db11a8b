package domain

// EnrichmentSnapshot is point-in-time market data for the tracked token.
// Values are provider-reported statistics; a zero snapshot is the
// documented fallback when no data was ever fetched.
type EnrichmentSnapshot struct {
	PriceUSD       float64
	MarketCapUSD   float64
	LiquidityUSD   float64
	Volume24hUSD   float64
	PriceChange5m  float64 // percent
	PriceChange1h  float64 // percent
	PriceChange24h float64 // percent
	Txns24h        int
	PairAddress    string
}
