package domain

import "context"

// QuoteSource is one external liquidity venue. Implementations must honor the
// caller's context deadline; a source that cannot answer in time is simply
// absent from that refresh cycle.
type QuoteSource interface {
	// Name returns the venue identifier, e.g. "raydium" or "orca".
	Name() string

	// GetQuote returns the venue's current terms for trading referenceAmount
	// (quote units) of the pair.
	GetQuote(ctx context.Context, pair Pair, referenceAmount float64) (Quote, error)
}
