package domain

import "context"

// QuoteCache mirrors the latest quote per (pair, venue) to an external cache
// so dashboards and other processes can read prices without touching the
// in-process pair cache.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, pair Pair, venue string) (Quote, error)
	GetQuotes(ctx context.Context, pair Pair) ([]Quote, error)
}

// SignalBus provides pub/sub fan-out of engine events (detected
// opportunities, execution terminals) to external consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
