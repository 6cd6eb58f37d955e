package domain

import "time"

// Opportunity is a derived, ephemeral arbitrage candidate: buy on one venue,
// sell on another, for the same pair. It is recomputed fresh every detection
// cycle and never persisted.
type Opportunity struct {
	ID   string
	Pair Pair

	BuyVenue  string
	SellVenue string
	BuyPrice  float64
	SellPrice float64

	BuyFeeBps  float64
	SellFeeBps float64

	// GrossSpreadPct is (SellPrice - BuyPrice) / BuyPrice * 100.
	GrossSpreadPct float64

	// SlippageBps is the assumed round-trip slippage used in the net figure.
	SlippageBps float64

	// NetProfitPct is GrossSpreadPct minus both leg fees and assumed
	// slippage, all expressed in percent.
	NetProfitPct float64

	// MinTradeAmount and MaxTradeAmount bound the tradable size in quote
	// units given liquidity caps and the dust floor.
	MinTradeAmount float64
	MaxTradeAmount float64

	CreatedAt time.Time
}
