package domain

import (
	"fmt"
	"time"
)

// Quote is an immutable snapshot of exchange terms from one venue. A newer
// quote for the same (pair, venue) key supersedes it; quotes are never
// mutated in place.
type Quote struct {
	Pair  Pair
	Venue string

	// Price is the venue's quoted price in quote units per base unit.
	Price float64

	// AvailableLiquidity is the approximate depth at or near Price,
	// denominated in quote units.
	AvailableLiquidity float64

	// FeeBps is the venue's taker fee in basis points.
	FeeBps float64

	ObservedAt time.Time

	// Confidence is a 0-1 score supplied by the source, or defaulted by the
	// aggregator when the source does not report one.
	Confidence float64
}

// Validate rejects quotes that would poison the cache: non-positive price or
// liquidity, missing venue, or a confidence outside [0, 1].
func (q Quote) Validate() error {
	if q.Venue == "" {
		return fmt.Errorf("domain: quote for %s has no venue", q.Pair)
	}
	if q.Price <= 0 {
		return fmt.Errorf("domain: quote %s@%s has non-positive price %v", q.Pair, q.Venue, q.Price)
	}
	if q.AvailableLiquidity <= 0 {
		return fmt.Errorf("domain: quote %s@%s has non-positive liquidity %v", q.Pair, q.Venue, q.AvailableLiquidity)
	}
	if q.Confidence < 0 || q.Confidence > 1 {
		return fmt.Errorf("domain: quote %s@%s has confidence %v outside [0,1]", q.Pair, q.Venue, q.Confidence)
	}
	return nil
}

// Age returns how old the quote is relative to now.
func (q Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.ObservedAt)
}
