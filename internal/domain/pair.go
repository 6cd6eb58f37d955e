// Package domain defines the core types and capability interfaces shared by
// every component of the arbitrage engine. It contains no I/O; concrete
// implementations live in their own packages (source, ledger, store, cache).
package domain

import (
	"fmt"
	"strings"
)

// Pair identifies an ordered base/quote asset combination, e.g. SOL/USDC.
// Prices for a pair are always expressed in quote units per base unit.
type Pair struct {
	Base  string
	Quote string
}

// ParsePair parses a "BASE/QUOTE" string into a Pair.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("domain: invalid pair %q (want BASE/QUOTE)", s)
	}
	return Pair{Base: strings.ToUpper(parts[0]), Quote: strings.ToUpper(parts[1])}, nil
}

// String returns the canonical "BASE/QUOTE" form.
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// IsZero reports whether the pair is unset.
func (p Pair) IsZero() bool {
	return p.Base == "" && p.Quote == ""
}
