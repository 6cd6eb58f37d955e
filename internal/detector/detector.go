// Package detector computes fee- and slippage-adjusted arbitrage candidates
// from a snapshot of venue quotes. Detection is a pure function of the
// snapshot: the detector keeps no mutable state between cycles.
package detector

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// Config holds the detection thresholds and the slippage model parameters.
type Config struct {
	// MinProfitThresholdPct is the minimum net profit, in percent, for an
	// opportunity to surface. It must be strictly positive.
	MinProfitThresholdPct float64

	// LiquidityUtilizationCap is the fraction of the thinner leg's liquidity
	// an opportunity may consume. Default 0.05 (5%).
	LiquidityUtilizationCap float64

	// MinTradeAmount is the dust floor in quote units; sizes below it cannot
	// cover fixed fees.
	MinTradeAmount float64

	// MaxTradeAmount optionally caps sizing regardless of liquidity. Zero
	// means no cap.
	MaxTradeAmount float64

	// Slippage model: assumed bps = SlippageBaseBps + SlippageSlopeBps *
	// (size / thinner leg liquidity), capped at SlippageCapBps. The model is
	// monotonically non-decreasing in size.
	SlippageBaseBps  float64
	SlippageSlopeBps float64
	SlippageCapBps   float64
}

func (c Config) normalize() Config {
	if c.LiquidityUtilizationCap <= 0 {
		c.LiquidityUtilizationCap = 0.05
	}
	if c.SlippageCapBps <= 0 {
		c.SlippageCapBps = 200
	}
	return c
}

// Detector ranks cross-venue opportunities for tracked pairs.
type Detector struct {
	cfg Config
}

// New creates a Detector. A non-positive profit threshold is a configuration
// bug and refuses to start rather than being handled per cycle.
func New(cfg Config) (*Detector, error) {
	if cfg.MinProfitThresholdPct <= 0 {
		return nil, fmt.Errorf("detector: min profit threshold must be > 0, got %v", cfg.MinProfitThresholdPct)
	}
	return &Detector{cfg: cfg.normalize()}, nil
}

// AssumedSlippageBps evaluates the slippage model for a trade of size quote
// units against the given available liquidity.
func (d *Detector) AssumedSlippageBps(size, liquidity float64) float64 {
	if liquidity <= 0 {
		return d.cfg.SlippageCapBps
	}
	bps := d.cfg.SlippageBaseBps + d.cfg.SlippageSlopeBps*(size/liquidity)
	if bps > d.cfg.SlippageCapBps {
		return d.cfg.SlippageCapBps
	}
	return bps
}

// Detect computes all pairwise venue comparisons for one pair's quotes and
// returns at most one opportunity: the highest net-profit candidate that
// clears the threshold and sizing constraints. Execution is serialized per
// signer, so two simultaneously conflicting proposals for the same pair can
// never both be honored with consistent pricing.
func (d *Detector) Detect(pair domain.Pair, quotes []domain.Quote) []domain.Opportunity {
	if len(quotes) < 2 {
		return nil
	}

	var best *domain.Opportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			for _, cand := range []*domain.Opportunity{
				d.evaluate(pair, quotes[i], quotes[j]),
				d.evaluate(pair, quotes[j], quotes[i]),
			} {
				if cand == nil {
					continue
				}
				if best == nil || cand.NetProfitPct > best.NetProfitPct {
					best = cand
				}
			}
		}
	}
	if best == nil {
		return nil
	}
	best.ID = uuid.New().String()
	best.CreatedAt = time.Now().UTC()
	return []domain.Opportunity{*best}
}

// DetectAll runs Detect over a multi-pair snapshot and returns the surviving
// opportunities sorted descending by net profit. At most one opportunity per
// pair is ever returned in one cycle.
func (d *Detector) DetectAll(snapshot map[domain.Pair][]domain.Quote) []domain.Opportunity {
	var out []domain.Opportunity
	for pair, quotes := range snapshot {
		out = append(out, d.Detect(pair, quotes)...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NetProfitPct != out[j].NetProfitPct {
			return out[i].NetProfitPct > out[j].NetProfitPct
		}
		return out[i].Pair.String() < out[j].Pair.String()
	})
	return out
}

// evaluate builds the buy-on-buyQ / sell-on-sellQ candidate, or nil when the
// direction is unprofitable or cannot be sized.
func (d *Detector) evaluate(pair domain.Pair, buyQ, sellQ domain.Quote) *domain.Opportunity {
	if buyQ.Price <= 0 || sellQ.Price <= buyQ.Price {
		return nil
	}
	grossPct := (sellQ.Price - buyQ.Price) / buyQ.Price * 100

	thinner := buyQ.AvailableLiquidity
	if sellQ.AvailableLiquidity < thinner {
		thinner = sellQ.AvailableLiquidity
	}
	maxTrade := thinner * d.cfg.LiquidityUtilizationCap
	if d.cfg.MaxTradeAmount > 0 && maxTrade > d.cfg.MaxTradeAmount {
		maxTrade = d.cfg.MaxTradeAmount
	}
	if maxTrade < d.cfg.MinTradeAmount {
		return nil
	}

	slippageBps := d.AssumedSlippageBps(maxTrade, thinner)
	netPct := grossPct - (buyQ.FeeBps+sellQ.FeeBps)/100 - slippageBps/100
	if netPct < d.cfg.MinProfitThresholdPct {
		return nil
	}

	return &domain.Opportunity{
		Pair:           pair,
		BuyVenue:       buyQ.Venue,
		SellVenue:      sellQ.Venue,
		BuyPrice:       buyQ.Price,
		SellPrice:      sellQ.Price,
		BuyFeeBps:      buyQ.FeeBps,
		SellFeeBps:     sellQ.FeeBps,
		GrossSpreadPct: grossPct,
		SlippageBps:    slippageBps,
		NetProfitPct:   netPct,
		MinTradeAmount: d.cfg.MinTradeAmount,
		MaxTradeAmount: maxTrade,
	}
}
