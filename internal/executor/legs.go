package executor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// legPlan is one planned transaction: its role, target venue, and the payload
// handed to the signer. Legs are strictly ordered; leg N+1 is never submitted
// before leg N confirms.
type legPlan struct {
	Kind    domain.LegKind
	Venue   string
	Payload []byte
}

// legIntent is the canonical payload signed and submitted for one leg. The
// idempotency key plus sequence number make accidental duplicate submissions
// detectable downstream.
type legIntent struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Seq            int             `json:"seq"`
	Kind           domain.LegKind  `json:"kind"`
	Venue          string          `json:"venue"`
	Pair           string          `json:"pair"`
	Amount         float64         `json:"amount"`
	Price          float64         `json:"price,omitempty"`
	MaxSlippageBps float64         `json:"max_slippage_bps"`
	Deadline       time.Time       `json:"deadline"`
}

// planLegs builds the ordered transaction sequence for a request: acquire the
// base asset on the buy venue, dispose of it on the sell venue, wrapped in a
// borrow/repay pair when the trade runs on sourced capital.
func (c *Coordinator) planLegs(req domain.ExecutionRequest) ([]legPlan, error) {
	opp := req.Opportunity
	if opp.BuyVenue == "" || opp.SellVenue == "" {
		return nil, fmt.Errorf("executor: opportunity %s has no venues", opp.ID)
	}

	var specs []legIntent
	seq := 0
	next := func(kind domain.LegKind, venue string, amount, price float64) {
		specs = append(specs, legIntent{
			IdempotencyKey: req.IdempotencyKey,
			Seq:            seq,
			Kind:           kind,
			Venue:          venue,
			Pair:           opp.Pair.String(),
			Amount:         amount,
			Price:          price,
			MaxSlippageBps: req.MaxSlippageBps,
			Deadline:       req.Deadline,
		})
		seq++
	}

	if c.cfg.FlashLoanVenue != "" {
		next(domain.LegBorrow, c.cfg.FlashLoanVenue, req.SizedAmount, 0)
	}
	next(domain.LegAcquire, opp.BuyVenue, req.SizedAmount, opp.BuyPrice)
	next(domain.LegDispose, opp.SellVenue, req.SizedAmount, opp.SellPrice)
	if c.cfg.FlashLoanVenue != "" {
		next(domain.LegRepay, c.cfg.FlashLoanVenue, req.SizedAmount, 0)
	}

	plans := make([]legPlan, 0, len(specs))
	for _, spec := range specs {
		payload, err := json.Marshal(spec)
		if err != nil {
			return nil, fmt.Errorf("executor: marshal leg %d: %w", spec.Seq, err)
		}
		plans = append(plans, legPlan{Kind: spec.Kind, Venue: spec.Venue, Payload: payload})
	}
	return plans, nil
}

// planUnwind builds the compensating transaction that reverses one settled
// leg: an acquire is unwound by disposing on the same venue and vice versa.
func (c *Coordinator) planUnwind(req domain.ExecutionRequest, settled domain.ExecutionLeg, seq int) (legPlan, error) {
	opp := req.Opportunity
	price := opp.BuyPrice
	if settled.Kind == domain.LegDispose {
		price = opp.SellPrice
	}
	spec := legIntent{
		IdempotencyKey: req.IdempotencyKey,
		Seq:            seq,
		Kind:           domain.LegUnwind,
		Venue:          settled.Venue,
		Pair:           opp.Pair.String(),
		Amount:         req.SizedAmount,
		Price:          price,
		MaxSlippageBps: req.MaxSlippageBps,
		Deadline:       req.Deadline,
	}
	payload, err := json.Marshal(spec)
	if err != nil {
		return legPlan{}, fmt.Errorf("executor: marshal unwind leg: %w", err)
	}
	return legPlan{Kind: domain.LegUnwind, Venue: settled.Venue, Payload: payload}, nil
}
