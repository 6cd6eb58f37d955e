// Package risk gates approved opportunities behind per-signer cooldowns,
// daily transaction and loss caps, and balance checks.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// Config holds the governor's limits.
type Config struct {
	MaxDailyTransactions int
	MaxDailyLossBudget   float64

	// Cooldown is the minimum interval between execution attempts for one
	// signer, measured from the start of an attempt regardless of outcome.
	// It exists to prevent nonce/sequencing collisions on one identity.
	Cooldown time.Duration

	// GasBuffer is reserved headroom, in BalanceAsset units, that must remain
	// on top of the sized amount.
	GasBuffer float64

	// BalanceAsset is the asset queried for the available-balance check.
	BalanceAsset string
}

// Governor enforces the risk checks in order, short-circuiting on the first
// failure. It is the only writer of per-signer RiskState; the execution
// coordinator serializes attempts per signer, so each signer's state is
// effectively single-writer.
type Governor struct {
	cfg      Config
	balances domain.BalanceProvider

	mu     sync.Mutex
	states map[string]*domain.RiskState

	now    func() time.Time
	logger *slog.Logger
}

// New creates a Governor. Nonsensical limits abort at startup.
func New(cfg Config, balances domain.BalanceProvider, logger *slog.Logger) (*Governor, error) {
	if cfg.MaxDailyTransactions <= 0 {
		return nil, fmt.Errorf("risk: max daily transactions must be > 0, got %d", cfg.MaxDailyTransactions)
	}
	if cfg.MaxDailyLossBudget <= 0 {
		return nil, fmt.Errorf("risk: max daily loss budget must be > 0, got %v", cfg.MaxDailyLossBudget)
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 3 * time.Second
	}
	return &Governor{
		cfg:      cfg,
		balances: balances,
		states:   make(map[string]*domain.RiskState),
		now:      time.Now,
		logger:   logger.With(slog.String("component", "risk_governor")),
	}, nil
}

// stateLocked returns the signer's state, resetting it across a UTC day
// boundary. Callers must hold g.mu.
func (g *Governor) stateLocked(signer string) *domain.RiskState {
	today := g.now().UTC().Truncate(24 * time.Hour)
	st, ok := g.states[signer]
	if !ok || !st.Day.Equal(today) {
		st = &domain.RiskState{Signer: signer, Day: today}
		g.states[signer] = st
	}
	return st
}

// Authorize runs the ordered checks for executing opp at sizedAmount. It
// never mutates state; counters move only through BeginAttempt and
// RecordOutcome so retries are not double-counted.
func (g *Governor) Authorize(ctx context.Context, signer string, opp domain.Opportunity, sizedAmount float64) domain.Decision {
	g.mu.Lock()
	st := g.stateLocked(signer)
	cooldownUntil := st.CooldownUntil
	executions := st.ExecutionsToday
	loss := st.CumulativeLossToday
	g.mu.Unlock()

	now := g.now()
	if now.Before(cooldownUntil) {
		return domain.Deny(fmt.Sprintf("cooldown until %s", cooldownUntil.UTC().Format(time.RFC3339)))
	}
	if executions >= g.cfg.MaxDailyTransactions {
		return domain.Deny(fmt.Sprintf("daily transaction cap reached (%d/%d)", executions, g.cfg.MaxDailyTransactions))
	}
	if loss >= g.cfg.MaxDailyLossBudget {
		return domain.Deny(fmt.Sprintf("daily loss budget exhausted (%.2f/%.2f)", loss, g.cfg.MaxDailyLossBudget))
	}

	balance, err := g.balances.Balance(ctx, signer, g.cfg.BalanceAsset)
	if err != nil {
		// Without a balance we cannot prove the trade is funded; deny rather
		// than guess.
		g.logger.WarnContext(ctx, "balance query failed",
			slog.String("signer", signer),
			slog.String("error", err.Error()),
		)
		return domain.Deny("balance unavailable")
	}
	required := sizedAmount + g.cfg.GasBuffer
	if balance < required {
		return domain.Deny(fmt.Sprintf("insufficient balance %.4f < %.4f (%s, incl. gas buffer)", balance, required, opp.Pair))
	}

	return domain.Approve()
}

// BeginAttempt starts the signer's cooldown window. The coordinator calls it
// when an execution attempt starts, before any submission, so a second
// attempt on the same identity cannot land inside the window even if the
// first fails fast.
func (g *Governor) BeginAttempt(signer string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.stateLocked(signer)
	now := g.now()
	st.LastExecutionAt = now
	st.CooldownUntil = now.Add(g.cfg.Cooldown)
}

// RecordOutcome is the single mutation path for cap accounting, invoked by
// the coordinator exactly once per terminal record. Risk-denied records were
// never attempted and do not count against the transaction cap.
func (g *Governor) RecordOutcome(rec domain.ExecutionRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.stateLocked(rec.Signer)

	if rec.Status == domain.ExecRiskDenied {
		return
	}
	st.ExecutionsToday++
	if rec.RealizedProfit != nil && *rec.RealizedProfit < 0 {
		st.CumulativeLossToday += -*rec.RealizedProfit
	}
}

// State returns a copy of the signer's current state.
func (g *Governor) State(signer string) domain.RiskState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return *g.stateLocked(signer)
}
