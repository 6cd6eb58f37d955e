// Package executor turns approved opportunities into ordered sequences of
// signed transactions, submits them with bounded retries, and tracks every
// submission to a terminal state.
package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/retry"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/verifier"
)

// FinalityAwaiter is the verification capability the coordinator delegates
// to; implemented by verifier.Verifier.
type FinalityAwaiter interface {
	AwaitFinality(ctx context.Context, txRef string, timeout time.Duration) (verifier.Result, error)
}

// OutcomeRecorder receives risk-relevant lifecycle events: cooldown anchoring
// when an attempt starts and cap accounting exactly once per terminal record.
// Implemented by risk.Governor.
type OutcomeRecorder interface {
	BeginAttempt(signer string)
	RecordOutcome(rec domain.ExecutionRecord)
}

// Notifier delivers out-of-band alerts for terminal executions. Optional.
// Implemented by notify.Notifier.
type Notifier interface {
	ExecutionAlert(ctx context.Context, rec domain.ExecutionRecord) error
}

// Config holds the coordinator's tunables.
type Config struct {
	MaxSubmitRetries int           // default 3
	BackoffBase      time.Duration // default 250ms
	BackoffFactor    float64       // default 2
	BackoffCap       time.Duration // default 3s

	// VerifyTimeout bounds finality tracking per leg.
	VerifyTimeout time.Duration // default 60s

	// FlashLoanVenue, when set, wraps executions in a borrow/repay pair so
	// trades run on sourced capital.
	FlashLoanVenue string

	// FeePerLegEstimate is the assumed network fee per submitted leg in quote
	// units; it feeds loss accounting when fees are spent without a completed
	// profit.
	FeePerLegEstimate float64
}

func (c Config) normalize() Config {
	if c.MaxSubmitRetries <= 0 {
		c.MaxSubmitRetries = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 250 * time.Millisecond
	}
	if c.BackoffFactor <= 1 {
		c.BackoffFactor = 2
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 3 * time.Second
	}
	if c.VerifyTimeout <= 0 {
		c.VerifyTimeout = 60 * time.Second
	}
	return c
}

// Coordinator executes one request at a time per signing identity. A second
// request for a busy signer is rejected immediately, never queued.
type Coordinator struct {
	cfg      Config
	signers  map[string]domain.Signer
	ledger   domain.LedgerClient
	verify   FinalityAwaiter
	store    domain.ExecutionStore
	risk     OutcomeRecorder
	bus      domain.SignalBus
	notifier Notifier

	mu       sync.Mutex
	inflight map[string]bool

	logger *slog.Logger
}

// NewCoordinator creates a Coordinator for the given signers.
func NewCoordinator(
	cfg Config,
	signers []domain.Signer,
	ledger domain.LedgerClient,
	verify FinalityAwaiter,
	store domain.ExecutionStore,
	risk OutcomeRecorder,
	logger *slog.Logger,
) *Coordinator {
	byID := make(map[string]domain.Signer, len(signers))
	for _, s := range signers {
		byID[s.Identity()] = s
	}
	return &Coordinator{
		cfg:      cfg.normalize(),
		signers:  byID,
		ledger:   ledger,
		verify:   verify,
		store:    store,
		risk:     risk,
		inflight: make(map[string]bool),
		logger:   logger.With(slog.String("component", "execution_coordinator")),
	}
}

// SetBus publishes execution terminal events to the "executions" channel.
func (c *Coordinator) SetBus(bus domain.SignalBus) { c.bus = bus }

// SetNotifier enables out-of-band alerts on terminal executions.
func (c *Coordinator) SetNotifier(n Notifier) { c.notifier = n }

// IdempotencyKey derives the deterministic key for one logical intent:
// the same pair, detection cycle, and signer always hash to the same key.
func IdempotencyKey(pair domain.Pair, cycle uint64, signer string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%s", pair, cycle, signer))
	return hex.EncodeToString(sum[:])
}

// InFlight reports whether the signer currently has an execution running.
func (c *Coordinator) InFlight(signer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[signer]
}

// acquire reserves the signer's execution slot.
func (c *Coordinator) acquire(signer string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[signer] {
		return false
	}
	c.inflight[signer] = true
	return true
}

func (c *Coordinator) release(signer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, signer)
}

// RecordDenial persists a risk-denied request so reporting can distinguish
// "never attempted" from on-chain failures. Denials do not consume the
// signer's execution slot.
func (c *Coordinator) RecordDenial(ctx context.Context, req domain.ExecutionRequest, reason string) (domain.ExecutionRecord, error) {
	now := time.Now().UTC()
	rec := domain.ExecutionRecord{
		ID:             uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		Signer:         req.Signer,
		Pair:           req.Opportunity.Pair,
		Status:         domain.ExecRiskDenied,
		Reason:         "risk denied: " + reason,
		SizedAmount:    req.SizedAmount,
		CreatedAt:      now,
		CompletedAt:    &now,
	}
	if err := c.store.Append(ctx, rec); err != nil {
		return rec, fmt.Errorf("executor: record denial: %w", err)
	}
	c.risk.RecordOutcome(rec)
	if c.notifier != nil {
		if err := c.notifier.ExecutionAlert(ctx, rec); err != nil {
			c.logger.Warn("notify failed", slog.String("error", err.Error()))
		}
	}
	return rec, nil
}

// Execute runs the request's transaction sequence to a terminal state.
//
// Cancelling ctx suppresses new submissions only: a leg already handed to the
// network is still tracked to finality on a detached context and the record
// is persisted, even if the caller has gone away.
func (c *Coordinator) Execute(ctx context.Context, req domain.ExecutionRequest) (domain.ExecutionRecord, error) {
	signer, ok := c.signers[req.Signer]
	if !ok {
		return domain.ExecutionRecord{}, fmt.Errorf("executor: unknown signer %q", req.Signer)
	}
	if !req.Deadline.IsZero() && time.Now().After(req.Deadline) {
		return domain.ExecutionRecord{}, domain.ErrDeadlineExceeded
	}
	if !c.acquire(req.Signer) {
		return domain.ExecutionRecord{}, domain.ErrSignerBusy
	}
	defer c.release(req.Signer)

	c.risk.BeginAttempt(req.Signer)

	log := c.logger.With(
		slog.String("signer", req.Signer),
		slog.String("pair", req.Opportunity.Pair.String()),
		slog.String("idempotency_key", req.IdempotencyKey),
	)

	rec := domain.ExecutionRecord{
		ID:             uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		Signer:         req.Signer,
		Pair:           req.Opportunity.Pair,
		Status:         domain.ExecPending,
		SizedAmount:    req.SizedAmount,
		CreatedAt:      time.Now().UTC(),
	}
	if prior, err := c.store.ListByIdempotencyKey(ctx, req.IdempotencyKey); err == nil {
		rec.Attempts = len(prior) + 1
	} else {
		rec.Attempts = 1
	}
	if err := c.store.Append(ctx, rec); err != nil {
		return rec, fmt.Errorf("executor: append pending record: %w", err)
	}

	plans, err := c.planLegs(req)
	if err != nil {
		return c.finalize(ctx, rec, domain.ExecFailed, "invalid execution plan: "+err.Error(), nil), nil
	}

	// Verification must outlive caller cancellation.
	trackCtx := context.WithoutCancel(ctx)

	for i, plan := range plans {
		if err := ctx.Err(); err != nil {
			// No new submissions after cancellation.
			status := domain.ExecFailed
			reason := "cancelled before leg " + string(plan.Kind) + " was submitted"
			if c.confirmedLegs(rec) > 0 {
				rec.ManualIntervention = true
				reason += "; earlier legs settled, manual reconciliation required"
			}
			return c.finalize(trackCtx, rec, status, reason, c.spentFees(rec)), nil
		}

		leg, err := c.submitLeg(ctx, signer, plan, log)
		if err != nil {
			reason := fmt.Sprintf("submission of %s leg failed: %v", plan.Kind, err)
			if c.confirmedLegs(rec) > 0 {
				return c.rollback(trackCtx, req, rec, reason, log), nil
			}
			return c.finalize(trackCtx, rec, domain.ExecFailed, reason, c.spentFees(rec)), nil
		}
		rec.Legs = append(rec.Legs, leg)
		if i == 0 {
			now := time.Now().UTC()
			rec.SubmittedAt = &now
			rec.Status = domain.ExecSubmitted
		}
		if err := c.store.Update(trackCtx, rec); err != nil {
			log.Warn("record update failed", slog.String("error", err.Error()))
		}

		res, verr := c.verify.AwaitFinality(trackCtx, leg.TxRef, c.cfg.VerifyTimeout)
		if verr != nil {
			// Only the detached context can error here, which means the
			// process itself is shutting down hard.
			res = verifier.Result{Status: domain.ExecTimedOut, Detail: verr.Error()}
		}
		c.resolveLeg(&rec, leg.TxRef, res)

		switch res.Status {
		case domain.ExecConfirmed:
			continue
		case domain.ExecFailed:
			reason := fmt.Sprintf("%s leg rejected on ledger: %s", plan.Kind, res.Detail)
			if c.confirmedLegs(rec) > 0 {
				return c.rollback(trackCtx, req, rec, reason, log), nil
			}
			return c.finalize(trackCtx, rec, domain.ExecFailed, reason, c.spentFees(rec)), nil
		default: // ExecTimedOut
			// Unknown outcome: never roll back on a merely-unknown result.
			reason := fmt.Sprintf("%s leg outcome unknown after verification window (%s)", plan.Kind, res.Detail)
			if c.confirmedLegs(rec) > 0 {
				rec.ManualIntervention = true
				reason += "; earlier legs settled, out-of-band reconciliation required"
			}
			return c.finalize(trackCtx, rec, domain.ExecTimedOut, reason, nil), nil
		}
	}

	profit := req.SizedAmount*req.Opportunity.NetProfitPct/100 - c.cfg.FeePerLegEstimate*float64(len(rec.Legs))
	return c.finalize(trackCtx, rec, domain.ExecConfirmed,
		fmt.Sprintf("all %d legs confirmed", len(rec.Legs)), &profit), nil
}

// submitLeg signs and submits one leg with bounded exponential backoff.
// Ledger rejections are definitive and not retried; transport failures are.
func (c *Coordinator) submitLeg(ctx context.Context, signer domain.Signer, plan legPlan, log *slog.Logger) (domain.ExecutionLeg, error) {
	signed, err := signer.Sign(plan.Payload)
	if err != nil {
		return domain.ExecutionLeg{}, fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}

	policy := retry.Policy{
		MaxAttempts: c.cfg.MaxSubmitRetries,
		BaseDelay:   c.cfg.BackoffBase,
		Factor:      c.cfg.BackoffFactor,
		MaxDelay:    c.cfg.BackoffCap,
	}
	var txRef string
	err = retry.Do(ctx, policy, func(ctx context.Context, attempt int) (bool, error) {
		ref, err := c.ledger.Submit(ctx, signed)
		if err != nil {
			if attempt < policy.MaxAttempts {
				log.Warn("leg submission failed, retrying",
					slog.String("kind", string(plan.Kind)),
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()),
				)
			}
			return !errors.Is(err, domain.ErrLedgerRejected), err
		}
		txRef = ref
		return false, nil
	})
	if err != nil {
		return domain.ExecutionLeg{}, err
	}

	log.Info("leg submitted",
		slog.String("kind", string(plan.Kind)),
		slog.String("venue", plan.Venue),
		slog.String("tx_ref", txRef),
	)
	return domain.ExecutionLeg{
		Kind:        plan.Kind,
		Venue:       plan.Venue,
		TxRef:       txRef,
		Status:      domain.TxPending,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// rollback reverses already-settled legs best-effort after a definitive
// failure of a later leg. Rollback failure is recorded and surfaced for
// manual intervention, never retried automatically.
func (c *Coordinator) rollback(ctx context.Context, req domain.ExecutionRequest, rec domain.ExecutionRecord, reason string, log *slog.Logger) domain.ExecutionRecord {
	signer := c.signers[req.Signer]
	seq := len(rec.Legs)
	for i := len(rec.Legs) - 1; i >= 0; i-- {
		settled := rec.Legs[i]
		if settled.Status != domain.TxConfirmed || settled.Kind == domain.LegUnwind {
			continue
		}
		plan, err := c.planUnwind(req, settled, seq)
		seq++
		if err != nil {
			rec.ManualIntervention = true
			return c.finalize(ctx, rec, domain.ExecFailed,
				reason+"; rollback planning failed: "+err.Error(), c.spentFees(rec))
		}
		leg, err := c.submitLeg(ctx, signer, plan, log)
		if err != nil {
			rec.ManualIntervention = true
			return c.finalize(ctx, rec, domain.ExecFailed,
				reason+"; rollback submission failed: "+err.Error(), c.spentFees(rec))
		}
		rec.Legs = append(rec.Legs, leg)

		res, verr := c.verify.AwaitFinality(ctx, leg.TxRef, c.cfg.VerifyTimeout)
		if verr != nil || res.Status != domain.ExecConfirmed {
			detail := res.Detail
			if verr != nil {
				detail = verr.Error()
			}
			c.resolveLeg(&rec, leg.TxRef, res)
			rec.ManualIntervention = true
			return c.finalize(ctx, rec, domain.ExecFailed,
				reason+"; rollback did not confirm: "+detail, c.spentFees(rec))
		}
		c.resolveLeg(&rec, leg.TxRef, res)
	}
	return c.finalize(ctx, rec, domain.ExecRolledBack, reason+"; settled legs reversed", c.spentFees(rec))
}

// resolveLeg applies a verification result to the matching leg.
func (c *Coordinator) resolveLeg(rec *domain.ExecutionRecord, txRef string, res verifier.Result) {
	for i := range rec.Legs {
		if rec.Legs[i].TxRef != txRef {
			continue
		}
		now := time.Now().UTC()
		rec.Legs[i].Confirmations = res.Confirmations
		rec.Legs[i].ResolvedAt = &now
		switch res.Status {
		case domain.ExecConfirmed:
			rec.Legs[i].Status = domain.TxConfirmed
		case domain.ExecFailed:
			rec.Legs[i].Status = domain.TxFailed
		default:
			rec.Legs[i].Status = domain.TxPending
		}
		return
	}
}

func (c *Coordinator) confirmedLegs(rec domain.ExecutionRecord) int {
	n := 0
	for _, leg := range rec.Legs {
		if leg.Status == domain.TxConfirmed {
			n++
		}
	}
	return n
}

// spentFees estimates the fees burned on submitted legs, as a negative
// realized profit. Returns nil when nothing was submitted.
func (c *Coordinator) spentFees(rec domain.ExecutionRecord) *float64 {
	if len(rec.Legs) == 0 || c.cfg.FeePerLegEstimate <= 0 {
		return nil
	}
	loss := -c.cfg.FeePerLegEstimate * float64(len(rec.Legs))
	return &loss
}

// finalize stamps the terminal state, persists it, updates risk accounting
// exactly once, and emits events.
func (c *Coordinator) finalize(ctx context.Context, rec domain.ExecutionRecord, status domain.ExecStatus, reason string, realized *float64) domain.ExecutionRecord {
	now := time.Now().UTC()
	rec.Status = status
	rec.Reason = reason
	rec.RealizedProfit = realized
	rec.CompletedAt = &now

	if err := c.store.Update(ctx, rec); err != nil {
		c.logger.Error("terminal record update failed",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
	c.risk.RecordOutcome(rec)

	c.logger.Info("execution finished",
		slog.String("record_id", rec.ID),
		slog.String("signer", rec.Signer),
		slog.String("pair", rec.Pair.String()),
		slog.String("status", string(rec.Status)),
		slog.String("reason", rec.Reason),
		slog.Bool("manual_intervention", rec.ManualIntervention),
	)

	if c.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":     "execution",
			"record_id": rec.ID,
			"signer":    rec.Signer,
			"pair":      rec.Pair.String(),
			"status":    string(rec.Status),
			"reason":    rec.Reason,
		})
		if err := c.bus.Publish(ctx, "executions", evt); err != nil {
			c.logger.Warn("execution event publish failed", slog.String("error", err.Error()))
		}
	}
	if c.notifier != nil && status != domain.ExecConfirmed {
		if err := c.notifier.ExecutionAlert(ctx, rec); err != nil {
			c.logger.Warn("notify failed", slog.String("error", err.Error()))
		}
	}
	return rec
}
