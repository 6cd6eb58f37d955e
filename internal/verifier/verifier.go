// Package verifier tracks submitted transactions to finality by polling the
// ledger's status query with a bounded attempt budget.
package verifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// Config holds the polling parameters.
type Config struct {
	PollInterval     time.Duration // default 2s
	MaxPollAttempts  int           // default 10
	MinConfirmations int           // default 1

	// TransportRetries is how many consecutive provider-side query errors are
	// retried inline before they count as one consumed poll attempt.
	TransportRetries int // default 3
}

func (c Config) normalize() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 10
	}
	if c.MinConfirmations <= 0 {
		c.MinConfirmations = 1
	}
	if c.TransportRetries <= 0 {
		c.TransportRetries = 3
	}
	return c
}

// Result is the outcome of awaiting one transaction.
//
// ExecTimedOut means "unknown": the attempt budget or timeout ran out before
// the network reported anything definitive. The transaction may still
// finalize later, so callers must not treat it as success or failure, and
// must not trigger compensating actions on it without a further confirmatory
// check.
type Result struct {
	Status        domain.ExecStatus // ExecConfirmed, ExecFailed, or ExecTimedOut
	Confirmations int
	Detail        string
}

// Verifier polls a ledger client for transaction finality.
type Verifier struct {
	cfg    Config
	ledger domain.LedgerClient
	logger *slog.Logger
}

// New creates a Verifier with the given polling configuration.
func New(cfg Config, ledger domain.LedgerClient, logger *slog.Logger) *Verifier {
	return &Verifier{
		cfg:    cfg.normalize(),
		ledger: ledger,
		logger: logger.With(slog.String("component", "verifier")),
	}
}

// AwaitFinality polls the transaction's status until it confirms, definitively
// fails, the attempt budget is exhausted, or timeout elapses, whichever comes
// first. Transient query errors are absorbed; the only error returned is the
// caller's own context cancellation.
func (v *Verifier) AwaitFinality(ctx context.Context, txRef string, timeout time.Duration) (Result, error) {
	pollCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		pollCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := v.logger.With(slog.String("tx_ref", txRef))
	for attempt := 1; attempt <= v.cfg.MaxPollAttempts; attempt++ {
		status, ok := v.queryOnce(pollCtx, txRef, log)
		if err := ctx.Err(); err != nil {
			return Result{Status: domain.ExecTimedOut, Detail: "caller cancelled"}, err
		}
		if pollCtx.Err() != nil {
			// Local timeout elapsed: outcome unknown, not an error.
			return Result{Status: domain.ExecTimedOut, Detail: "verification timeout"}, nil
		}
		if ok {
			switch status.State {
			case domain.TxConfirmed:
				if status.Confirmations >= v.cfg.MinConfirmations {
					log.Info("transaction confirmed", slog.Int("confirmations", status.Confirmations))
					return Result{Status: domain.ExecConfirmed, Confirmations: status.Confirmations}, nil
				}
				log.Debug("awaiting confirmations",
					slog.Int("have", status.Confirmations),
					slog.Int("want", v.cfg.MinConfirmations),
				)
			case domain.TxFailed:
				log.Warn("transaction failed on ledger", slog.String("detail", status.ErrorDetail))
				return Result{Status: domain.ExecFailed, Detail: status.ErrorDetail}, nil
			}
		}

		if attempt == v.cfg.MaxPollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return Result{Status: domain.ExecTimedOut, Detail: "caller cancelled"}, ctx.Err()
		case <-pollCtx.Done():
			return Result{Status: domain.ExecTimedOut, Detail: "verification timeout"}, nil
		case <-time.After(v.cfg.PollInterval):
		}
	}

	log.Warn("finality not observed within attempt budget",
		slog.Int("attempts", v.cfg.MaxPollAttempts),
	)
	return Result{Status: domain.ExecTimedOut, Detail: "poll attempts exhausted"}, nil
}

// queryOnce performs one logical poll attempt: up to TransportRetries
// consecutive provider errors are retried inline without consuming the
// attempt. ok is false when every retry errored.
func (v *Verifier) queryOnce(ctx context.Context, txRef string, log *slog.Logger) (domain.TxStatus, bool) {
	for i := 0; i < v.cfg.TransportRetries; i++ {
		status, err := v.ledger.Status(ctx, txRef)
		if err == nil {
			return status, true
		}
		if ctx.Err() != nil {
			return domain.TxStatus{}, false
		}
		log.Debug("status query transport error",
			slog.Int("retry", i+1),
			slog.String("error", err.Error()),
		)
	}
	return domain.TxStatus{}, false
}
