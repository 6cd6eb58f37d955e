package domain

import "time"

// ExecStatus is the state of an execution request.
type ExecStatus string

const (
	ExecPending    ExecStatus = "pending"
	ExecSubmitted  ExecStatus = "submitted"
	ExecConfirmed  ExecStatus = "confirmed"
	ExecFailed     ExecStatus = "failed"
	ExecTimedOut   ExecStatus = "timed_out"
	ExecRolledBack ExecStatus = "rolled_back"
	ExecRiskDenied ExecStatus = "risk_denied"
)

// Terminal reports whether the status ends the lifecycle of a record.
// ExecTimedOut is terminal-but-unknown: the transaction may still finalize
// later and must never be treated as either success or failure.
func (s ExecStatus) Terminal() bool {
	switch s {
	case ExecConfirmed, ExecFailed, ExecTimedOut, ExecRolledBack, ExecRiskDenied:
		return true
	default:
		return false
	}
}

// LegKind orders the transactions that make up one execution.
type LegKind string

const (
	LegBorrow  LegKind = "borrow"
	LegAcquire LegKind = "acquire"
	LegDispose LegKind = "dispose"
	LegRepay   LegKind = "repay"
	// LegUnwind is the compensating transaction that reverses an already
	// settled leg when a later leg fails.
	LegUnwind LegKind = "unwind"
)

// ExecutionRequest is the immutable instruction the coordinator acts on.
// It is built from an approved Opportunity and never changes once submitted.
type ExecutionRequest struct {
	Opportunity Opportunity

	// SizedAmount is the chosen trade size in quote units, inside the
	// opportunity's sizing bounds.
	SizedAmount float64

	// Signer is the signing identity (base58 public key) executing the trade.
	Signer string

	// IdempotencyKey is a deterministic hash of pair, detection cycle, and
	// signer. Retries reuse it so duplicate submissions are detectable.
	IdempotencyKey string

	MaxSlippageBps float64
	Deadline       time.Time

	// Cycle is the detection cycle the opportunity came from.
	Cycle uint64
}

// ExecutionLeg records one submitted transaction within an execution.
type ExecutionLeg struct {
	Kind          LegKind
	Venue         string
	TxRef         string
	Status        TxState
	Confirmations int
	SubmittedAt   time.Time
	ResolvedAt    *time.Time
}

// ExecutionRecord is the persisted outcome of one execution attempt. Records
// are append-only: once a record reaches a terminal status it is never
// mutated, a retry produces a new record under the same idempotency key.
type ExecutionRecord struct {
	ID             string
	IdempotencyKey string
	Signer         string
	Pair           Pair
	Status         ExecStatus

	// Reason is a human-readable explanation of the terminal state. It must
	// distinguish "never attempted" from "attempted and failed on-chain"
	// from "attempted, unknown outcome".
	Reason string

	Legs        []ExecutionLeg
	SizedAmount float64

	// RealizedProfit is nil until the execution is confirmed.
	RealizedProfit *float64

	Attempts int

	// ManualIntervention is set when a compensating rollback itself failed
	// and an operator has to reconcile by hand.
	ManualIntervention bool

	CreatedAt   time.Time
	SubmittedAt *time.Time
	CompletedAt *time.Time
}

// TransactionRefs returns the ordered ledger transaction identifiers.
func (r ExecutionRecord) TransactionRefs() []string {
	refs := make([]string, 0, len(r.Legs))
	for _, leg := range r.Legs {
		if leg.TxRef != "" {
			refs = append(refs, leg.TxRef)
		}
	}
	return refs
}

// ExecutionFilter narrows ListRecords queries. Zero fields match everything.
type ExecutionFilter struct {
	Signer string
	Pair   string
	Status ExecStatus
	Since  time.Time
	Limit  int
}

// DailyStats summarizes one signer's executions for one UTC day.
type DailyStats struct {
	Signer     string
	Day        time.Time
	Executions int
	Profit     float64
	Loss       float64
}
