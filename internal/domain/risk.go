package domain

import "time"

// RiskState tracks per-signer execution accounting. It resets on a UTC daily
// boundary and is mutated only by the risk governor's outcome path.
type RiskState struct {
	Signer              string
	Day                 time.Time
	ExecutionsToday     int
	CumulativeLossToday float64
	LastExecutionAt     time.Time
	CooldownUntil       time.Time
}

// Decision is the result of a risk authorization check. Denials are expected,
// frequent outcomes and travel as values, not errors.
type Decision struct {
	Approved bool
	Reason   string
}

// Approve returns an approving decision.
func Approve() Decision {
	return Decision{Approved: true, Reason: "ok"}
}

// Deny returns a denying decision with the given reason.
func Deny(reason string) Decision {
	return Decision{Approved: false, Reason: reason}
}
