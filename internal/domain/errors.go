package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrSignerBusy        = errors.New("signer busy")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrInvalidQuote      = errors.New("invalid quote")
	ErrLedgerRejected    = errors.New("rejected by ledger")
	ErrSigningFailed     = errors.New("signing failed")
	ErrDeadlineExceeded  = errors.New("execution deadline exceeded")
)
