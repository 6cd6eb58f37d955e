package domain

import "context"

// TxState is the ledger's view of a submitted transaction.
type TxState string

const (
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
)

// TxStatus is a point-in-time status query result.
type TxStatus struct {
	State         TxState
	Confirmations int
	// ErrorDetail is the ledger's execution error when State is TxFailed.
	ErrorDetail string
}

// LedgerClient submits signed transactions to the network and queries their
// status. Submit returns the network's transaction reference (signature).
type LedgerClient interface {
	Submit(ctx context.Context, signedPayload []byte) (txRef string, err error)
	Status(ctx context.Context, txRef string) (TxStatus, error)
}
