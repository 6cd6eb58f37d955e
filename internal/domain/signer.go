package domain

import "context"

// Signer is the signing capability the executor consumes. Key storage and
// signature internals are deliberately opaque here.
type Signer interface {
	// Identity returns the signer's public identity (base58 public key).
	Identity() string

	// Sign signs a transaction payload and returns the signed wire bytes.
	Sign(payload []byte) ([]byte, error)
}

// BalanceProvider answers available-balance queries for a signing identity.
type BalanceProvider interface {
	Balance(ctx context.Context, identity, asset string) (float64, error)
}
