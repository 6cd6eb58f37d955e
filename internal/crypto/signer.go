package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// LocalSigner holds an ed25519 key in memory and signs transaction payloads.
// The signed wire format is the 64-byte signature followed by the message.
type LocalSigner struct {
	identity string
	priv     ed25519.PrivateKey
}

// NewLocalSigner derives a keypair from a hex-encoded 32-byte seed, as
// returned by LoadKey. The identity is the base58-encoded public key.
func NewLocalSigner(seedHex string) (*LocalSigner, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid seed hex: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: expected %d-byte seed, got %d bytes", ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &LocalSigner{
		identity: base58.Encode(pub),
		priv:     priv,
	}, nil
}

// NewLocalSignerFromConfig resolves the seed via LoadKey and derives the
// keypair.
func NewLocalSignerFromConfig(cfg KeyConfig) (*LocalSigner, error) {
	seedHex, err := LoadKey(cfg)
	if err != nil {
		return nil, err
	}
	return NewLocalSigner(seedHex)
}

// Identity returns the base58-encoded public key.
func (s *LocalSigner) Identity() string {
	return s.identity
}

// Sign signs the payload and returns the signed wire bytes.
func (s *LocalSigner) Sign(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("crypto: %w: empty payload", domain.ErrSigningFailed)
	}
	sig := ed25519.Sign(s.priv, payload)
	signed := make([]byte, 0, len(sig)+len(payload))
	signed = append(signed, sig...)
	signed = append(signed, payload...)
	return signed, nil
}

// Compile-time interface check.
var _ domain.Signer = (*LocalSigner)(nil)
