package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

const testSeedHex = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Run("round trip recovers the seed", func(t *testing.T) {
		blob, err := EncryptKey(testSeedHex, "correct horse")
		require.NoError(t, err)

		got, err := DecryptKey(blob, "correct horse")
		require.NoError(t, err)
		assert.Equal(t, testSeedHex, got)
	})

	t.Run("0x prefix is stripped", func(t *testing.T) {
		blob, err := EncryptKey("0x"+testSeedHex, "pw")
		require.NoError(t, err)

		got, err := DecryptKey(blob, "pw")
		require.NoError(t, err)
		assert.Equal(t, testSeedHex, got)
	})

	t.Run("wrong password fails", func(t *testing.T) {
		blob, err := EncryptKey(testSeedHex, "right")
		require.NoError(t, err)

		_, err = DecryptKey(blob, "wrong")
		assert.Error(t, err)
	})

	t.Run("empty password is rejected", func(t *testing.T) {
		_, err := EncryptKey(testSeedHex, "")
		assert.Error(t, err)
	})

	t.Run("non-32-byte seed is rejected", func(t *testing.T) {
		_, err := EncryptKey("deadbeef", "pw")
		assert.Error(t, err)
	})
}

func TestLoadKey(t *testing.T) {
	t.Run("raw key takes precedence", func(t *testing.T) {
		got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testSeedHex})
		require.NoError(t, err)
		assert.Equal(t, testSeedHex, got)
	})

	t.Run("encrypted file path", func(t *testing.T) {
		blob, err := EncryptKey(testSeedHex, "pw")
		require.NoError(t, err)

		path := filepath.Join(t.TempDir(), "key.json")
		require.NoError(t, os.WriteFile(path, blob, 0o600))

		got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
		require.NoError(t, err)
		assert.Equal(t, testSeedHex, got)
	})

	t.Run("no source configured", func(t *testing.T) {
		_, err := LoadKey(KeyConfig{})
		assert.Error(t, err)
	})
}

func TestLocalSigner(t *testing.T) {
	t.Run("identity is the base58 public key", func(t *testing.T) {
		s, err := NewLocalSigner(testSeedHex)
		require.NoError(t, err)
		assert.NotEmpty(t, s.Identity())

		// Same seed, same identity.
		s2, err := NewLocalSigner(testSeedHex)
		require.NoError(t, err)
		assert.Equal(t, s.Identity(), s2.Identity())
	})

	t.Run("signature verifies against the public key", func(t *testing.T) {
		s, err := NewLocalSigner(testSeedHex)
		require.NoError(t, err)

		payload := []byte(`{"idempotency_key":"abc","seq":0}`)
		signed, err := s.Sign(payload)
		require.NoError(t, err)
		require.Len(t, signed, ed25519.SignatureSize+len(payload))

		seed, err := hex.DecodeString(testSeedHex)
		require.NoError(t, err)
		pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
		assert.True(t, ed25519.Verify(pub, signed[ed25519.SignatureSize:], signed[:ed25519.SignatureSize]))
	})

	t.Run("empty payload is a signing failure", func(t *testing.T) {
		s, err := NewLocalSigner(testSeedHex)
		require.NoError(t, err)

		_, err = s.Sign(nil)
		assert.ErrorIs(t, err, domain.ErrSigningFailed)
	})

	t.Run("bad seeds are rejected", func(t *testing.T) {
		_, err := NewLocalSigner("not hex")
		assert.Error(t, err)

		_, err = NewLocalSigner(strings.Repeat("ab", 16)[:30])
		assert.Error(t, err)
	})
}
