package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns Defaults plus the venue and wallet entries trade mode
// requires.
func validConfig() Config {
	cfg := Defaults()
	cfg.Venues = []VenueConfig{
		{Name: "orca", Kind: "rest", URL: "https://orca.example/quote", FeeBps: 30},
		{Name: "raydium", Kind: "ws", URL: "wss://raydium.example/stream", FeeBps: 25},
	}
	cfg.Wallet.PrivateKey = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"
	return cfg
}

func TestValidate(t *testing.T) {
	t.Run("defaults with venues and wallet pass", func(t *testing.T) {
		cfg := validConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("server mode needs no venues or wallet", func(t *testing.T) {
		cfg := Defaults()
		cfg.Mode = "server"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("all problems are reported together", func(t *testing.T) {
		cfg := validConfig()
		cfg.Mode = "turbo"
		cfg.LogLevel = "loud"
		cfg.Detector.MinProfitThresholdPct = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown mode "turbo"`)
		assert.Contains(t, err.Error(), `unknown log_level "loud"`)
		assert.Contains(t, err.Error(), "min_profit_threshold_pct")
	})

	t.Run("trade mode requires a wallet key source", func(t *testing.T) {
		cfg := validConfig()
		cfg.Wallet.PrivateKey = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "wallet")
	})

	t.Run("encrypted key path requires a password", func(t *testing.T) {
		cfg := validConfig()
		cfg.Wallet.PrivateKey = ""
		cfg.Wallet.EncryptedKeyPath = "/keys/signer.json"
		cfg.Wallet.KeyPassword = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "key_password")
	})

	t.Run("quote modes need two venues", func(t *testing.T) {
		cfg := validConfig()
		cfg.Venues = cfg.Venues[:1]

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least two venues")
	})

	t.Run("invalid pair string", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.Pairs = []string{"SOLUSDC"}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid pair "SOLUSDC"`)
	})

	t.Run("duplicate venue names", func(t *testing.T) {
		cfg := validConfig()
		cfg.Venues[1].Name = "orca"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate name")
	})

	t.Run("unknown venue kind", func(t *testing.T) {
		cfg := validConfig()
		cfg.Venues[0].Kind = "grpc"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kind must be rest or ws")
	})

	t.Run("rate limit requires redis", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.RateLimit = 10
		cfg.Redis.Enabled = false

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate_limit requires redis")
	})
}

func TestDurationUnmarshal(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	require.NoError(t, d.UnmarshalText([]byte("2m30s")))
	assert.Equal(t, 2*time.Minute+30*time.Second, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("fortnight")))

	out, err := duration{5 * time.Second}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5s", string(out))
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("file values override defaults", func(t *testing.T) {
		path := writeConfigFile(t, strings.TrimSpace(`
mode = "monitor"
log_level = "debug"

[engine]
pairs = ["SOL/USDC", "ETH/USDC"]
reference_amount = 500.0
cycle_interval = "5s"

[executor]
backoff_base = "100ms"
backoff_factor = 3.0
backoff_cap = "10s"

[[venues]]
name = "orca"
kind = "rest"
url = "https://orca.example/quote"
fee_bps = 30.0

[[venues]]
name = "raydium"
kind = "ws"
url = "wss://raydium.example/stream"
fee_bps = 25.0
`))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "monitor", cfg.Mode)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, []string{"SOL/USDC", "ETH/USDC"}, cfg.Engine.Pairs)
		assert.InDelta(t, 500.0, cfg.Engine.ReferenceAmount, 1e-9)
		assert.Equal(t, 5*time.Second, cfg.Engine.CycleInterval.Duration)
		require.Len(t, cfg.Venues, 2)
		assert.Equal(t, "ws", cfg.Venues[1].Kind)
		assert.Equal(t, 100*time.Millisecond, cfg.Executor.BackoffBase.Duration)
		assert.InDelta(t, 3.0, cfg.Executor.BackoffFactor, 1e-9)
		assert.Equal(t, 10*time.Second, cfg.Executor.BackoffCap.Duration)

		// Untouched sections keep their defaults.
		assert.Equal(t, 10, cfg.Verifier.MaxPollAttempts)
		assert.Equal(t, "confirmed", cfg.Ledger.Commitment)
	})

	t.Run("environment overrides beat the file", func(t *testing.T) {
		path := writeConfigFile(t, strings.TrimSpace(`
mode = "monitor"

[risk]
max_daily_transactions = 100
`))

		t.Setenv("NEXUS_MODE", "server")
		t.Setenv("NEXUS_RISK_MAX_DAILY_TRANSACTIONS", "7")
		t.Setenv("NEXUS_RISK_COOLDOWN", "10s")
		t.Setenv("NEXUS_ENGINE_PAIRS", "SOL/USDC,BONK/SOL")

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "server", cfg.Mode)
		assert.Equal(t, 7, cfg.Risk.MaxDailyTransactions)
		assert.Equal(t, 10*time.Second, cfg.Risk.Cooldown.Duration)
		assert.Equal(t, []string{"SOL/USDC", "BONK/SOL"}, cfg.Engine.Pairs)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.KeyPassword = "hunter2"
	cfg.Postgres.Password = "pgpass"
	cfg.Redis.Password = "redispass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Server.APIKey = "apikey"
	cfg.Notify.TelegramToken = "tg-token"

	red := RedactedConfig(&cfg)

	assert.NotContains(t, red.Wallet.PrivateKey, "4f3edf")
	assert.NotEqual(t, "hunter2", red.Wallet.KeyPassword)
	assert.NotEqual(t, "pgpass", red.Postgres.Password)
	assert.NotEqual(t, "redispass", red.Redis.Password)
	assert.NotEqual(t, "s3secret", red.S3.SecretKey)
	assert.NotEqual(t, "apikey", red.Server.APIKey)
	assert.NotEqual(t, "tg-token", red.Notify.TelegramToken)

	// The original is untouched.
	assert.Equal(t, "hunter2", cfg.Wallet.KeyPassword)
}
