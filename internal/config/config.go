// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by NEXUS_* environment variables.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Venues     []VenueConfig    `toml:"venues"`
	Aggregator AggregatorConfig `toml:"aggregator"`
	Detector   DetectorConfig   `toml:"detector"`
	Risk       RiskConfig       `toml:"risk"`
	Executor   ExecutorConfig   `toml:"executor"`
	Verifier   VerifierConfig   `toml:"verifier"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Wallet     WalletConfig     `toml:"wallet"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// EngineConfig holds the trade-loop parameters.
type EngineConfig struct {
	// Pairs lists the trading pairs to watch, e.g. ["SOL/USDC"].
	Pairs []string `toml:"pairs"`

	// ReferenceAmount is the notional size quotes are requested at.
	ReferenceAmount float64 `toml:"reference_amount"`

	// CycleInterval is the delay between detection cycles.
	CycleInterval duration `toml:"cycle_interval"`
}

// VenueConfig describes one quote source. Kind selects the transport:
// "rest" polls an HTTP quote endpoint, "ws" consumes a streamed book.
type VenueConfig struct {
	Name   string  `toml:"name"`
	Kind   string  `toml:"kind"`
	URL    string  `toml:"url"`
	FeeBps float64 `toml:"fee_bps"`
}

// AggregatorConfig holds quote polling and staleness parameters.
type AggregatorConfig struct {
	WorkerCap        int64               `toml:"worker_cap"`
	CallTimeout      duration            `toml:"call_timeout"`
	DefaultStaleness duration            `toml:"default_staleness"`
	PairStaleness    map[string]duration `toml:"pair_staleness"`
	SweepInterval    duration            `toml:"sweep_interval"`
	MirrorTTL        duration            `toml:"mirror_ttl"`
}

// DetectorConfig holds opportunity detection thresholds.
type DetectorConfig struct {
	MinProfitThresholdPct   float64 `toml:"min_profit_threshold_pct"`
	LiquidityUtilizationCap float64 `toml:"liquidity_utilization_cap"`
	MinTradeAmount          float64 `toml:"min_trade_amount"`
	MaxTradeAmount          float64 `toml:"max_trade_amount"`
	SlippageBaseBps         float64 `toml:"slippage_base_bps"`
	SlippageSlopeBps        float64 `toml:"slippage_slope_bps"`
	SlippageCapBps          float64 `toml:"slippage_cap_bps"`
}

// RiskConfig holds the per-signer risk limits.
type RiskConfig struct {
	MaxDailyTransactions int      `toml:"max_daily_transactions"`
	MaxDailyLossBudget   float64  `toml:"max_daily_loss_budget"`
	Cooldown             duration `toml:"cooldown"`
	GasBuffer            float64  `toml:"gas_buffer"`
	BalanceAsset         string   `toml:"balance_asset"`
}

// ExecutorConfig holds submission retry and rollback parameters.
type ExecutorConfig struct {
	MaxSubmitRetries  int      `toml:"max_submit_retries"`
	BackoffBase       duration `toml:"backoff_base"`
	BackoffFactor     float64  `toml:"backoff_factor"`
	BackoffCap        duration `toml:"backoff_cap"`
	VerifyTimeout     duration `toml:"verify_timeout"`
	FlashLoanVenue    string   `toml:"flash_loan_venue"`
	FeePerLegEstimate float64  `toml:"fee_per_leg_estimate"`
	MaxSlippageBps    float64  `toml:"max_slippage_bps"`
	Deadline          duration `toml:"deadline"`
}

// VerifierConfig holds finality polling parameters.
type VerifierConfig struct {
	PollInterval     duration `toml:"poll_interval"`
	MaxPollAttempts  int      `toml:"max_poll_attempts"`
	MinConfirmations int      `toml:"min_confirmations"`
	TransportRetries int      `toml:"transport_retries"`
}

// LedgerConfig holds the target ledger RPC parameters.
type LedgerConfig struct {
	RPCURL     string   `toml:"rpc_url"`
	Commitment string   `toml:"commitment"`
	Timeout    duration `toml:"timeout"`
}

// WalletConfig holds the signing key source.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for execution
// archives.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP reporting server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Pairs:           []string{"SOL/USDC"},
			ReferenceAmount: 100.0,
			CycleInterval:   duration{2 * time.Second},
		},
		Aggregator: AggregatorConfig{
			WorkerCap:        16,
			CallTimeout:      duration{5 * time.Second},
			DefaultStaleness: duration{30 * time.Second},
			SweepInterval:    duration{10 * time.Second},
			MirrorTTL:        duration{time.Minute},
		},
		Detector: DetectorConfig{
			MinProfitThresholdPct:   0.5,
			LiquidityUtilizationCap: 0.05,
			MinTradeAmount:          1.0,
			MaxTradeAmount:          1000.0,
			SlippageBaseBps:         5.0,
			SlippageSlopeBps:        100.0,
			SlippageCapBps:          50.0,
		},
		Risk: RiskConfig{
			MaxDailyTransactions: 100,
			MaxDailyLossBudget:   50.0,
			Cooldown:             duration{3 * time.Second},
			GasBuffer:            0.05,
			BalanceAsset:         "SOL",
		},
		Executor: ExecutorConfig{
			MaxSubmitRetries:  3,
			BackoffBase:       duration{250 * time.Millisecond},
			BackoffFactor:     2,
			BackoffCap:        duration{3 * time.Second},
			VerifyTimeout:     duration{60 * time.Second},
			FeePerLegEstimate: 0.001,
			MaxSlippageBps:    50.0,
			Deadline:          duration{2 * time.Minute},
		},
		Verifier: VerifierConfig{
			PollInterval:     duration{2 * time.Second},
			MaxPollAttempts:  10,
			MinConfirmations: 1,
			TransportRetries: 3,
		},
		Ledger: LedgerConfig{
			RPCURL:     "https://api.mainnet-beta.solana.com",
			Commitment: "confirmed",
			Timeout:    duration{30 * time.Second},
		},
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:         false,
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "nexus-archives",
			UseSSL:          false,
			ForcePathStyle:  true,
			ArchiveInterval: duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   0,
			RateWindow:  duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{
				"execution_failed",
				"execution_timed_out",
				"execution_rolled_back",
				"daily_summary",
			},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validVenueKinds enumerates the accepted values for VenueConfig.Kind.
var validVenueKinds = map[string]bool{
	"rest": true,
	"ws":   true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine — pairs are required for trade and monitor modes.
	needsQuotes := c.Mode == "trade" || c.Mode == "monitor"
	if needsQuotes {
		if len(c.Engine.Pairs) == 0 {
			errs = append(errs, "engine: at least one pair is required for mode "+c.Mode)
		}
		for _, raw := range c.Engine.Pairs {
			if _, err := domain.ParsePair(raw); err != nil {
				errs = append(errs, fmt.Sprintf("engine: invalid pair %q", raw))
			}
		}
		if c.Engine.ReferenceAmount <= 0 {
			errs = append(errs, "engine: reference_amount must be > 0")
		}
		if len(c.Venues) < 2 {
			errs = append(errs, fmt.Sprintf("venues: at least two venues are required, got %d", len(c.Venues)))
		}
	}

	// Venues
	seen := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			errs = append(errs, fmt.Sprintf("venues[%d]: name must not be empty", i))
			continue
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("venues: duplicate name %q", v.Name))
		}
		seen[v.Name] = true
		if !validVenueKinds[v.Kind] {
			errs = append(errs, fmt.Sprintf("venues[%d] %s: kind must be rest or ws, got %q", i, v.Name, v.Kind))
		}
		if v.URL == "" {
			errs = append(errs, fmt.Sprintf("venues[%d] %s: url must not be empty", i, v.Name))
		}
		if v.FeeBps < 0 {
			errs = append(errs, fmt.Sprintf("venues[%d] %s: fee_bps must be >= 0", i, v.Name))
		}
	}

	// Wallet — required for trade mode.
	if c.Mode == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}

	// Detector
	if needsQuotes {
		if c.Detector.MinProfitThresholdPct <= 0 {
			errs = append(errs, "detector: min_profit_threshold_pct must be > 0")
		}
		if c.Detector.LiquidityUtilizationCap <= 0 || c.Detector.LiquidityUtilizationCap > 1 {
			errs = append(errs, "detector: liquidity_utilization_cap must be in (0, 1]")
		}
		if c.Detector.MinTradeAmount <= 0 {
			errs = append(errs, "detector: min_trade_amount must be > 0")
		}
		if c.Detector.MaxTradeAmount < c.Detector.MinTradeAmount {
			errs = append(errs, "detector: max_trade_amount must be >= min_trade_amount")
		}
	}

	// Risk
	if c.Mode == "trade" {
		if c.Risk.MaxDailyTransactions < 1 {
			errs = append(errs, "risk: max_daily_transactions must be >= 1")
		}
		if c.Risk.MaxDailyLossBudget <= 0 {
			errs = append(errs, "risk: max_daily_loss_budget must be > 0")
		}
		if c.Risk.GasBuffer < 0 {
			errs = append(errs, "risk: gas_buffer must be >= 0")
		}

		// Executor
		if c.Executor.MaxSubmitRetries < 1 {
			errs = append(errs, "executor: max_submit_retries must be >= 1")
		}
		if c.Executor.FeePerLegEstimate < 0 {
			errs = append(errs, "executor: fee_per_leg_estimate must be >= 0")
		}

		// Verifier
		if c.Verifier.MaxPollAttempts < 1 {
			errs = append(errs, "verifier: max_poll_attempts must be >= 1")
		}
		if c.Verifier.MinConfirmations < 1 {
			errs = append(errs, "verifier: min_confirmations must be >= 1")
		}

		// Ledger
		if c.Ledger.RPCURL == "" {
			errs = append(errs, "ledger: rpc_url must not be empty")
		}
	}

	// Aggregator
	if c.Aggregator.WorkerCap < 1 {
		errs = append(errs, "aggregator: worker_cap must be >= 1")
	}
	if c.Aggregator.DefaultStaleness.Duration <= 0 {
		errs = append(errs, "aggregator: default_staleness must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit > 0 && !c.Redis.Enabled {
			errs = append(errs, "server: rate_limit requires redis to be enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
