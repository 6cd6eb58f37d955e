package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NEXUS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NEXUS_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setStringSlice(&cfg.Engine.Pairs, "NEXUS_ENGINE_PAIRS")
	setFloat64(&cfg.Engine.ReferenceAmount, "NEXUS_ENGINE_REFERENCE_AMOUNT")
	setDuration(&cfg.Engine.CycleInterval, "NEXUS_ENGINE_CYCLE_INTERVAL")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "NEXUS_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "NEXUS_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "NEXUS_WALLET_KEY_PASSWORD")

	// ── Aggregator ──
	setInt64(&cfg.Aggregator.WorkerCap, "NEXUS_AGGREGATOR_WORKER_CAP")
	setDuration(&cfg.Aggregator.CallTimeout, "NEXUS_AGGREGATOR_CALL_TIMEOUT")
	setDuration(&cfg.Aggregator.DefaultStaleness, "NEXUS_AGGREGATOR_DEFAULT_STALENESS")
	setDuration(&cfg.Aggregator.SweepInterval, "NEXUS_AGGREGATOR_SWEEP_INTERVAL")

	// ── Detector ──
	setFloat64(&cfg.Detector.MinProfitThresholdPct, "NEXUS_DETECTOR_MIN_PROFIT_THRESHOLD_PCT")
	setFloat64(&cfg.Detector.LiquidityUtilizationCap, "NEXUS_DETECTOR_LIQUIDITY_UTILIZATION_CAP")
	setFloat64(&cfg.Detector.MinTradeAmount, "NEXUS_DETECTOR_MIN_TRADE_AMOUNT")
	setFloat64(&cfg.Detector.MaxTradeAmount, "NEXUS_DETECTOR_MAX_TRADE_AMOUNT")

	// ── Risk ──
	setInt(&cfg.Risk.MaxDailyTransactions, "NEXUS_RISK_MAX_DAILY_TRANSACTIONS")
	setFloat64(&cfg.Risk.MaxDailyLossBudget, "NEXUS_RISK_MAX_DAILY_LOSS_BUDGET")
	setDuration(&cfg.Risk.Cooldown, "NEXUS_RISK_COOLDOWN")
	setFloat64(&cfg.Risk.GasBuffer, "NEXUS_RISK_GAS_BUFFER")
	setStr(&cfg.Risk.BalanceAsset, "NEXUS_RISK_BALANCE_ASSET")

	// ── Executor ──
	setInt(&cfg.Executor.MaxSubmitRetries, "NEXUS_EXECUTOR_MAX_SUBMIT_RETRIES")
	setDuration(&cfg.Executor.BackoffBase, "NEXUS_EXECUTOR_BACKOFF_BASE")
	setFloat64(&cfg.Executor.BackoffFactor, "NEXUS_EXECUTOR_BACKOFF_FACTOR")
	setDuration(&cfg.Executor.BackoffCap, "NEXUS_EXECUTOR_BACKOFF_CAP")
	setDuration(&cfg.Executor.VerifyTimeout, "NEXUS_EXECUTOR_VERIFY_TIMEOUT")
	setStr(&cfg.Executor.FlashLoanVenue, "NEXUS_EXECUTOR_FLASH_LOAN_VENUE")
	setFloat64(&cfg.Executor.FeePerLegEstimate, "NEXUS_EXECUTOR_FEE_PER_LEG_ESTIMATE")
	setFloat64(&cfg.Executor.MaxSlippageBps, "NEXUS_EXECUTOR_MAX_SLIPPAGE_BPS")
	setDuration(&cfg.Executor.Deadline, "NEXUS_EXECUTOR_DEADLINE")

	// ── Verifier ──
	setDuration(&cfg.Verifier.PollInterval, "NEXUS_VERIFIER_POLL_INTERVAL")
	setInt(&cfg.Verifier.MaxPollAttempts, "NEXUS_VERIFIER_MAX_POLL_ATTEMPTS")
	setInt(&cfg.Verifier.MinConfirmations, "NEXUS_VERIFIER_MIN_CONFIRMATIONS")
	setInt(&cfg.Verifier.TransportRetries, "NEXUS_VERIFIER_TRANSPORT_RETRIES")

	// ── Ledger ──
	setStr(&cfg.Ledger.RPCURL, "NEXUS_LEDGER_RPC_URL")
	setStr(&cfg.Ledger.Commitment, "NEXUS_LEDGER_COMMITMENT")
	setDuration(&cfg.Ledger.Timeout, "NEXUS_LEDGER_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "NEXUS_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "NEXUS_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NEXUS_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NEXUS_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NEXUS_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NEXUS_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NEXUS_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NEXUS_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NEXUS_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NEXUS_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "NEXUS_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "NEXUS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NEXUS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NEXUS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NEXUS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NEXUS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NEXUS_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "NEXUS_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "NEXUS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NEXUS_S3_REGION")
	setStr(&cfg.S3.Bucket, "NEXUS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NEXUS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NEXUS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NEXUS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NEXUS_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "NEXUS_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "NEXUS_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "NEXUS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "NEXUS_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "NEXUS_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "NEXUS_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "NEXUS_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NEXUS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NEXUS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NEXUS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NEXUS_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "NEXUS_MODE")
	setStr(&cfg.LogLevel, "NEXUS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
