package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/aggregator"
	s3blob "github.com/Bonsai515/SolanaTraderNexus-sub003/internal/blob/s3"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/cache/redis"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/config"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/crypto"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/detector"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/executor"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/ledger"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/notify"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/report"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/risk"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/source"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/store/memory"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/store/postgres"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/verifier"
)

// Dependencies bundles every component the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Persistence.
	Store domain.ExecutionStore

	// Optional Redis-backed mirror, bus, and limiter.
	QuoteMirror domain.QuoteCache
	SignalBus   domain.SignalBus
	RateLimiter *redis.RateLimiter

	// Pipeline components. Only the mode-appropriate subset is non-nil.
	Aggregator  *aggregator.PriceAggregator
	Detector    *detector.Detector
	Governor    *risk.Governor
	Verifier    *verifier.Verifier
	Coordinator *executor.Coordinator

	// Ledger and signing.
	Ledger *ledger.RPCClient
	Signer domain.Signer

	// StreamSources need their Run loops started by the mode.
	StreamSources []*source.StreamSource

	// Reporting.
	Archiver *report.Archiver
	Notifier *notify.Notifier

	// Watched pairs, parsed once from config.
	Pairs []domain.Pair
}

// needsPostgres returns true for modes that require a database connection.
// Monitor mode detects without executing and keeps its ledger in memory.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "server":
		return true
	default:
		return false
	}
}

// needsQuotes returns true for modes that poll venues.
func needsQuotes(mode string) bool {
	switch mode {
	case "trade", "monitor":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	mode := strings.ToLower(cfg.Mode)
	deps := &Dependencies{}

	for _, raw := range cfg.Engine.Pairs {
		pair, err := domain.ParsePair(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("wire: pair %q: %w", raw, err)
		}
		deps.Pairs = append(deps.Pairs, pair)
	}

	// --- Execution store ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Store = postgres.NewExecutionStore(pgClient.Pool())
	} else {
		deps.Store = memory.NewExecutionStore()
	}

	// --- Redis (quote mirror, signal bus, rate limiter) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteMirror = redis.NewQuoteCache(redisClient, cfg.Aggregator.MirrorTTL.Duration)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Quote pipeline ---
	if needsQuotes(mode) {
		pairStaleness := make(map[string]time.Duration, len(cfg.Aggregator.PairStaleness))
		for k, v := range cfg.Aggregator.PairStaleness {
			pairStaleness[k] = v.Duration
		}

		deps.Aggregator = aggregator.New(aggregator.Config{
			WorkerCap:        int(cfg.Aggregator.WorkerCap),
			CallTimeout:      cfg.Aggregator.CallTimeout.Duration,
			DefaultStaleness: cfg.Aggregator.DefaultStaleness.Duration,
			PairStaleness:    pairStaleness,
			SweepInterval:    cfg.Aggregator.SweepInterval.Duration,
		}, logger)
		if deps.QuoteMirror != nil {
			deps.Aggregator.SetMirror(deps.QuoteMirror)
		}
		if deps.SignalBus != nil {
			deps.Aggregator.SetBus(deps.SignalBus)
		}

		for _, v := range cfg.Venues {
			switch v.Kind {
			case "rest":
				src, err := source.NewHTTPSource(source.HTTPConfig{
					Name:    v.Name,
					BaseURL: v.URL,
					FeeBps:  v.FeeBps,
					Timeout: cfg.Aggregator.CallTimeout.Duration,
				})
				if err != nil {
					cleanup()
					return nil, nil, fmt.Errorf("wire: venue %s: %w", v.Name, err)
				}
				deps.Aggregator.RegisterSource(src)
			case "ws":
				src, err := source.NewStreamSource(source.StreamConfig{
					Name:   v.Name,
					WSURL:  v.URL,
					Pairs:  deps.Pairs,
					FeeBps: v.FeeBps,
				}, logger)
				if err != nil {
					cleanup()
					return nil, nil, fmt.Errorf("wire: venue %s: %w", v.Name, err)
				}
				deps.Aggregator.RegisterSource(src)
				deps.StreamSources = append(deps.StreamSources, src)
			default:
				cleanup()
				return nil, nil, fmt.Errorf("wire: venue %s: unknown kind %q", v.Name, v.Kind)
			}
		}

		det, err := detector.New(detector.Config{
			MinProfitThresholdPct:   cfg.Detector.MinProfitThresholdPct,
			LiquidityUtilizationCap: cfg.Detector.LiquidityUtilizationCap,
			MinTradeAmount:          cfg.Detector.MinTradeAmount,
			MaxTradeAmount:          cfg.Detector.MaxTradeAmount,
			SlippageBaseBps:         cfg.Detector.SlippageBaseBps,
			SlippageSlopeBps:        cfg.Detector.SlippageSlopeBps,
			SlippageCapBps:          cfg.Detector.SlippageCapBps,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: detector: %w", err)
		}
		deps.Detector = det
	}

	// --- Execution pipeline (trade mode only) ---
	if mode == "trade" {
		rpcClient, err := ledger.NewRPCClient(ledger.RPCConfig{
			URL:        cfg.Ledger.RPCURL,
			Commitment: cfg.Ledger.Commitment,
			Timeout:    cfg.Ledger.Timeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: ledger: %w", err)
		}
		deps.Ledger = rpcClient

		signer, err := crypto.NewLocalSignerFromConfig(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer

		gov, err := risk.New(risk.Config{
			MaxDailyTransactions: cfg.Risk.MaxDailyTransactions,
			MaxDailyLossBudget:   cfg.Risk.MaxDailyLossBudget,
			Cooldown:             cfg.Risk.Cooldown.Duration,
			GasBuffer:            cfg.Risk.GasBuffer,
			BalanceAsset:         cfg.Risk.BalanceAsset,
		}, rpcClient, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: risk: %w", err)
		}
		deps.Governor = gov

		deps.Verifier = verifier.New(verifier.Config{
			PollInterval:     cfg.Verifier.PollInterval.Duration,
			MaxPollAttempts:  cfg.Verifier.MaxPollAttempts,
			MinConfirmations: cfg.Verifier.MinConfirmations,
			TransportRetries: cfg.Verifier.TransportRetries,
		}, rpcClient, logger)

		deps.Coordinator = executor.NewCoordinator(executor.Config{
			MaxSubmitRetries:  cfg.Executor.MaxSubmitRetries,
			BackoffBase:       cfg.Executor.BackoffBase.Duration,
			BackoffFactor:     cfg.Executor.BackoffFactor,
			BackoffCap:        cfg.Executor.BackoffCap.Duration,
			VerifyTimeout:     cfg.Executor.VerifyTimeout.Duration,
			FlashLoanVenue:    cfg.Executor.FlashLoanVenue,
			FeePerLegEstimate: cfg.Executor.FeePerLegEstimate,
		}, []domain.Signer{signer}, rpcClient, deps.Verifier, deps.Store, gov, logger)
		if deps.SignalBus != nil {
			deps.Coordinator.SetBus(deps.SignalBus)
		}
		deps.Coordinator.SetNotifier(deps.Notifier)
	}

	// --- S3 archival ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = report.NewArchiver(deps.Store, s3blob.NewWriter(s3Client), logger)
		deps.Archiver.SetNotifier(deps.Notifier)
	}

	return deps, cleanup, nil
}
