// Package aggregator polls registered quote sources per tracked pair and
// maintains a bounded, staleness-aware cache of the latest quote per
// (pair, venue) key.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// defaultConfidence is assigned to quotes whose source reports no confidence.
const defaultConfidence = 0.5

// Config holds the aggregator's tunable parameters.
type Config struct {
	// WorkerCap bounds concurrent source calls across all pairs.
	WorkerCap int
	// CallTimeout is the per-source-call timeout.
	CallTimeout time.Duration
	// DefaultStaleness is the staleness window applied to pairs without an
	// explicit override.
	DefaultStaleness time.Duration
	// PairStaleness overrides the window per pair, keyed by Pair.String().
	// High-priority pairs typically get a much shorter window.
	PairStaleness map[string]time.Duration
	// SweepInterval controls how often stale entries are physically removed.
	SweepInterval time.Duration
}

// normalize fills unset fields with the documented defaults.
func (c Config) normalize() Config {
	if c.WorkerCap <= 0 {
		c.WorkerCap = 16
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	if c.DefaultStaleness <= 0 {
		c.DefaultStaleness = 30 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	return c
}

// PriceAggregator owns the pair cache. Refresh fans out one bounded call per
// registered source; a source that errors, times out, or returns malformed
// data contributes no quote for that cycle and never blocks the others.
type PriceAggregator struct {
	cfg   Config
	cache *pairCache
	sem   *semaphore.Weighted

	mu      sync.RWMutex
	sources []domain.QuoteSource

	// mirror and bus are optional; when set, accepted quotes are copied out
	// for external readers. Mirror failures are logged, never propagated.
	mirror domain.QuoteCache
	bus    domain.SignalBus

	now    func() time.Time
	logger *slog.Logger
}

// New creates a PriceAggregator with the given config.
func New(cfg Config, logger *slog.Logger) *PriceAggregator {
	cfg = cfg.normalize()
	return &PriceAggregator{
		cfg:    cfg,
		cache:  newPairCache(),
		sem:    semaphore.NewWeighted(int64(cfg.WorkerCap)),
		now:    time.Now,
		logger: logger.With(slog.String("component", "price_aggregator")),
	}
}

// SetMirror mirrors accepted quotes into an external quote cache.
func (a *PriceAggregator) SetMirror(mirror domain.QuoteCache) {
	a.mirror = mirror
}

// SetBus publishes accepted quotes to the "quotes" channel.
func (a *PriceAggregator) SetBus(bus domain.SignalBus) {
	a.bus = bus
}

// RegisterSource adds a quote source. Sources are registered at startup; the
// set is fixed while refreshes run.
func (a *PriceAggregator) RegisterSource(src domain.QuoteSource) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = append(a.sources, src)
}

// Sources returns the registered source names.
func (a *PriceAggregator) Sources() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.sources))
	for _, s := range a.sources {
		names = append(names, s.Name())
	}
	return names
}

// Refresh polls every registered source for the pair once. Source-level
// failures are absorbed: they surface only as absence of that venue's quote.
// referenceAmount is the trade size hint passed to each source.
func (a *PriceAggregator) Refresh(ctx context.Context, pair domain.Pair, referenceAmount float64) error {
	a.mu.RLock()
	sources := make([]domain.QuoteSource, len(a.sources))
	copy(sources, a.sources)
	a.mu.RUnlock()

	if len(sources) == 0 {
		return fmt.Errorf("aggregator: no quote sources registered")
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		if err := a.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return fmt.Errorf("aggregator: refresh %s: %w", pair, err)
		}
		wg.Add(1)
		go func(src domain.QuoteSource) {
			defer wg.Done()
			defer a.sem.Release(1)
			a.pollSource(ctx, src, pair, referenceAmount)
		}(src)
	}
	wg.Wait()
	return ctx.Err()
}

// pollSource fetches one quote with the per-call timeout and stores it if it
// passes validation.
func (a *PriceAggregator) pollSource(ctx context.Context, src domain.QuoteSource, pair domain.Pair, referenceAmount float64) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	q, err := src.GetQuote(callCtx, pair, referenceAmount)
	if err != nil {
		a.logger.WarnContext(ctx, "quote source unavailable",
			slog.String("source", src.Name()),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if q.Venue == "" {
		q.Venue = src.Name()
	}
	if q.Pair.IsZero() {
		q.Pair = pair
	}
	if q.ObservedAt.IsZero() {
		q.ObservedAt = a.now()
	}
	if q.Confidence == 0 {
		q.Confidence = defaultConfidence
	}
	if err := q.Validate(); err != nil {
		a.logger.WarnContext(ctx, "rejected malformed quote",
			slog.String("source", src.Name()),
			slog.String("pair", pair.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	if !a.cache.put(q) {
		return
	}
	a.publish(ctx, q)
}

// publish mirrors the accepted quote to the external cache and bus,
// best-effort.
func (a *PriceAggregator) publish(ctx context.Context, q domain.Quote) {
	if a.mirror != nil {
		if err := a.mirror.SetQuote(ctx, q); err != nil {
			a.logger.WarnContext(ctx, "quote mirror failed",
				slog.String("pair", q.Pair.String()),
				slog.String("venue", q.Venue),
				slog.String("error", err.Error()),
			)
		}
	}
	if a.bus != nil {
		evt, _ := json.Marshal(map[string]any{
			"event":       "quote",
			"pair":        q.Pair.String(),
			"venue":       q.Venue,
			"price":       q.Price,
			"liquidity":   q.AvailableLiquidity,
			"fee_bps":     q.FeeBps,
			"observed_at": q.ObservedAt.Format(time.RFC3339Nano),
		})
		if err := a.bus.Publish(ctx, "quotes", evt); err != nil {
			a.logger.WarnContext(ctx, "quote publish failed",
				slog.String("pair", q.Pair.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// LatestQuotes returns a copy of the non-stale quotes for the pair. An empty
// result means "no tradable data", never "price is zero".
func (a *PriceAggregator) LatestQuotes(pair domain.Pair) []domain.Quote {
	return a.cache.snapshot(pair, a.now(), a.stalenessFor(pair.String()))
}

func (a *PriceAggregator) stalenessFor(pairKey string) time.Duration {
	if w, ok := a.cfg.PairStaleness[pairKey]; ok && w > 0 {
		return w
	}
	return a.cfg.DefaultStaleness
}

// RunSweeper periodically deletes entries that aged out of their staleness
// window. It blocks until ctx is cancelled.
func (a *PriceAggregator) RunSweeper(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed := a.cache.sweep(a.now(), a.stalenessFor)
			if removed > 0 {
				a.logger.Debug("swept stale quotes", slog.Int("removed", removed))
			}
		}
	}
}
