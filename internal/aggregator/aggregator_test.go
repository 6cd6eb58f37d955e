package aggregator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

var solUSDC = domain.Pair{Base: "SOL", Quote: "USDC"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource returns a scripted quote or error and counts calls.
type fakeSource struct {
	name  string
	quote domain.Quote
	err   error
	delay time.Duration

	mu    sync.Mutex
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) GetQuote(ctx context.Context, pair domain.Pair, referenceAmount float64) (domain.Quote, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return domain.Quote{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return domain.Quote{}, f.err
	}
	return f.quote, nil
}

func goodQuote(venue string, price float64, observed time.Time) domain.Quote {
	return domain.Quote{
		Pair:               solUSDC,
		Venue:              venue,
		Price:              price,
		AvailableLiquidity: 10000,
		FeeBps:             30,
		ObservedAt:         observed,
		Confidence:         0.9,
	}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("no sources registered is an error", func(t *testing.T) {
		a := New(Config{}, discardLogger())
		assert.Error(t, a.Refresh(ctx, solUSDC, 100))
	})

	t.Run("stores quotes from every healthy source", func(t *testing.T) {
		a := New(Config{}, discardLogger())
		a.RegisterSource(&fakeSource{name: "orca", quote: goodQuote("orca", 100, now)})
		a.RegisterSource(&fakeSource{name: "raydium", quote: goodQuote("raydium", 101, now)})

		require.NoError(t, a.Refresh(ctx, solUSDC, 100))
		assert.Len(t, a.LatestQuotes(solUSDC), 2)
	})

	t.Run("failing source does not block the others", func(t *testing.T) {
		a := New(Config{}, discardLogger())
		a.RegisterSource(&fakeSource{name: "orca", quote: goodQuote("orca", 100, now)})
		a.RegisterSource(&fakeSource{name: "raydium", err: domain.ErrSourceUnavailable})

		require.NoError(t, a.Refresh(ctx, solUSDC, 100))

		quotes := a.LatestQuotes(solUSDC)
		require.Len(t, quotes, 1)
		assert.Equal(t, "orca", quotes[0].Venue)
	})

	t.Run("slow source is cut off by the call timeout", func(t *testing.T) {
		a := New(Config{CallTimeout: 20 * time.Millisecond}, discardLogger())
		a.RegisterSource(&fakeSource{name: "orca", quote: goodQuote("orca", 100, now)})
		a.RegisterSource(&fakeSource{name: "slow", quote: goodQuote("slow", 101, now), delay: time.Second})

		start := time.Now()
		require.NoError(t, a.Refresh(ctx, solUSDC, 100))
		assert.Less(t, time.Since(start), 500*time.Millisecond)

		quotes := a.LatestQuotes(solUSDC)
		require.Len(t, quotes, 1)
		assert.Equal(t, "orca", quotes[0].Venue)
	})

	t.Run("malformed quotes are rejected", func(t *testing.T) {
		a := New(Config{}, discardLogger())
		bad := goodQuote("orca", -5, now)
		a.RegisterSource(&fakeSource{name: "orca", quote: bad})

		require.NoError(t, a.Refresh(ctx, solUSDC, 100))
		assert.Empty(t, a.LatestQuotes(solUSDC))
	})

	t.Run("fills venue, pair, timestamp, and confidence defaults", func(t *testing.T) {
		a := New(Config{}, discardLogger())
		a.RegisterSource(&fakeSource{name: "orca", quote: domain.Quote{
			Price:              100,
			AvailableLiquidity: 10000,
			FeeBps:             30,
		}})

		require.NoError(t, a.Refresh(ctx, solUSDC, 100))

		quotes := a.LatestQuotes(solUSDC)
		require.Len(t, quotes, 1)
		assert.Equal(t, "orca", quotes[0].Venue)
		assert.Equal(t, solUSDC, quotes[0].Pair)
		assert.False(t, quotes[0].ObservedAt.IsZero())
		assert.InDelta(t, defaultConfidence, quotes[0].Confidence, 1e-9)
	})

	t.Run("newer quote supersedes older for the same venue", func(t *testing.T) {
		a := New(Config{}, discardLogger())
		src := &fakeSource{name: "orca", quote: goodQuote("orca", 100, now)}
		a.RegisterSource(src)

		require.NoError(t, a.Refresh(ctx, solUSDC, 100))

		src.quote = goodQuote("orca", 105, now.Add(time.Second))
		require.NoError(t, a.Refresh(ctx, solUSDC, 100))

		quotes := a.LatestQuotes(solUSDC)
		require.Len(t, quotes, 1)
		assert.InDelta(t, 105.0, quotes[0].Price, 1e-9)
	})

	t.Run("older quote never overwrites a newer one", func(t *testing.T) {
		a := New(Config{}, discardLogger())
		src := &fakeSource{name: "orca", quote: goodQuote("orca", 105, now)}
		a.RegisterSource(src)

		require.NoError(t, a.Refresh(ctx, solUSDC, 100))

		src.quote = goodQuote("orca", 95, now.Add(-time.Minute))
		require.NoError(t, a.Refresh(ctx, solUSDC, 100))

		quotes := a.LatestQuotes(solUSDC)
		require.Len(t, quotes, 1)
		assert.InDelta(t, 105.0, quotes[0].Price, 1e-9)
	})
}

func TestStaleness(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stale quotes are excluded from snapshots", func(t *testing.T) {
		a := New(Config{DefaultStaleness: 30 * time.Second}, discardLogger())
		a.now = func() time.Time { return base }
		a.RegisterSource(&fakeSource{name: "orca", quote: goodQuote("orca", 100, base)})
		require.NoError(t, a.Refresh(ctx, solUSDC, 100))

		require.Len(t, a.LatestQuotes(solUSDC), 1)

		a.now = func() time.Time { return base.Add(31 * time.Second) }
		assert.Empty(t, a.LatestQuotes(solUSDC))
	})

	t.Run("per-pair override beats the default window", func(t *testing.T) {
		a := New(Config{
			DefaultStaleness: 30 * time.Second,
			PairStaleness:    map[string]time.Duration{"SOL/USDC": 5 * time.Second},
		}, discardLogger())
		a.now = func() time.Time { return base }
		a.RegisterSource(&fakeSource{name: "orca", quote: goodQuote("orca", 100, base)})
		require.NoError(t, a.Refresh(ctx, solUSDC, 100))

		a.now = func() time.Time { return base.Add(10 * time.Second) }
		assert.Empty(t, a.LatestQuotes(solUSDC))
	})
}

func TestPairCacheSweep(t *testing.T) {
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	c := newPairCache()

	c.put(goodQuote("orca", 100, base))
	c.put(goodQuote("raydium", 101, base.Add(25*time.Second)))

	windowFor := func(string) time.Duration { return 30 * time.Second }

	removed := c.sweep(base.Add(40*time.Second), windowFor)
	assert.Equal(t, 1, removed)

	quotes := c.snapshot(solUSDC, base.Add(40*time.Second), 30*time.Second)
	require.Len(t, quotes, 1)
	assert.Equal(t, "raydium", quotes[0].Venue)

	removed = c.sweep(base.Add(2*time.Minute), windowFor)
	assert.Equal(t, 1, removed)
	assert.Empty(t, c.snapshot(solUSDC, base.Add(2*time.Minute), 30*time.Second))
}
