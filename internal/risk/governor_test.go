package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

const testSigner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

// fakeBalances returns a fixed balance or error for every query.
type fakeBalances struct {
	balance float64
	err     error
}

func (f *fakeBalances) Balance(ctx context.Context, signer, asset string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.balance, nil
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		Pair:         domain.Pair{Base: "SOL", Quote: "USDC"},
		BuyVenue:     "orca",
		SellVenue:    "raydium",
		NetProfitPct: 1.2,
	}
}

func newTestGovernor(t *testing.T, cfg Config, balances domain.BalanceProvider) *Governor {
	t.Helper()
	if cfg.MaxDailyTransactions == 0 {
		cfg.MaxDailyTransactions = 10
	}
	if cfg.MaxDailyLossBudget == 0 {
		cfg.MaxDailyLossBudget = 100
	}
	g, err := New(cfg, balances, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return g
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(Config{MaxDailyTransactions: 0, MaxDailyLossBudget: 100}, &fakeBalances{}, logger)
	assert.Error(t, err)

	_, err = New(Config{MaxDailyTransactions: 10, MaxDailyLossBudget: 0}, &fakeBalances{}, logger)
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("approves a funded signer with no history", func(t *testing.T) {
		g := newTestGovernor(t, Config{GasBuffer: 0.05}, &fakeBalances{balance: 1000})
		dec := g.Authorize(ctx, testSigner, testOpportunity(), 100)
		assert.True(t, dec.Approved)
	})

	t.Run("denies during cooldown", func(t *testing.T) {
		g := newTestGovernor(t, Config{Cooldown: 3 * time.Second}, &fakeBalances{balance: 1000})
		base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		g.now = func() time.Time { return base }

		g.BeginAttempt(testSigner)

		g.now = func() time.Time { return base.Add(time.Second) }
		dec := g.Authorize(ctx, testSigner, testOpportunity(), 100)
		assert.False(t, dec.Approved)
		assert.Contains(t, dec.Reason, "cooldown")

		g.now = func() time.Time { return base.Add(4 * time.Second) }
		dec = g.Authorize(ctx, testSigner, testOpportunity(), 100)
		assert.True(t, dec.Approved)
	})

	t.Run("cooldown runs from attempt start regardless of outcome", func(t *testing.T) {
		g := newTestGovernor(t, Config{Cooldown: 3 * time.Second}, &fakeBalances{balance: 1000})
		base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
		g.now = func() time.Time { return base }

		g.BeginAttempt(testSigner)
		loss := -2.5
		g.RecordOutcome(domain.ExecutionRecord{
			Signer:         testSigner,
			Status:         domain.ExecFailed,
			RealizedProfit: &loss,
		})

		g.now = func() time.Time { return base.Add(2 * time.Second) }
		dec := g.Authorize(ctx, testSigner, testOpportunity(), 100)
		assert.False(t, dec.Approved)
		assert.Contains(t, dec.Reason, "cooldown")
	})

	t.Run("denies at the daily transaction cap", func(t *testing.T) {
		g := newTestGovernor(t, Config{MaxDailyTransactions: 2}, &fakeBalances{balance: 1000})

		for i := 0; i < 2; i++ {
			g.RecordOutcome(domain.ExecutionRecord{Signer: testSigner, Status: domain.ExecConfirmed})
		}

		dec := g.Authorize(ctx, testSigner, testOpportunity(), 100)
		assert.False(t, dec.Approved)
		assert.Contains(t, dec.Reason, "transaction cap")
	})

	t.Run("denies when the loss budget is exhausted", func(t *testing.T) {
		g := newTestGovernor(t, Config{MaxDailyLossBudget: 5}, &fakeBalances{balance: 1000})

		loss := -6.0
		g.RecordOutcome(domain.ExecutionRecord{
			Signer:         testSigner,
			Status:         domain.ExecRolledBack,
			RealizedProfit: &loss,
		})

		dec := g.Authorize(ctx, testSigner, testOpportunity(), 100)
		assert.False(t, dec.Approved)
		assert.Contains(t, dec.Reason, "loss budget")
	})

	t.Run("denies when balance is unavailable", func(t *testing.T) {
		g := newTestGovernor(t, Config{}, &fakeBalances{err: errors.New("rpc down")})
		dec := g.Authorize(ctx, testSigner, testOpportunity(), 100)
		assert.False(t, dec.Approved)
		assert.Equal(t, "balance unavailable", dec.Reason)
	})

	t.Run("denies when balance cannot cover size plus gas buffer", func(t *testing.T) {
		g := newTestGovernor(t, Config{GasBuffer: 1}, &fakeBalances{balance: 100.5})
		dec := g.Authorize(ctx, testSigner, testOpportunity(), 100)
		assert.False(t, dec.Approved)
		assert.Contains(t, dec.Reason, "insufficient balance")
	})

	t.Run("authorize alone never mutates counters", func(t *testing.T) {
		g := newTestGovernor(t, Config{}, &fakeBalances{balance: 1000})
		for i := 0; i < 5; i++ {
			g.Authorize(ctx, testSigner, testOpportunity(), 100)
		}
		assert.Equal(t, 0, g.State(testSigner).ExecutionsToday)
	})
}

func TestRecordOutcome(t *testing.T) {
	t.Run("risk denials are not counted", func(t *testing.T) {
		g := newTestGovernor(t, Config{}, &fakeBalances{balance: 1000})
		g.RecordOutcome(domain.ExecutionRecord{Signer: testSigner, Status: domain.ExecRiskDenied})
		assert.Equal(t, 0, g.State(testSigner).ExecutionsToday)
	})

	t.Run("timed out counts the attempt but not the loss", func(t *testing.T) {
		g := newTestGovernor(t, Config{}, &fakeBalances{balance: 1000})
		g.RecordOutcome(domain.ExecutionRecord{Signer: testSigner, Status: domain.ExecTimedOut})

		st := g.State(testSigner)
		assert.Equal(t, 1, st.ExecutionsToday)
		assert.Zero(t, st.CumulativeLossToday)
	})

	t.Run("profit does not reduce accumulated loss", func(t *testing.T) {
		g := newTestGovernor(t, Config{}, &fakeBalances{balance: 1000})

		loss := -3.0
		g.RecordOutcome(domain.ExecutionRecord{Signer: testSigner, Status: domain.ExecFailed, RealizedProfit: &loss})
		profit := 10.0
		g.RecordOutcome(domain.ExecutionRecord{Signer: testSigner, Status: domain.ExecConfirmed, RealizedProfit: &profit})

		st := g.State(testSigner)
		assert.Equal(t, 2, st.ExecutionsToday)
		assert.InDelta(t, 3.0, st.CumulativeLossToday, 1e-9)
	})
}

func TestDailyReset(t *testing.T) {
	g := newTestGovernor(t, Config{MaxDailyTransactions: 1}, &fakeBalances{balance: 1000})
	base := time.Date(2026, 9, 1, 23, 59, 0, 0, time.UTC)
	g.now = func() time.Time { return base }

	g.RecordOutcome(domain.ExecutionRecord{Signer: testSigner, Status: domain.ExecConfirmed})
	dec := g.Authorize(context.Background(), testSigner, testOpportunity(), 100)
	assert.False(t, dec.Approved)

	// Past the UTC midnight boundary counters start fresh.
	g.now = func() time.Time { return base.Add(2 * time.Minute) }
	st := g.State(testSigner)
	assert.Equal(t, 0, st.ExecutionsToday)

	dec = g.Authorize(context.Background(), testSigner, testOpportunity(), 100)
	assert.True(t, dec.Approved)
}
