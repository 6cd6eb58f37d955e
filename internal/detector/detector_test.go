package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

var solUSDC = domain.Pair{Base: "SOL", Quote: "USDC"}

func testQuote(venue string, price, liquidity, feeBps float64) domain.Quote {
	return domain.Quote{
		Pair:               solUSDC,
		Venue:              venue,
		Price:              price,
		AvailableLiquidity: liquidity,
		FeeBps:             feeBps,
		ObservedAt:         time.Now().UTC(),
		Confidence:         0.9,
	}
}

func newTestDetector(t *testing.T, cfg Config) *Detector {
	t.Helper()
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func TestNew(t *testing.T) {
	t.Run("rejects non-positive threshold", func(t *testing.T) {
		_, err := New(Config{MinProfitThresholdPct: 0})
		assert.Error(t, err)

		_, err = New(Config{MinProfitThresholdPct: -1})
		assert.Error(t, err)
	})

	t.Run("defaults utilization cap and slippage cap", func(t *testing.T) {
		d := newTestDetector(t, Config{MinProfitThresholdPct: 0.5})
		assert.InDelta(t, 0.05, d.cfg.LiquidityUtilizationCap, 1e-9)
		assert.InDelta(t, 200.0, d.cfg.SlippageCapBps, 1e-9)
	})
}

func TestDetect(t *testing.T) {
	cfg := Config{
		MinProfitThresholdPct:   0.5,
		LiquidityUtilizationCap: 0.05,
		MinTradeAmount:          1,
		SlippageBaseBps:         5,
		SlippageSlopeBps:        0,
		SlippageCapBps:          200,
	}

	t.Run("fewer than two quotes yields nothing", func(t *testing.T) {
		d := newTestDetector(t, cfg)
		assert.Nil(t, d.Detect(solUSDC, nil))
		assert.Nil(t, d.Detect(solUSDC, []domain.Quote{testQuote("orca", 100, 10000, 30)}))
	})

	t.Run("profitable spread surfaces one opportunity", func(t *testing.T) {
		// 2% gross spread, 30+30 bps fees, 5 bps slippage: net 1.35%.
		d := newTestDetector(t, cfg)
		quotes := []domain.Quote{
			testQuote("orca", 100.0, 10000, 30),
			testQuote("raydium", 102.0, 8000, 30),
		}

		opps := d.Detect(solUSDC, quotes)
		require.Len(t, opps, 1)

		opp := opps[0]
		assert.Equal(t, "orca", opp.BuyVenue)
		assert.Equal(t, "raydium", opp.SellVenue)
		assert.InDelta(t, 2.0, opp.GrossSpreadPct, 1e-9)
		assert.InDelta(t, 2.0-0.6-0.05, opp.NetProfitPct, 1e-9)
		assert.NotEmpty(t, opp.ID)
		assert.False(t, opp.CreatedAt.IsZero())
	})

	t.Run("sizing uses thinner leg liquidity", func(t *testing.T) {
		d := newTestDetector(t, cfg)
		quotes := []domain.Quote{
			testQuote("orca", 100.0, 10000, 30),
			testQuote("raydium", 102.0, 8000, 30),
		}

		opps := d.Detect(solUSDC, quotes)
		require.Len(t, opps, 1)
		assert.InDelta(t, 8000*0.05, opps[0].MaxTradeAmount, 1e-9)
		assert.InDelta(t, cfg.MinTradeAmount, opps[0].MinTradeAmount, 1e-9)
	})

	t.Run("fees turn a gross spread unprofitable", func(t *testing.T) {
		// 0.8% gross spread, 50+50 bps fees eat it below a 0.5% threshold.
		d := newTestDetector(t, cfg)
		quotes := []domain.Quote{
			testQuote("orca", 100.0, 10000, 50),
			testQuote("raydium", 100.8, 10000, 50),
		}

		assert.Empty(t, d.Detect(solUSDC, quotes))
	})

	t.Run("net at threshold is kept", func(t *testing.T) {
		// No fees or slippage so net equals the 0.5% gross spread.
		flat := Config{MinProfitThresholdPct: 0.5, MinTradeAmount: 1}
		d := newTestDetector(t, flat)
		quotes := []domain.Quote{
			testQuote("orca", 100.0, 10000, 0),
			testQuote("raydium", 100.5, 10000, 0),
		}

		opps := d.Detect(solUSDC, quotes)
		require.Len(t, opps, 1)
		assert.InDelta(t, 0.5, opps[0].NetProfitPct, 1e-9)
	})

	t.Run("best of three venues wins", func(t *testing.T) {
		d := newTestDetector(t, cfg)
		quotes := []domain.Quote{
			testQuote("orca", 100.0, 10000, 30),
			testQuote("raydium", 101.5, 10000, 30),
			testQuote("jupiter", 103.0, 10000, 30),
		}

		opps := d.Detect(solUSDC, quotes)
		require.Len(t, opps, 1)
		assert.Equal(t, "orca", opps[0].BuyVenue)
		assert.Equal(t, "jupiter", opps[0].SellVenue)
	})

	t.Run("dust floor suppresses thin books", func(t *testing.T) {
		thin := cfg
		thin.MinTradeAmount = 100
		d := newTestDetector(t, thin)

		// Thinner leg 1000 * 5% cap = 50, below the 100 floor.
		quotes := []domain.Quote{
			testQuote("orca", 100.0, 1000, 30),
			testQuote("raydium", 105.0, 20000, 30),
		}

		assert.Empty(t, d.Detect(solUSDC, quotes))
	})

	t.Run("max trade cap applies", func(t *testing.T) {
		capped := cfg
		capped.MaxTradeAmount = 50
		d := newTestDetector(t, capped)

		quotes := []domain.Quote{
			testQuote("orca", 100.0, 100000, 30),
			testQuote("raydium", 103.0, 100000, 30),
		}

		opps := d.Detect(solUSDC, quotes)
		require.Len(t, opps, 1)
		assert.InDelta(t, 50.0, opps[0].MaxTradeAmount, 1e-9)
	})

	t.Run("deterministic apart from ID and timestamp", func(t *testing.T) {
		d := newTestDetector(t, cfg)
		quotes := []domain.Quote{
			testQuote("orca", 100.0, 10000, 30),
			testQuote("raydium", 102.0, 8000, 30),
		}

		a := d.Detect(solUSDC, quotes)
		b := d.Detect(solUSDC, quotes)
		require.Len(t, a, 1)
		require.Len(t, b, 1)

		a[0].ID, b[0].ID = "", ""
		a[0].CreatedAt, b[0].CreatedAt = time.Time{}, time.Time{}
		assert.Equal(t, a[0], b[0])
	})
}

func TestAssumedSlippageBps(t *testing.T) {
	d := newTestDetector(t, Config{
		MinProfitThresholdPct: 0.5,
		SlippageBaseBps:       5,
		SlippageSlopeBps:      100,
		SlippageCapBps:        50,
	})

	t.Run("monotone in size", func(t *testing.T) {
		small := d.AssumedSlippageBps(100, 10000)
		large := d.AssumedSlippageBps(1000, 10000)
		assert.Less(t, small, large)
	})

	t.Run("capped", func(t *testing.T) {
		assert.InDelta(t, 50.0, d.AssumedSlippageBps(10000, 100), 1e-9)
	})

	t.Run("zero liquidity hits the cap", func(t *testing.T) {
		assert.InDelta(t, 50.0, d.AssumedSlippageBps(100, 0), 1e-9)
	})
}

func TestDetectAll(t *testing.T) {
	cfg := Config{
		MinProfitThresholdPct: 0.5,
		MinTradeAmount:        1,
		SlippageBaseBps:       5,
	}
	d := newTestDetector(t, cfg)

	ethUSDC := domain.Pair{Base: "ETH", Quote: "USDC"}
	snapshot := map[domain.Pair][]domain.Quote{
		solUSDC: {
			testQuote("orca", 100.0, 10000, 30),
			testQuote("raydium", 102.0, 10000, 30),
		},
		ethUSDC: {
			{Pair: ethUSDC, Venue: "orca", Price: 2000, AvailableLiquidity: 50000, FeeBps: 30, ObservedAt: time.Now(), Confidence: 0.9},
			{Pair: ethUSDC, Venue: "raydium", Price: 2100, AvailableLiquidity: 50000, FeeBps: 30, ObservedAt: time.Now(), Confidence: 0.9},
		},
	}

	opps := d.DetectAll(snapshot)
	require.Len(t, opps, 2)
	// ETH spread is 5%, SOL 2%; descending by net profit.
	assert.Equal(t, ethUSDC, opps[0].Pair)
	assert.Equal(t, solUSDC, opps[1].Pair)
}
