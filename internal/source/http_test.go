package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

var solUSDC = domain.Pair{Base: "SOL", Quote: "USDC"}

func TestNewHTTPSource(t *testing.T) {
	_, err := NewHTTPSource(HTTPConfig{BaseURL: "https://x"})
	assert.Error(t, err)

	_, err = NewHTTPSource(HTTPConfig{Name: "orca"})
	assert.Error(t, err)
}

func TestHTTPSourceGetQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes the quote response", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/quote", r.URL.Path)
			assert.Equal(t, "SOL/USDC", r.URL.Query().Get("pair"))
			assert.Equal(t, "250", r.URL.Query().Get("amount"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"price":101.25,"liquidity":50000,"fee_bps":30,"confidence":0.85,"ts":1756723200000}`))
		}))
		defer ts.Close()

		src, err := NewHTTPSource(HTTPConfig{Name: "orca", BaseURL: ts.URL})
		require.NoError(t, err)

		q, err := src.GetQuote(ctx, solUSDC, 250)
		require.NoError(t, err)
		assert.Equal(t, "orca", q.Venue)
		assert.Equal(t, solUSDC, q.Pair)
		assert.InDelta(t, 101.25, q.Price, 1e-9)
		assert.InDelta(t, 50000.0, q.AvailableLiquidity, 1e-9)
		assert.InDelta(t, 30.0, q.FeeBps, 1e-9)
		assert.InDelta(t, 0.85, q.Confidence, 1e-9)
		assert.Equal(t, time.UnixMilli(1756723200000), q.ObservedAt)
	})

	t.Run("config fee applies when the response omits it", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"price":100,"liquidity":1000}`))
		}))
		defer ts.Close()

		src, err := NewHTTPSource(HTTPConfig{Name: "orca", BaseURL: ts.URL, FeeBps: 25})
		require.NoError(t, err)

		q, err := src.GetQuote(ctx, solUSDC, 100)
		require.NoError(t, err)
		assert.InDelta(t, 25.0, q.FeeBps, 1e-9)
	})

	t.Run("http error status is source unavailable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		src, err := NewHTTPSource(HTTPConfig{Name: "orca", BaseURL: ts.URL})
		require.NoError(t, err)

		_, err = src.GetQuote(ctx, solUSDC, 100)
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})

	t.Run("unreachable venue is source unavailable", func(t *testing.T) {
		src, err := NewHTTPSource(HTTPConfig{Name: "orca", BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
		require.NoError(t, err)

		_, err = src.GetQuote(ctx, solUSDC, 100)
		assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	})

	t.Run("malformed body is not source unavailable", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer ts.Close()

		src, err := NewHTTPSource(HTTPConfig{Name: "orca", BaseURL: ts.URL})
		require.NoError(t, err)

		_, err = src.GetQuote(ctx, solUSDC, 100)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrSourceUnavailable)
	})
}
