// Package source provides venue adapters implementing domain.QuoteSource.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// HTTPConfig configures a REST-polled venue.
type HTTPConfig struct {
	// Name identifies the venue in quotes and logs, e.g. "raydium".
	Name string

	// BaseURL is the quote endpoint root, e.g. "https://quote.example.com/v1".
	BaseURL string

	// FeeBps overrides the venue taker fee when the endpoint does not report
	// one. Ignored when the response carries its own fee_bps field.
	FeeBps float64

	// Timeout bounds each HTTP request. Zero means 30s.
	Timeout time.Duration
}

// HTTPSource fetches quotes from a venue's REST quote endpoint.
type HTTPSource struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

// NewHTTPSource creates a REST quote source for one venue.
func NewHTTPSource(cfg HTTPConfig) (*HTTPSource, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("source: http source requires a venue name")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("source: http source %s requires a base URL", cfg.Name)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSource{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name returns the venue identifier.
func (s *HTTPSource) Name() string {
	return s.cfg.Name
}

// quoteResponse is the venue quote endpoint's JSON shape.
type quoteResponse struct {
	Price      float64 `json:"price"`
	Liquidity  float64 `json:"liquidity"`
	FeeBps     float64 `json:"fee_bps"`
	Confidence float64 `json:"confidence"`
	TsUnixMs   int64   `json:"ts"`
}

// GetQuote fetches the venue's current terms for a pair at the given
// reference size. Transport failures are wrapped in
// domain.ErrSourceUnavailable so callers can distinguish a dead venue from a
// malformed quote.
func (s *HTTPSource) GetQuote(ctx context.Context, pair domain.Pair, referenceAmount float64) (domain.Quote, error) {
	params := url.Values{}
	params.Set("pair", pair.String())
	params.Set("amount", strconv.FormatFloat(referenceAmount, 'f', -1, 64))

	fullURL := s.cfg.BaseURL + "/quote?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("source: %s: create request: %w", s.cfg.Name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("source: %s: %w: %v", s.cfg.Name, domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("source: %s: read response: %w", s.cfg.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Quote{}, fmt.Errorf("source: %s: %w: HTTP %d", s.cfg.Name, domain.ErrSourceUnavailable, resp.StatusCode)
	}

	var qr quoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return domain.Quote{}, fmt.Errorf("source: %s: decode quote: %w", s.cfg.Name, err)
	}

	q := domain.Quote{
		Pair:               pair,
		Venue:              s.cfg.Name,
		Price:              qr.Price,
		AvailableLiquidity: qr.Liquidity,
		FeeBps:             qr.FeeBps,
		Confidence:         qr.Confidence,
	}
	if q.FeeBps == 0 {
		q.FeeBps = s.cfg.FeeBps
	}
	if qr.TsUnixMs > 0 {
		q.ObservedAt = time.UnixMilli(qr.TsUnixMs)
	}
	return q, nil
}

// Compile-time interface check.
var _ domain.QuoteSource = (*HTTPSource)(nil)
