package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each quote is
// stored at key "quote:{pair}:{venue}" with fields price, liquidity, fee_bps,
// ts (Unix nanosecond timestamp) and confidence. The set "quote:venues:{pair}"
// tracks which venues have mirrored a quote for the pair.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. Quotes
// expire after ttl so dead venues age out of the mirror; a non-positive ttl
// disables expiry.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(pair domain.Pair, venue string) string {
	return "quote:" + pair.String() + ":" + venue
}

func venuesKey(pair domain.Pair) string {
	return "quote:venues:" + pair.String()
}

// SetQuote mirrors the latest quote for its (pair, venue) key.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Pair, q.Venue)
	fields := map[string]interface{}{
		"price":      strconv.FormatFloat(q.Price, 'f', -1, 64),
		"liquidity":  strconv.FormatFloat(q.AvailableLiquidity, 'f', -1, 64),
		"fee_bps":    strconv.FormatFloat(q.FeeBps, 'f', -1, 64),
		"ts":         strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
		"confidence": strconv.FormatFloat(q.Confidence, 'f', -1, 64),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, venuesKey(q.Pair), q.Venue)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s@%s: %w", q.Pair, q.Venue, err)
	}
	return nil
}

// GetQuote retrieves the mirrored quote for one (pair, venue) key. It returns
// domain.ErrNotFound when no quote has been mirrored.
func (qc *QuoteCache) GetQuote(ctx context.Context, pair domain.Pair, venue string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(pair, venue)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s@%s: %w", pair, venue, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}
	q, err := parseQuote(pair, venue, vals)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s@%s: %w", pair, venue, err)
	}
	return q, nil
}

// GetQuotes retrieves all mirrored quotes for a pair using a pipeline. Venues
// whose quote keys have expired are silently omitted.
func (qc *QuoteCache) GetQuotes(ctx context.Context, pair domain.Pair) ([]domain.Quote, error) {
	venues, err := qc.rdb.SMembers(ctx, venuesKey(pair)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: get quote venues %s: %w", pair, err)
	}
	if len(venues) == 0 {
		return nil, nil
	}
	sort.Strings(venues)

	pipe := qc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(venues))
	for _, venue := range venues {
		cmds[venue] = pipe.HGetAll(ctx, quoteKey(pair, venue))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get quotes %s pipeline: %w", pair, err)
	}

	quotes := make([]domain.Quote, 0, len(venues))
	for _, venue := range venues {
		vals, err := cmds[venue].Result()
		if err != nil || len(vals) == 0 {
			continue
		}
		q, err := parseQuote(pair, venue, vals)
		if err != nil {
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func parseQuote(pair domain.Pair, venue string, vals map[string]string) (domain.Quote, error) {
	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("parse price: %w", err)
	}
	liquidity, err := strconv.ParseFloat(vals["liquidity"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("parse liquidity: %w", err)
	}
	feeBps, err := strconv.ParseFloat(vals["fee_bps"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("parse fee_bps: %w", err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("parse ts: %w", err)
	}
	confidence, err := strconv.ParseFloat(vals["confidence"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("parse confidence: %w", err)
	}
	return domain.Quote{
		Pair:               pair,
		Venue:              venue,
		Price:              price,
		AvailableLiquidity: liquidity,
		FeeBps:             feeBps,
		ObservedAt:         time.Unix(0, tsNano),
		Confidence:         confidence,
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
