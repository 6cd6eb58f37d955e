package aggregator

import (
	"sync"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// pairCache holds the latest quote per (pair, venue) key. It is owned
// exclusively by the PriceAggregator; readers get copied snapshots, never a
// view into the live maps. Writes are last-write-wins by ObservedAt.
type pairCache struct {
	mu     sync.RWMutex
	quotes map[string]map[string]domain.Quote // pair -> venue -> quote
}

func newPairCache() *pairCache {
	return &pairCache{quotes: make(map[string]map[string]domain.Quote)}
}

// put stores q unless a newer quote for the same (pair, venue) key is already
// present. It reports whether the quote was stored.
func (c *pairCache) put(q domain.Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := q.Pair.String()
	byVenue, ok := c.quotes[key]
	if !ok {
		byVenue = make(map[string]domain.Quote)
		c.quotes[key] = byVenue
	}
	if prev, ok := byVenue[q.Venue]; ok && prev.ObservedAt.After(q.ObservedAt) {
		return false
	}
	byVenue[q.Venue] = q
	return true
}

// snapshot returns a copy of all quotes for the pair no older than window.
// Stale entries are excluded from the result but left in place for the sweep.
func (c *pairCache) snapshot(pair domain.Pair, now time.Time, window time.Duration) []domain.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	byVenue, ok := c.quotes[pair.String()]
	if !ok {
		return nil
	}
	out := make([]domain.Quote, 0, len(byVenue))
	for _, q := range byVenue {
		if q.Age(now) <= window {
			out = append(out, q)
		}
	}
	return out
}

// sweep physically deletes entries older than their pair's staleness window.
// windowFor resolves the window for a given pair key.
func (c *pairCache) sweep(now time.Time, windowFor func(pairKey string) time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for pairKey, byVenue := range c.quotes {
		window := windowFor(pairKey)
		for venue, q := range byVenue {
			if q.Age(now) > window {
				delete(byVenue, venue)
				removed++
			}
		}
		if len(byVenue) == 0 {
			delete(c.quotes, pairKey)
		}
	}
	return removed
}
