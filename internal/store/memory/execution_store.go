// Package memory implements the execution ledger in process memory. It backs
// monitor mode and tests; trade mode uses the postgres implementation.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// ExecutionStore is an in-memory, append-only execution ledger.
type ExecutionStore struct {
	mu      sync.RWMutex
	records map[string]domain.ExecutionRecord // by ID
	order   []string                          // insertion order
}

// NewExecutionStore creates an empty store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{records: make(map[string]domain.ExecutionRecord)}
}

// Append inserts a new record.
func (s *ExecutionStore) Append(ctx context.Context, rec domain.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("memory: record %s already exists", rec.ID)
	}
	s.records[rec.ID] = cloneRecord(rec)
	s.order = append(s.order, rec.ID)
	return nil
}

// Update replaces a stored record. A record that already reached a terminal
// status is immutable.
func (s *ExecutionStore) Update(ctx context.Context, rec domain.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.records[rec.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if prev.Status.Terminal() {
		return fmt.Errorf("memory: record %s is terminal (%s), append a new record instead", rec.ID, prev.Status)
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// GetByID returns the record with the given ID.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ExecutionRecord{}, domain.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// ListByIdempotencyKey returns every attempt for one intent, oldest first.
func (s *ExecutionStore) ListByIdempotencyKey(ctx context.Context, key string) ([]domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ExecutionRecord
	for _, id := range s.order {
		if rec := s.records[id]; rec.IdempotencyKey == key {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

// ListRecords returns records matching the filter, newest first.
func (s *ExecutionStore) ListRecords(ctx context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.ExecutionRecord
	for _, id := range s.order {
		rec := s.records[id]
		if filter.Signer != "" && rec.Signer != filter.Signer {
			continue
		}
		if filter.Pair != "" && rec.Pair.String() != filter.Pair {
			continue
		}
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && rec.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// DailyStats aggregates one signer's records for the given UTC day.
func (s *ExecutionStore) DailyStats(ctx context.Context, signer string, day time.Time) (domain.DailyStats, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.DailyStats{Signer: signer, Day: dayStart}
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Signer != signer || rec.Status == domain.ExecRiskDenied {
			continue
		}
		if rec.CreatedAt.Before(dayStart) || !rec.CreatedAt.Before(dayEnd) {
			continue
		}
		stats.Executions++
		if rec.RealizedProfit == nil {
			continue
		}
		if *rec.RealizedProfit >= 0 {
			stats.Profit += *rec.RealizedProfit
		} else {
			stats.Loss += -*rec.RealizedProfit
		}
	}
	return stats, nil
}

func cloneRecord(rec domain.ExecutionRecord) domain.ExecutionRecord {
	out := rec
	out.Legs = make([]domain.ExecutionLeg, len(rec.Legs))
	copy(out.Legs, rec.Legs)
	if rec.RealizedProfit != nil {
		v := *rec.RealizedProfit
		out.RealizedProfit = &v
	}
	return out
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)
