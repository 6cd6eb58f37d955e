package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

const testSigner = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func record(id, key string, status domain.ExecStatus, createdAt time.Time) domain.ExecutionRecord {
	return domain.ExecutionRecord{
		ID:             id,
		IdempotencyKey: key,
		Signer:         testSigner,
		Pair:           domain.Pair{Base: "SOL", Quote: "USDC"},
		Status:         status,
		SizedAmount:    100,
		CreatedAt:      createdAt,
	}
}

func TestAppendAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewExecutionStore()
	now := time.Now().UTC()

	rec := record("r1", "k1", domain.ExecPending, now)
	require.NoError(t, s.Append(ctx, rec))

	t.Run("duplicate ID is rejected", func(t *testing.T) {
		assert.Error(t, s.Append(ctx, rec))
	})

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := s.GetByID(ctx, "r1")
		require.NoError(t, err)
		got.Status = domain.ExecFailed

		again, err := s.GetByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, domain.ExecPending, again.Status)
	})

	t.Run("missing ID", func(t *testing.T) {
		_, err := s.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewExecutionStore()
	now := time.Now().UTC()

	rec := record("r1", "k1", domain.ExecPending, now)
	require.NoError(t, s.Append(ctx, rec))

	t.Run("non-terminal records can be rewritten", func(t *testing.T) {
		rec.Status = domain.ExecSubmitted
		require.NoError(t, s.Update(ctx, rec))

		rec.Status = domain.ExecConfirmed
		require.NoError(t, s.Update(ctx, rec))
	})

	t.Run("terminal records are immutable", func(t *testing.T) {
		rec.Status = domain.ExecFailed
		assert.Error(t, s.Update(ctx, rec))

		got, err := s.GetByID(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, domain.ExecConfirmed, got.Status)
	})

	t.Run("unknown record", func(t *testing.T) {
		other := record("r9", "k9", domain.ExecPending, now)
		assert.ErrorIs(t, s.Update(ctx, other), domain.ErrNotFound)
	})
}

func TestListByIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	s := NewExecutionStore()
	now := time.Now().UTC()

	require.NoError(t, s.Append(ctx, record("r1", "intent-1", domain.ExecTimedOut, now)))
	require.NoError(t, s.Append(ctx, record("r2", "intent-1", domain.ExecConfirmed, now.Add(time.Minute))))
	require.NoError(t, s.Append(ctx, record("r3", "intent-2", domain.ExecConfirmed, now)))

	attempts, err := s.ListByIdempotencyKey(ctx, "intent-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "r1", attempts[0].ID)
	assert.Equal(t, "r2", attempts[1].ID)
}

func TestListRecords(t *testing.T) {
	ctx := context.Background()
	s := NewExecutionStore()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, record("r1", "k1", domain.ExecConfirmed, base)))
	require.NoError(t, s.Append(ctx, record("r2", "k2", domain.ExecFailed, base.Add(time.Hour))))
	other := record("r3", "k3", domain.ExecConfirmed, base.Add(2*time.Hour))
	other.Signer = "other"
	require.NoError(t, s.Append(ctx, other))

	t.Run("newest first", func(t *testing.T) {
		out, err := s.ListRecords(ctx, domain.ExecutionFilter{})
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, "r3", out[0].ID)
		assert.Equal(t, "r1", out[2].ID)
	})

	t.Run("filter by signer and status", func(t *testing.T) {
		out, err := s.ListRecords(ctx, domain.ExecutionFilter{Signer: testSigner, Status: domain.ExecFailed})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "r2", out[0].ID)
	})

	t.Run("since and limit", func(t *testing.T) {
		out, err := s.ListRecords(ctx, domain.ExecutionFilter{Since: base.Add(30 * time.Minute), Limit: 1})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "r3", out[0].ID)
	})
}

func TestDailyStats(t *testing.T) {
	ctx := context.Background()
	s := NewExecutionStore()
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	profit := 4.5
	win := record("r1", "k1", domain.ExecConfirmed, day.Add(2*time.Hour))
	win.RealizedProfit = &profit
	require.NoError(t, s.Append(ctx, win))

	loss := -1.5
	fail := record("r2", "k2", domain.ExecFailed, day.Add(3*time.Hour))
	fail.RealizedProfit = &loss
	require.NoError(t, s.Append(ctx, fail))

	// Denied and out-of-day records do not count.
	require.NoError(t, s.Append(ctx, record("r3", "k3", domain.ExecRiskDenied, day.Add(4*time.Hour))))
	require.NoError(t, s.Append(ctx, record("r4", "k4", domain.ExecConfirmed, day.Add(25*time.Hour))))

	// Timed out counts as an execution with no profit or loss.
	require.NoError(t, s.Append(ctx, record("r5", "k5", domain.ExecTimedOut, day.Add(5*time.Hour))))

	stats, err := s.DailyStats(ctx, testSigner, day.Add(13*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, testSigner, stats.Signer)
	assert.Equal(t, day, stats.Day)
	assert.Equal(t, 3, stats.Executions)
	assert.InDelta(t, 4.5, stats.Profit, 1e-9)
	assert.InDelta(t, 1.5, stats.Loss, 1e-9)
}
