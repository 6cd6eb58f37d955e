package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Append inserts a record and its legs in one transaction.
func (s *ExecutionStore) Append(ctx context.Context, rec domain.ExecutionRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO execution_records (id, idempotency_key, signer, pair, status, reason, sized_amount, realized_profit, attempts, manual_intervention, created_at, submitted_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.IdempotencyKey, rec.Signer, rec.Pair.String(), string(rec.Status), rec.Reason,
		rec.SizedAmount, rec.RealizedProfit, rec.Attempts, rec.ManualIntervention,
		rec.CreatedAt, rec.SubmittedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution_record: %w", err)
	}
	if err := insertLegs(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update rewrites a non-terminal record in place; legs are replaced. A record
// that already reached a terminal status is refused.
func (s *ExecutionStore) Update(ctx context.Context, rec domain.ExecutionRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prevStatus string
	err = tx.QueryRow(ctx,
		`SELECT status FROM execution_records WHERE id = $1 FOR UPDATE`, rec.ID,
	).Scan(&prevStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: lock execution_record %s: %w", rec.ID, err)
	}
	if domain.ExecStatus(prevStatus).Terminal() {
		return fmt.Errorf("postgres: record %s is terminal (%s), append a new record instead", rec.ID, prevStatus)
	}

	_, err = tx.Exec(ctx, `
		UPDATE execution_records
		SET status = $2, reason = $3, realized_profit = $4, manual_intervention = $5, submitted_at = $6, completed_at = $7
		WHERE id = $1`,
		rec.ID, string(rec.Status), rec.Reason, rec.RealizedProfit, rec.ManualIntervention,
		rec.SubmittedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update execution_record %s: %w", rec.ID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM execution_legs WHERE record_id = $1`, rec.ID); err != nil {
		return fmt.Errorf("postgres: clear execution_legs: %w", err)
	}
	if err := insertLegs(ctx, tx, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertLegs(ctx context.Context, tx pgx.Tx, rec domain.ExecutionRecord) error {
	for i, leg := range rec.Legs {
		_, err := tx.Exec(ctx, `
			INSERT INTO execution_legs (record_id, seq, kind, venue, tx_ref, status, confirmations, submitted_at, resolved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			rec.ID, i, string(leg.Kind), leg.Venue, leg.TxRef, string(leg.Status),
			leg.Confirmations, leg.SubmittedAt, leg.ResolvedAt,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert execution_leg %d: %w", i, err)
		}
	}
	return nil
}

const recordColumns = `id, idempotency_key, signer, pair, status, reason, sized_amount, realized_profit, attempts, manual_intervention, created_at, submitted_at, completed_at`

func scanRecord(row pgx.Row) (domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var pairStr, status string
	err := row.Scan(&rec.ID, &rec.IdempotencyKey, &rec.Signer, &pairStr, &status, &rec.Reason,
		&rec.SizedAmount, &rec.RealizedProfit, &rec.Attempts, &rec.ManualIntervention,
		&rec.CreatedAt, &rec.SubmittedAt, &rec.CompletedAt,
	)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	pair, err := domain.ParsePair(pairStr)
	if err != nil {
		return domain.ExecutionRecord{}, err
	}
	rec.Pair = pair
	rec.Status = domain.ExecStatus(status)
	return rec, nil
}

func (s *ExecutionStore) loadLegs(ctx context.Context, rec *domain.ExecutionRecord) error {
	rows, err := s.pool.Query(ctx, `
		SELECT kind, venue, tx_ref, status, confirmations, submitted_at, resolved_at
		FROM execution_legs WHERE record_id = $1 ORDER BY seq`,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: load execution_legs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var leg domain.ExecutionLeg
		var kind, status string
		if err := rows.Scan(&kind, &leg.Venue, &leg.TxRef, &status, &leg.Confirmations, &leg.SubmittedAt, &leg.ResolvedAt); err != nil {
			return err
		}
		leg.Kind = domain.LegKind(kind)
		leg.Status = domain.TxState(status)
		rec.Legs = append(rec.Legs, leg)
	}
	return rows.Err()
}

// GetByID returns a record with its legs.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM execution_records WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionRecord{}, domain.ErrNotFound
		}
		return domain.ExecutionRecord{}, fmt.Errorf("postgres: get execution_record %s: %w", id, err)
	}
	if err := s.loadLegs(ctx, &rec); err != nil {
		return domain.ExecutionRecord{}, err
	}
	return rec, nil
}

// ListByIdempotencyKey returns every attempt for one intent, oldest first.
func (s *ExecutionStore) ListByIdempotencyKey(ctx context.Context, key string) ([]domain.ExecutionRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordColumns+` FROM execution_records WHERE idempotency_key = $1 ORDER BY created_at`, key)
	if err != nil {
		return nil, fmt.Errorf("postgres: list by idempotency key: %w", err)
	}
	return s.collect(ctx, rows)
}

// ListRecords returns records matching the filter, newest first.
func (s *ExecutionStore) ListRecords(ctx context.Context, filter domain.ExecutionFilter) ([]domain.ExecutionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM execution_records WHERE 1=1`
	args := []any{}
	idx := 1
	add := func(clause string, val any) {
		query += fmt.Sprintf(" AND %s $%d", clause, idx)
		args = append(args, val)
		idx++
	}
	if filter.Signer != "" {
		add("signer =", filter.Signer)
	}
	if filter.Pair != "" {
		add("pair =", filter.Pair)
	}
	if filter.Status != "" {
		add("status =", string(filter.Status))
	}
	if !filter.Since.IsZero() {
		add("created_at >=", filter.Since)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list execution_records: %w", err)
	}
	return s.collect(ctx, rows)
}

func (s *ExecutionStore) collect(ctx context.Context, rows pgx.Rows) ([]domain.ExecutionRecord, error) {
	var out []domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadLegs(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DailyStats aggregates one signer's executions for the given UTC day.
// Risk-denied records were never attempted and are excluded.
func (s *ExecutionStore) DailyStats(ctx context.Context, signer string, day time.Time) (domain.DailyStats, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	stats := domain.DailyStats{Signer: signer, Day: dayStart}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN realized_profit > 0 THEN realized_profit ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN realized_profit < 0 THEN -realized_profit ELSE 0 END), 0)
		FROM execution_records
		WHERE signer = $1 AND status <> $2 AND created_at >= $3 AND created_at < $4`,
		signer, string(domain.ExecRiskDenied), dayStart, dayEnd,
	).Scan(&stats.Executions, &stats.Profit, &stats.Loss)
	if err != nil {
		return domain.DailyStats{}, fmt.Errorf("postgres: daily stats for %s: %w", signer, err)
	}
	return stats, nil
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)
