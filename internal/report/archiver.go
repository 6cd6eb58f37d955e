// Package report exports execution-ledger data to object storage for
// offline analysis and audit.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// BlobWriter is the narrow upload capability the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// SummaryNotifier receives the per-signer stats digest after a day is
// archived. Implemented by notify.Notifier.
type SummaryNotifier interface {
	DailySummaryAlert(ctx context.Context, stats domain.DailyStats) error
}

// Archiver serializes each UTC day's execution records to JSONL and uploads
// the file to object storage. Archived records are never deleted from the
// primary store; the ledger stays append-only.
type Archiver struct {
	store    domain.ExecutionStore
	writer   BlobWriter
	notifier SummaryNotifier
	logger   *slog.Logger
}

// NewArchiver creates an Archiver over the given store and blob writer.
func NewArchiver(store domain.ExecutionStore, writer BlobWriter, logger *slog.Logger) *Archiver {
	return &Archiver{
		store:  store,
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// SetNotifier enables the daily summary digest alongside each day's archive.
func (a *Archiver) SetNotifier(n SummaryNotifier) { a.notifier = n }

// ArchiveDay exports all execution records created on the UTC day containing
// the given time. It returns the number of records archived; a day with no
// records uploads nothing.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (int, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	records, err := a.store.ListRecords(ctx, domain.ExecutionFilter{Since: dayStart})
	if err != nil {
		return 0, fmt.Errorf("report: archive query: %w", err)
	}

	inDay := records[:0]
	for _, rec := range records {
		if rec.CreatedAt.Before(dayEnd) {
			inDay = append(inDay, rec)
		}
	}
	if len(inDay) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(inDay)
	if err != nil {
		return 0, fmt.Errorf("report: archive marshal: %w", err)
	}

	path := archivePath(dayStart)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("report: archive upload: %w", err)
	}

	a.logger.Info("archived execution records",
		slog.String("path", path),
		slog.Int("count", len(inDay)))

	if a.notifier != nil {
		a.sendSummaries(ctx, inDay, dayStart)
	}
	return len(inDay), nil
}

// sendSummaries dispatches one stats digest per signer seen in the archived
// day. Summary failures never fail the archive itself.
func (a *Archiver) sendSummaries(ctx context.Context, records []domain.ExecutionRecord, day time.Time) {
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.Signer == "" || seen[rec.Signer] {
			continue
		}
		seen[rec.Signer] = true

		stats, err := a.store.DailyStats(ctx, rec.Signer, day)
		if err != nil {
			a.logger.Warn("daily stats query failed",
				slog.String("signer", rec.Signer),
				slog.String("error", err.Error()))
			continue
		}
		if err := a.notifier.DailySummaryAlert(ctx, stats); err != nil {
			a.logger.Warn("daily summary notify failed",
				slog.String("signer", rec.Signer),
				slog.String("error", err.Error()))
		}
	}
}

// Run archives the previous UTC day once per interval. Intended to be run
// under the application's errgroup; it exits when ctx is cancelled.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := a.ArchiveDay(ctx, now.UTC().AddDate(0, 0, -1)); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archivePath builds the object key for one day's archive, partitioned by
// UTC date.
//
//	archive/executions/2026-09-01.jsonl
func archivePath(day time.Time) string {
	return fmt.Sprintf("archive/executions/%s.jsonl", day.Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL(records []domain.ExecutionRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
