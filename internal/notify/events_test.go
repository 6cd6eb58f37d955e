package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// captureSender keeps every delivered notification for inspection.
type captureSender struct {
	titles []string
	bodies []string
}

func (c *captureSender) Send(ctx context.Context, title, message string) error {
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, message)
	return nil
}

func (c *captureSender) Name() string { return "capture" }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func failedRecord() domain.ExecutionRecord {
	loss := -0.002
	return domain.ExecutionRecord{
		ID:          "rec-1",
		Signer:      "signer-a",
		Pair:        domain.Pair{Base: "SOL", Quote: "USDC"},
		Status:      domain.ExecFailed,
		Reason:      "dispose leg rejected on ledger: slippage exceeded",
		SizedAmount: 250,
		Legs: []domain.ExecutionLeg{
			{Kind: domain.LegAcquire, Venue: "orca", TxRef: "tx-0", Status: domain.TxConfirmed},
			{Kind: domain.LegDispose, Venue: "raydium", TxRef: "tx-1", Status: domain.TxFailed},
		},
		RealizedProfit: &loss,
	}
}

func TestExecutionAlert(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal record is fully rendered", func(t *testing.T) {
		sender := &captureSender{}
		n := NewNotifier([]Sender{sender}, nil, discardLogger())

		require.NoError(t, n.ExecutionAlert(ctx, failedRecord()))

		require.Len(t, sender.titles, 1)
		assert.Contains(t, sender.titles[0], "failed")
		assert.Contains(t, sender.titles[0], "SOL/USDC")
		assert.Contains(t, sender.bodies[0], "signer: signer-a")
		assert.Contains(t, sender.bodies[0], "reason: dispose leg rejected")
		assert.Contains(t, sender.bodies[0], "realized: -0.0020")
	})

	t.Run("manual intervention lists transaction refs", func(t *testing.T) {
		sender := &captureSender{}
		n := NewNotifier([]Sender{sender}, nil, discardLogger())

		rec := failedRecord()
		rec.ManualIntervention = true
		require.NoError(t, n.ExecutionAlert(ctx, rec))

		require.Len(t, sender.bodies, 1)
		assert.Contains(t, sender.bodies[0], "MANUAL INTERVENTION REQUIRED")
		assert.Contains(t, sender.bodies[0], "tx: tx-0")
		assert.Contains(t, sender.bodies[0], "tx: tx-1")
	})

	t.Run("event type follows the record status", func(t *testing.T) {
		sender := &captureSender{}
		n := NewNotifier([]Sender{sender}, []string{EventExecutionRiskDenied}, discardLogger())

		require.NoError(t, n.ExecutionAlert(ctx, failedRecord()))
		assert.Empty(t, sender.titles)

		denied := failedRecord()
		denied.Status = domain.ExecRiskDenied
		denied.Reason = "risk denied: cooldown"
		require.NoError(t, n.ExecutionAlert(ctx, denied))
		require.Len(t, sender.titles, 1)
	})
}

func TestDailySummaryAlert(t *testing.T) {
	ctx := context.Background()
	sender := &captureSender{}
	n := NewNotifier([]Sender{sender}, []string{EventDailySummary}, discardLogger())

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, n.DailySummaryAlert(ctx, domain.DailyStats{
		Signer:     "signer-a",
		Day:        day,
		Executions: 3,
		Profit:     4.5,
		Loss:       1.5,
	}))

	require.Len(t, sender.titles, 1)
	assert.Contains(t, sender.titles[0], "2026-09-01")
	assert.Contains(t, sender.bodies[0], "executions: 3")
	assert.Contains(t, sender.bodies[0], "profit: 4.5000")
	assert.Contains(t, sender.bodies[0], "loss: 1.5000")
}
