package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/domain"
)

// Event types emitted by the engine. Configure the notifier's event list with
// a subset of these to filter alerts.
const (
	EventExecutionFailed     = "execution_failed"
	EventExecutionTimedOut   = "execution_timed_out"
	EventExecutionRolledBack = "execution_rolled_back"
	EventExecutionRiskDenied = "execution_risk_denied"
	EventDailySummary        = "daily_summary"
)

// ExecutionAlert formats and dispatches an alert for a terminal execution
// record. The event type is derived from the record status.
func (n *Notifier) ExecutionAlert(ctx context.Context, rec domain.ExecutionRecord) error {
	title := fmt.Sprintf("Execution %s: %s", rec.Status, rec.Pair)

	var b strings.Builder
	fmt.Fprintf(&b, "signer: %s\n", rec.Signer)
	fmt.Fprintf(&b, "amount: %.4f\n", rec.SizedAmount)
	if rec.Reason != "" {
		fmt.Fprintf(&b, "reason: %s\n", rec.Reason)
	}
	if rec.RealizedProfit != nil {
		fmt.Fprintf(&b, "realized: %.4f\n", *rec.RealizedProfit)
	}
	if rec.ManualIntervention {
		b.WriteString("MANUAL INTERVENTION REQUIRED\n")
		for _, ref := range rec.TransactionRefs() {
			fmt.Fprintf(&b, "tx: %s\n", ref)
		}
	}

	return n.Notify(ctx, "execution_"+string(rec.Status), title, b.String())
}

// DailySummaryAlert dispatches the end-of-day stats digest.
func (n *Notifier) DailySummaryAlert(ctx context.Context, stats domain.DailyStats) error {
	message := fmt.Sprintf(
		"signer: %s\nexecutions: %d\nprofit: %.4f\nloss: %.4f",
		stats.Signer, stats.Executions, stats.Profit, stats.Loss,
	)
	return n.Notify(ctx, EventDailySummary, "Daily summary "+stats.Day.Format("2006-01-02"), message)
}
