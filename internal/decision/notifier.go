package decision

import (
	"context"
	"log/slog"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// LogNotifier reports auto-import events to the structured log. Stands in
// for a real delivery channel (push, email digest) wired at the edge.
type LogNotifier struct{}

// AutoImported implements Notifier.
func (LogNotifier) AutoImported(_ context.Context, sub *model.Subscription, d *model.Detection) {
	amount := "unknown"
	if sub.Amount.Valid {
		amount = sub.Amount.Decimal.String()
	}
	slog.Info("Subscription auto-imported",
		"service", sub.ServiceName,
		"amount", amount,
		"currency", sub.Currency,
		"cycle", sub.BillingCycle,
		"source", d.Source,
		"confidence", d.Confidence)
}

var _ Notifier = LogNotifier{}
