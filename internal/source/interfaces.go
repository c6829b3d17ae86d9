// Package source defines the external evidence streams the detection
// pipeline consumes. Real providers (mailbox APIs, bank aggregators) live
// outside this repository; anything satisfying these interfaces plugs in.
package source

import (
	"context"
	"time"

	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"
)

// EmailSource yields raw message text from a connected mailbox.
// Implementations are expected to paginate internally and return messages
// oldest-first.
type EmailSource interface {
	// Scan returns up to maxResults messages from the last daysBack days.
	Scan(ctx context.Context, maxResults, daysBack int) ([]model.EmailMessage, error)
	// DeepScan exhaustively sweeps daysBack days of mail, reporting
	// incremental progress per fetch phase.
	DeepScan(ctx context.Context, daysBack int, progress service.ProgressFunc) ([]model.EmailMessage, error)
}

// TransactionSource yields bank transaction history for connected accounts.
type TransactionSource interface {
	Transactions(ctx context.Context, accountID string, startDate, endDate time.Time) ([]model.BankTransaction, error)
	Accounts(ctx context.Context) ([]string, error)
}
