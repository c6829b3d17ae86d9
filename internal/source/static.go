package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"
)

// StaticEmailSource serves messages from a JSON fixture file. Useful for
// local runs and integration tests without a live mailbox connection.
type StaticEmailSource struct {
	messages []model.EmailMessage
	now      func() time.Time
}

type staticEmail struct {
	Date    time.Time `json:"date"`
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	From    string    `json:"from"`
	Body    string    `json:"body"`
}

// NewStaticEmailSource loads messages from a JSON file.
func NewStaticEmailSource(path string) (*StaticEmailSource, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read email fixture: %v", common.ErrSourceUnavailable, err)
	}

	var raw []staticEmail
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse email fixture %s: %w", path, err)
	}

	messages := make([]model.EmailMessage, len(raw))
	for i, m := range raw {
		messages[i] = model.EmailMessage{
			ID:      m.ID,
			Subject: m.Subject,
			From:    m.From,
			Date:    m.Date,
			Body:    m.Body,
		}
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].Date.Before(messages[j].Date) })

	return &StaticEmailSource{messages: messages, now: time.Now}, nil
}

// Scan returns up to maxResults messages from the last daysBack days.
func (s *StaticEmailSource) Scan(_ context.Context, maxResults, daysBack int) ([]model.EmailMessage, error) {
	cutoff := s.now().AddDate(0, 0, -daysBack)

	var out []model.EmailMessage
	for _, m := range s.messages {
		if m.Date.Before(cutoff) {
			continue
		}
		out = append(out, m)
		if maxResults > 0 && len(out) >= maxResults {
			break
		}
	}
	return out, nil
}

// DeepScan returns every message in the window, reporting progress in
// fixed-size pages the way a paginated mailbox fetch would.
func (s *StaticEmailSource) DeepScan(ctx context.Context, daysBack int, progress service.ProgressFunc) ([]model.EmailMessage, error) {
	cutoff := s.now().AddDate(0, 0, -daysBack)

	var window []model.EmailMessage
	for _, m := range s.messages {
		if !m.Date.Before(cutoff) {
			window = append(window, m)
		}
	}

	const pageSize = 50
	var out []model.EmailMessage
	for i := 0; i < len(window); i += pageSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		end := i + pageSize
		if end > len(window) {
			end = len(window)
		}
		out = append(out, window[i:end]...)

		if progress != nil {
			progress("fetching messages", end, len(window))
		}
	}
	return out, nil
}

// transactionTable implements account listing and date windowing over an
// in-memory transaction set. The file-backed sources embed it.
type transactionTable struct {
	byAccount map[string][]model.BankTransaction
}

func newTransactionTable(txns []model.BankTransaction) transactionTable {
	byAccount := make(map[string][]model.BankTransaction)
	for _, t := range txns {
		byAccount[t.AccountID] = append(byAccount[t.AccountID], t)
	}
	for _, accountTxns := range byAccount {
		sort.Slice(accountTxns, func(i, j int) bool { return accountTxns[i].Date.Before(accountTxns[j].Date) })
	}
	return transactionTable{byAccount: byAccount}
}

// Transactions returns the account's transactions inside the date window.
func (t *transactionTable) Transactions(_ context.Context, accountID string, startDate, endDate time.Time) ([]model.BankTransaction, error) {
	txns, ok := t.byAccount[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown account %s", common.ErrSourceUnavailable, accountID)
	}

	var out []model.BankTransaction
	for _, txn := range txns {
		if txn.Date.Before(startDate) || txn.Date.After(endDate) {
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

// Accounts lists the account IDs present in the file.
func (t *transactionTable) Accounts(_ context.Context) ([]string, error) {
	accounts := make([]string, 0, len(t.byAccount))
	for id := range t.byAccount {
		accounts = append(accounts, id)
	}
	sort.Strings(accounts)
	return accounts, nil
}

// StaticTransactionSource serves bank transactions from a JSON fixture file.
type StaticTransactionSource struct {
	transactionTable
}

type staticTransaction struct {
	Date      time.Time `json:"date"`
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Merchant  string    `json:"merchant"`
	Amount    string    `json:"amount"`
}

// NewStaticTransactionSource loads transactions from a JSON file.
func NewStaticTransactionSource(path string) (*StaticTransactionSource, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read transaction fixture: %v", common.ErrSourceUnavailable, err)
	}

	var raw []staticTransaction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse transaction fixture %s: %w", path, err)
	}

	txns := make([]model.BankTransaction, 0, len(raw))
	for _, t := range raw {
		amount, parseErr := decimal.NewFromString(t.Amount)
		if parseErr != nil {
			return nil, fmt.Errorf("transaction %s has invalid amount %q: %w", t.ID, t.Amount, parseErr)
		}
		txns = append(txns, model.BankTransaction{
			ID:        t.ID,
			AccountID: t.AccountID,
			Merchant:  t.Merchant,
			Amount:    amount,
			Date:      t.Date,
		})
	}

	return &StaticTransactionSource{newTransactionTable(txns)}, nil
}

var (
	_ EmailSource       = (*StaticEmailSource)(nil)
	_ TransactionSource = (*StaticTransactionSource)(nil)
)
