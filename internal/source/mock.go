package source

import (
	"context"
	"time"

	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"
)

// MockEmailSource is a mock implementation of EmailSource for testing.
type MockEmailSource struct {
	// Functions that can be set by tests to control behavior
	ScanFn     func(ctx context.Context, maxResults, daysBack int) ([]model.EmailMessage, error)
	DeepScanFn func(ctx context.Context, daysBack int, progress service.ProgressFunc) ([]model.EmailMessage, error)

	// Call tracking
	ScanCalls     []ScanCall
	DeepScanCalls []int
}

// ScanCall records the parameters of a Scan call.
type ScanCall struct {
	MaxResults int
	DaysBack   int
}

// Scan implements EmailSource.Scan.
func (m *MockEmailSource) Scan(ctx context.Context, maxResults, daysBack int) ([]model.EmailMessage, error) {
	m.ScanCalls = append(m.ScanCalls, ScanCall{MaxResults: maxResults, DaysBack: daysBack})

	if m.ScanFn != nil {
		return m.ScanFn(ctx, maxResults, daysBack)
	}
	return []model.EmailMessage{}, nil
}

// DeepScan implements EmailSource.DeepScan.
func (m *MockEmailSource) DeepScan(ctx context.Context, daysBack int, progress service.ProgressFunc) ([]model.EmailMessage, error) {
	m.DeepScanCalls = append(m.DeepScanCalls, daysBack)

	if m.DeepScanFn != nil {
		return m.DeepScanFn(ctx, daysBack, progress)
	}
	return []model.EmailMessage{}, nil
}

// MockTransactionSource is a mock implementation of TransactionSource for testing.
type MockTransactionSource struct {
	TransactionsFn func(ctx context.Context, accountID string, startDate, endDate time.Time) ([]model.BankTransaction, error)
	AccountsFn     func(ctx context.Context) ([]string, error)

	TransactionsCalls []TransactionsCall
	AccountsCalls     int
}

// TransactionsCall records the parameters of a Transactions call.
type TransactionsCall struct {
	StartDate time.Time
	EndDate   time.Time
	AccountID string
}

// Transactions implements TransactionSource.Transactions.
func (m *MockTransactionSource) Transactions(ctx context.Context, accountID string, startDate, endDate time.Time) ([]model.BankTransaction, error) {
	m.TransactionsCalls = append(m.TransactionsCalls, TransactionsCall{
		AccountID: accountID,
		StartDate: startDate,
		EndDate:   endDate,
	})

	if m.TransactionsFn != nil {
		return m.TransactionsFn(ctx, accountID, startDate, endDate)
	}
	return []model.BankTransaction{}, nil
}

// Accounts implements TransactionSource.Accounts.
func (m *MockTransactionSource) Accounts(ctx context.Context) ([]string, error) {
	m.AccountsCalls++

	if m.AccountsFn != nil {
		return m.AccountsFn(ctx)
	}
	return []string{}, nil
}

// Ensure mocks implement the source interfaces.
var (
	_ EmailSource       = (*MockEmailSource)(nil)
	_ TransactionSource = (*MockTransactionSource)(nil)
)
