package oracle

import (
	"context"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// MockExtractor is a mock implementation of Extractor for testing.
type MockExtractor struct {
	// ExtractFn can be set by tests to control behavior.
	ExtractFn func(ctx context.Context, email model.EmailMessage) (*Extraction, error)

	// Call tracking
	ExtractCalls []string
}

// Extract implements Extractor.Extract.
func (m *MockExtractor) Extract(ctx context.Context, email model.EmailMessage) (*Extraction, error) {
	m.ExtractCalls = append(m.ExtractCalls, email.ID)

	if m.ExtractFn != nil {
		return m.ExtractFn(ctx, email)
	}
	return &Extraction{IsSubscription: false}, nil
}

// Reset clears all call tracking.
func (m *MockExtractor) Reset() {
	m.ExtractCalls = nil
}

var _ Extractor = (*MockExtractor)(nil)
