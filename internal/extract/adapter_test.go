package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/oracle"
)

func fastConfig() Config {
	return Config{
		CallDelay:   time.Millisecond,
		CallTimeout: time.Second,
	}
}

func email(id, subject string) model.EmailMessage {
	return model.EmailMessage{
		ID:      id,
		Subject: subject,
		From:    "billing@example.com",
		Date:    time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func subscriptionExtraction(service string) *oracle.Extraction {
	return &oracle.Extraction{
		IsSubscription:      true,
		IsConfirmationEmail: true,
		EmailType:           oracle.EmailConfirmedSubscription,
		ServiceName:         service,
		Amount:              decimal.NullDecimal{Decimal: decimal.RequireFromString("649"), Valid: true},
		Currency:            "INR",
		BillingCycle:        model.CycleMonthly,
		Confidence:          92,
	}
}

func TestExtractBatchProducesCandidates(t *testing.T) {
	mock := &oracle.MockExtractor{
		ExtractFn: func(_ context.Context, email model.EmailMessage) (*oracle.Extraction, error) {
			return subscriptionExtraction("Netflix"), nil
		},
	}
	extractor := NewEmailExtractor(mock, fastConfig())

	candidates, stats, err := extractor.ExtractBatch(context.Background(),
		[]model.EmailMessage{email("m1", "Your Netflix receipt"), email("m2", "Payment confirmed")}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 0, stats.Skipped)
	require.Len(t, candidates, 2)
	assert.Equal(t, model.SourceEmail, candidates[0].Source)
	assert.Equal(t, "m1", candidates[0].SourceRef)
	assert.Equal(t, "Netflix", candidates[0].ServiceName)
	assert.True(t, candidates[0].Confirmed)
	assert.Equal(t, []string{"m1", "m2"}, mock.ExtractCalls)
}

func TestExtractBatchSkipsFailedEmails(t *testing.T) {
	mock := &oracle.MockExtractor{
		ExtractFn: func(_ context.Context, email model.EmailMessage) (*oracle.Extraction, error) {
			if email.ID == "m2" {
				return nil, errors.New("model overloaded")
			}
			return subscriptionExtraction("Spotify"), nil
		},
	}
	extractor := NewEmailExtractor(mock, fastConfig())

	candidates, stats, err := extractor.ExtractBatch(context.Background(),
		[]model.EmailMessage{email("m1", "a"), email("m2", "b"), email("m3", "c")}, nil)
	require.NoError(t, err, "one bad email must not fail the batch")

	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 1, stats.Skipped)
	assert.Len(t, candidates, 2)
}

func TestExtractBatchSkipsNonSubscriptions(t *testing.T) {
	mock := &oracle.MockExtractor{
		ExtractFn: func(_ context.Context, email model.EmailMessage) (*oracle.Extraction, error) {
			if email.ID == "m1" {
				return &oracle.Extraction{IsSubscription: false, EmailType: oracle.EmailOneTimePayment}, nil
			}
			return subscriptionExtraction("Notion"), nil
		},
	}
	extractor := NewEmailExtractor(mock, fastConfig())

	candidates, stats, err := extractor.ExtractBatch(context.Background(),
		[]model.EmailMessage{email("m1", "order"), email("m2", "subscription")}, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Skipped, "not-a-subscription is a result, not a failure")
	require.Len(t, candidates, 1)
	assert.Equal(t, "Notion", candidates[0].ServiceName)
}

func TestExtractBatchRetriesTransientFailure(t *testing.T) {
	attempts := 0
	mock := &oracle.MockExtractor{
		ExtractFn: func(_ context.Context, _ model.EmailMessage) (*oracle.Extraction, error) {
			attempts++
			if attempts == 1 {
				return nil, errors.New("temporary hiccup")
			}
			return subscriptionExtraction("Figma"), nil
		},
	}
	extractor := NewEmailExtractor(mock, fastConfig())

	candidates, stats, err := extractor.ExtractBatch(context.Background(),
		[]model.EmailMessage{email("m1", "receipt")}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.Equal(t, 0, stats.Skipped)
	assert.Len(t, candidates, 1)
}

func TestExtractBatchReportsPerEmailProgress(t *testing.T) {
	mock := &oracle.MockExtractor{
		ExtractFn: func(_ context.Context, email model.EmailMessage) (*oracle.Extraction, error) {
			if email.ID == "m2" {
				return nil, errors.New("model overloaded")
			}
			return subscriptionExtraction("Netflix"), nil
		},
	}
	extractor := NewEmailExtractor(mock, fastConfig())

	var updates []int
	progress := func(phase string, current, total int) {
		assert.Equal(t, "extract", phase)
		assert.Equal(t, 3, total)
		updates = append(updates, current)
	}

	_, _, err := extractor.ExtractBatch(context.Background(),
		[]model.EmailMessage{email("m1", "a"), email("m2", "b"), email("m3", "c")}, progress)
	require.NoError(t, err)

	// Skipped emails still advance the counter; the bar must not stall
	assert.Equal(t, []int{0, 1, 2, 3}, updates)
}

func TestExtractBatchStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mock := &oracle.MockExtractor{
		ExtractFn: func(_ context.Context, _ model.EmailMessage) (*oracle.Extraction, error) {
			cancel()
			return subscriptionExtraction("Netflix"), nil
		},
	}
	extractor := NewEmailExtractor(mock, fastConfig())

	candidates, stats, err := extractor.ExtractBatch(ctx,
		[]model.EmailMessage{email("m1", "a"), email("m2", "b")}, nil)
	assert.ErrorIs(t, err, context.Canceled)

	// The candidate produced before cancellation is kept
	assert.Len(t, candidates, 1)
	assert.Equal(t, 1, stats.Scanned)
}

func TestToCandidateCycleDefaults(t *testing.T) {
	extractor := NewEmailExtractor(&oracle.MockExtractor{}, fastConfig())

	tests := []struct {
		name      string
		emailType oracle.EmailType
		cycle     model.BillingCycle
		want      model.BillingCycle
	}{
		{"confirmed subscription with no cycle defaults monthly", oracle.EmailConfirmedSubscription, "", model.CycleMonthly},
		{"confirmed subscription with unknown cycle defaults monthly", oracle.EmailConfirmedSubscription, model.CycleUnknown, model.CycleMonthly},
		{"other email type keeps unknown", oracle.EmailOther, "", model.CycleUnknown},
		{"explicit cycle wins", oracle.EmailConfirmedSubscription, model.CycleYearly, model.CycleYearly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := extractor.toCandidate(email("m1", "x"), &oracle.Extraction{
				IsSubscription: true,
				EmailType:      tt.emailType,
				BillingCycle:   tt.cycle,
				ServiceName:    "svc",
			})
			assert.Equal(t, tt.want, c.Cycle)
		})
	}
}

func TestToCandidateConfirmation(t *testing.T) {
	extractor := NewEmailExtractor(&oracle.MockExtractor{}, fastConfig())

	confirmed := extractor.toCandidate(email("m1", "x"), &oracle.Extraction{
		IsSubscription: true,
		EmailType:      oracle.EmailOther,
		ServiceName:    "svc",
	})
	assert.False(t, confirmed.Confirmed)

	confirmed = extractor.toCandidate(email("m1", "x"), &oracle.Extraction{
		IsSubscription:      true,
		IsConfirmationEmail: true,
		EmailType:           oracle.EmailOther,
		ServiceName:         "svc",
	})
	assert.True(t, confirmed.Confirmed)
}
