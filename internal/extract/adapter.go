// Package extract adapts raw emails into subscription candidates by
// calling the extraction oracle once per message.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/oracle"
	"github.com/code-shreya/subscription-manager/internal/service"
)

// Config holds pacing settings for oracle calls.
type Config struct {
	// CallDelay is the mandatory minimum wall-clock gap between oracle
	// calls. A batch of N emails takes at least N×CallDelay; this is the
	// backpressure mechanism for the oracle's external quota.
	CallDelay time.Duration
	// CallTimeout bounds a single oracle call so a stalled extraction
	// fails one email instead of blocking the batch.
	CallTimeout time.Duration
}

// DefaultConfig returns the default pacing configuration.
func DefaultConfig() Config {
	return Config{
		CallDelay:   time.Second,
		CallTimeout: 30 * time.Second,
	}
}

// Stats counts what happened to a batch of emails.
type Stats struct {
	Scanned int // emails seen
	Skipped int // oracle failures absorbed
}

// EmailExtractor wraps the extraction oracle with pacing and per-message
// failure isolation. It applies no inference of its own beyond one default:
// a confirmed-subscription email with no cycle is assumed monthly.
type EmailExtractor struct {
	extractor oracle.Extractor
	config    Config
}

// NewEmailExtractor creates an extractor adapter around an oracle client.
func NewEmailExtractor(extractor oracle.Extractor, config Config) *EmailExtractor {
	if config.CallDelay <= 0 {
		config.CallDelay = DefaultConfig().CallDelay
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = DefaultConfig().CallTimeout
	}
	return &EmailExtractor{
		extractor: extractor,
		config:    config,
	}
}

// ExtractBatch runs the oracle over each email sequentially, waiting
// CallDelay between calls. A failed extraction skips that email and the
// batch continues; cancellation aborts between calls without losing
// candidates already produced. progress, when non-nil, is told after every
// email so paced batches stay observable; it may be nil.
func (e *EmailExtractor) ExtractBatch(ctx context.Context, emails []model.EmailMessage, progress service.ProgressFunc) ([]model.Candidate, Stats, error) {
	var candidates []model.Candidate
	stats := Stats{}

	if progress != nil && len(emails) > 0 {
		progress("extract", 0, len(emails))
	}

	for i, email := range emails {
		if i > 0 {
			select {
			case <-ctx.Done():
				return candidates, stats, ctx.Err()
			case <-time.After(e.config.CallDelay):
			}
		}

		stats.Scanned++

		extraction, err := e.extractOne(ctx, email)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return candidates, stats, ctx.Err()
			}
			stats.Skipped++
			common.LogError(err, "Extraction failed, skipping email", common.Fields{
				"email_id": email.ID,
				"subject":  email.Subject,
			})
		case !extraction.IsSubscription:
			slog.Debug("Email is not a subscription", "email_id", email.ID)
		default:
			candidates = append(candidates, e.toCandidate(email, extraction))
		}

		if progress != nil {
			progress("extract", i+1, len(emails))
		}
	}

	return candidates, stats, nil
}

// extractOne runs a single bounded oracle call with one retry round for
// transient failures.
func (e *EmailExtractor) extractOne(ctx context.Context, email model.EmailMessage) (*oracle.Extraction, error) {
	var extraction *oracle.Extraction

	err := common.WithRetry(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
		defer cancel()

		var callErr error
		extraction, callErr = e.extractor.Extract(callCtx, email)
		if callErr != nil {
			return &common.RetryableError{Err: callErr, Retryable: true}
		}
		return nil
	}, service.RetryOptions{
		MaxAttempts:  2,
		InitialDelay: e.config.CallDelay,
	})
	if err != nil {
		return nil, err
	}
	return extraction, nil
}

// toCandidate maps an oracle result into the canonical candidate shape,
// trusting the oracle's fields.
func (e *EmailExtractor) toCandidate(email model.EmailMessage, extraction *oracle.Extraction) model.Candidate {
	cycle := extraction.BillingCycle
	if cycle == "" || cycle == model.CycleUnknown {
		// Only a confirmed subscription justifies assuming a cycle
		if extraction.EmailType == oracle.EmailConfirmedSubscription {
			cycle = model.CycleMonthly
		} else {
			cycle = model.CycleUnknown
		}
	}

	confirmed := extraction.IsConfirmationEmail ||
		extraction.EmailType == oracle.EmailConfirmedSubscription

	return model.Candidate{
		Source:        model.SourceEmail,
		SourceRef:     email.ID,
		ServiceName:   extraction.ServiceName,
		Amount:        extraction.Amount,
		Currency:      extraction.Currency,
		Cycle:         cycle,
		CategoryHint:  extraction.Category,
		Confidence:    extraction.Confidence,
		EvidenceCount: 1,
		Confirmed:     confirmed,
		ObservedAt:    email.Date,
	}
}
