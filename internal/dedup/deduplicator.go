// Package dedup merges same-service candidates within one ingestion batch
// into a minimal confidence-ranked set.
package dedup

import (
	"sort"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// Deduplicate reduces a batch of detections to at most one per normalized
// service name. The highest-confidence candidate represents each service;
// ties prefer a populated amount. A lower-ranked duplicate can fill in the
// representative's missing amount, but nothing else; enrichment is
// field-level and one-directional, so running the pass on its own output
// is a fixed point.
//
// This is intra-batch only; reconciliation against persisted detections
// and existing subscriptions happens in the decision engine.
func Deduplicate(detections []model.Detection) []model.Detection {
	if len(detections) <= 1 {
		return detections
	}

	ranked := make([]model.Detection, len(detections))
	copy(ranked, detections)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Amount.Valid && !ranked[j].Amount.Valid
	})

	index := make(map[string]int)
	var out []model.Detection
	for _, d := range ranked {
		pos, seen := index[d.ServiceName]
		if !seen {
			index[d.ServiceName] = len(out)
			out = append(out, d)
			continue
		}

		// Keep the representative, but let a duplicate supply the amount
		// the representative lacks
		if !out[pos].Amount.Valid && d.Amount.Valid {
			out[pos].Amount = d.Amount
		}
	}
	return out
}
