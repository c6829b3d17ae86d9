package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvidenceRefStableAcrossOrder(t *testing.T) {
	a := EvidenceRef([]string{"t1", "t2", "t3"})
	b := EvidenceRef([]string{"t3", "t1", "t2"})
	assert.Equal(t, a, b)
}

func TestEvidenceRefDistinguishesSets(t *testing.T) {
	a := EvidenceRef([]string{"t1", "t2"})
	b := EvidenceRef([]string{"t1", "t3"})
	assert.NotEqual(t, a, b)
}

func TestEvidenceRefDoesNotMutateInput(t *testing.T) {
	ids := []string{"z", "a"}
	_ = EvidenceRef(ids)
	assert.Equal(t, []string{"z", "a"}, ids)
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status DetectionStatus
		want   bool
	}{
		{StatusPending, false},
		{StatusImported, true},
		{StatusAutoImported, true},
		{StatusRejected, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestParseCategory(t *testing.T) {
	got, ok := ParseCategory("streaming")
	assert.True(t, ok)
	assert.Equal(t, CategoryStreaming, got)

	got, ok = ParseCategory("Food Delivery")
	assert.True(t, ok)
	assert.Equal(t, CategoryFoodDelivery, got)

	got, ok = ParseCategory("nonsense")
	assert.False(t, ok)
	assert.Equal(t, CategoryOther, got)
}
