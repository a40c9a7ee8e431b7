package venues

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextFundingApprox_AlignsToCycleBoundary(t *testing.T) {
	period := int64(8 * 3600 * 1000)
	now := int64(1_700_000_000_000)
	want := float64((now/period + 1) * period)

	got := nextFundingApprox(now, 8)
	assert.Equal(t, want, got)
	assert.Greater(t, got, float64(now))
}

func TestNextFundingApprox_NonPositiveCycleFallsBack(t *testing.T) {
	now := int64(1_700_000_000_000)
	want := nextFundingApprox(now, 8)

	assert.Equal(t, want, nextFundingApprox(now, 0))
	assert.Equal(t, want, nextFundingApprox(now, -3))
}
