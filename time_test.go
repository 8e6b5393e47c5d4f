package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWithinThresholdPeriod(t *testing.T) {
	recent := time.Now().Add(-time.Minute)
	within, err := IsWithinThresholdPeriod(recent, "15m")
	require.NoError(t, err)
	assert.True(t, within)

	old := time.Now().Add(-time.Hour)
	within, err = IsWithinThresholdPeriod(old, "15m")
	require.NoError(t, err)
	assert.False(t, within)

	_, err = IsWithinThresholdPeriod(recent, "not-a-duration")
	assert.Error(t, err)
}

func TestIsOutsideThresholdPeriod(t *testing.T) {
	old := time.Now().Add(-time.Hour)
	outside, err := IsOutsideThresholdPeriod(old, "15m")
	require.NoError(t, err)
	assert.True(t, outside)
}
