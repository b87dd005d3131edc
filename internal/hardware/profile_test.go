package hardware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProfile_PopulatesCoreFields(t *testing.T) {
	profile, err := DetectProfile(context.Background())

	require.NoError(t, err)
	assert.Greater(t, profile.TotalRAMGB, 0.0)
	assert.Greater(t, profile.CPUCores, 0)
	assert.Greater(t, profile.CPUThreads, 0)
	assert.NotEmpty(t, profile.CPUArchitecture)
	assert.NotEmpty(t, profile.Platform)
}

func TestRecommendedMode_EcoUnderTwoGB(t *testing.T) {
	p := Profile{AvailableRAMGB: 1.5}
	assert.Equal(t, ModeEco, p.RecommendedMode())
}

func TestRecommendedMode_BalancedUnderFourGB(t *testing.T) {
	p := Profile{AvailableRAMGB: 3.0}
	assert.Equal(t, ModeBalanced, p.RecommendedMode())
}

func TestRecommendedMode_PerformanceAboveFourGB(t *testing.T) {
	p := Profile{AvailableRAMGB: 8.0}
	assert.Equal(t, ModePerformance, p.RecommendedMode())
}

func TestRecommendedMode_BoundaryAtTwoGB(t *testing.T) {
	p := Profile{AvailableRAMGB: 2.0}
	assert.Equal(t, ModeBalanced, p.RecommendedMode())
}

func TestRecommendedMode_BoundaryAtFourGB(t *testing.T) {
	p := Profile{AvailableRAMGB: 4.0}
	assert.Equal(t, ModePerformance, p.RecommendedMode())
}
