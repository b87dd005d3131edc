package modeset

import (
	"testing"

	"github.com/lumenary/lumen/internal/hardware"
	"github.com/stretchr/testify/assert"
)

func TestFor_EcoSettings(t *testing.T) {
	s := For(hardware.ModeEco)

	assert.Equal(t, 1, s.BatchSize)
	assert.Equal(t, 384, s.EmbeddingDim)
	assert.Equal(t, QuantizationBinary, s.Quantization)
	assert.Equal(t, 512, s.MaxChunkSize)
	assert.Equal(t, 50, s.Overlap)
	assert.Equal(t, 500, s.RAMTargetMB)
}

func TestFor_BalancedSettings(t *testing.T) {
	s := For(hardware.ModeBalanced)

	assert.Equal(t, 4, s.BatchSize)
	assert.Equal(t, QuantizationBinary, s.Quantization)
	assert.Equal(t, 1000, s.MaxChunkSize)
	assert.Equal(t, 100, s.Overlap)
}

func TestFor_PerformanceSettings(t *testing.T) {
	s := For(hardware.ModePerformance)

	assert.Equal(t, 16, s.BatchSize)
	assert.Equal(t, QuantizationFloat32, s.Quantization)
	assert.Equal(t, 1000, s.MaxChunkSize)
}

func TestFor_UnknownModeFallsBackToBalanced(t *testing.T) {
	s := For(hardware.Mode("bogus"))

	assert.Equal(t, For(hardware.ModeBalanced), s)
}

func TestBytesPerVector_Binary(t *testing.T) {
	s := For(hardware.ModeEco)

	assert.Equal(t, 48, s.BytesPerVector())
}

func TestBytesPerVector_Float32(t *testing.T) {
	s := For(hardware.ModePerformance)

	assert.Equal(t, 1536, s.BytesPerVector())
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(hardware.ModeEco))
	assert.True(t, Valid(hardware.ModeBalanced))
	assert.True(t, Valid(hardware.ModePerformance))
	assert.False(t, Valid(hardware.Mode("turbo")))
}
