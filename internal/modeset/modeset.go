// Package modeset holds the static per-mode settings table the rest of the
// pipeline (chunker, embedder, vector index) is parameterized on.
package modeset

import "github.com/lumenary/lumen/internal/hardware"

// Quantization selects how embeddings are stored in the vector index.
type Quantization string

const (
	QuantizationBinary  Quantization = "binary"
	QuantizationFloat32 Quantization = "float32"
)

// Settings bundles every knob that changes between eco/balanced/performance.
type Settings struct {
	Mode          hardware.Mode
	BatchSize     int
	EmbeddingDim  int
	Quantization  Quantization
	MaxChunkSize  int
	Overlap       int
	RAMTargetMB   int
}

var table = map[hardware.Mode]Settings{
	hardware.ModeEco: {
		Mode:         hardware.ModeEco,
		BatchSize:    1,
		EmbeddingDim: 384,
		Quantization: QuantizationBinary,
		MaxChunkSize: 512,
		Overlap:      50,
		RAMTargetMB:  500,
	},
	hardware.ModeBalanced: {
		Mode:         hardware.ModeBalanced,
		BatchSize:    4,
		EmbeddingDim: 384,
		Quantization: QuantizationBinary,
		MaxChunkSize: 1000,
		Overlap:      100,
		RAMTargetMB:  1024,
	},
	hardware.ModePerformance: {
		Mode:         hardware.ModePerformance,
		BatchSize:    16,
		EmbeddingDim: 384,
		Quantization: QuantizationFloat32,
		MaxChunkSize: 1000,
		Overlap:      100,
		RAMTargetMB:  2048,
	},
}

// For returns the settings for mode, falling back to balanced for any
// value outside the three known modes.
func For(mode hardware.Mode) Settings {
	if s, ok := table[mode]; ok {
		return s
	}
	return table[hardware.ModeBalanced]
}

// UsesBinary reports whether mode stores vectors as packed binary codes
// rather than float32.
func (s Settings) UsesBinary() bool {
	return s.Quantization == QuantizationBinary
}

// BytesPerVector returns the on-disk size of one embedding under this mode's
// quantization scheme.
func (s Settings) BytesPerVector() int {
	if s.UsesBinary() {
		return (s.EmbeddingDim + 7) / 8
	}
	return s.EmbeddingDim * 4
}

// Valid reports whether mode is one of the three known operating modes.
func Valid(mode hardware.Mode) bool {
	_, ok := table[mode]
	return ok
}
