// Package embed turns chunk and query text into fixed-dimension vectors,
// with an optional binary quantization step for memory-constrained modes.
package embed

import (
	"context"
	"math"
)

// Dim is the fixed embedding dimension every backend in this package
// produces, matching the vector index's expectations across backend swaps.
const Dim = 384

// Embedder generates dense vector embeddings for document chunks and
// search queries. Implementations must be safe for concurrent use.
type Embedder interface {
	// EncodeDocuments embeds a batch of chunk texts for indexing.
	EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EncodeQuery embeds a single query string for search.
	EncodeQuery(ctx context.Context, query string) ([]float32, error)

	// Dim returns the embedding dimension.
	Dim() int

	// ModelName identifies the backend, e.g. "onnx:bge-small-en-v1.5" or "static".
	ModelName() string

	// Close releases any resources (ONNX session, tokenizer).
	Close() error
}

// normalizeVector L2-normalizes v in place and returns it.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	inv := float32(1.0 / magnitude)
	for i := range v {
		v[i] *= inv
	}
	return v
}

// QuantizeBinary packs an L2-normalized float32 vector into a binary code:
// bit i is 1 iff dimension i is strictly positive. Bits are packed 8 per
// byte, most-significant-bit first, so byte 0 covers dimensions 0-7 with
// dimension 0 in the 0x80 bit.
func QuantizeBinary(v []float32) []byte {
	packed := make([]byte, (len(v)+7)/8)
	for i, val := range v {
		if val > 0 {
			packed[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return packed
}

// HammingDistance counts differing bits between two equal-length packed
// binary codes.
func HammingDistance(a, b []byte) int {
	dist := 0
	for i := range a {
		dist += popcount(a[i] ^ b[i])
	}
	return dist
}

func popcount(b byte) int {
	count := 0
	for b != 0 {
		count += int(b & 1)
		b >>= 1
	}
	return count
}
