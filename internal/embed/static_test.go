package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_EncodeQuery_ReturnsNormalizedVector(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.EncodeQuery(context.Background(), "func parseConfig(path string) error")

	require.NoError(t, err)
	assert.Len(t, vec, Dim)
	assertApproximatelyUnit(t, vec)
}

func TestStaticEmbedder_EmptyTextReturnsZeroVector(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.EncodeQuery(context.Background(), "   ")

	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()

	v1, err := e.EncodeQuery(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := e.EncodeQuery(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

func TestStaticEmbedder_EncodeDocuments_MatchesSingleEncode(t *testing.T) {
	e := NewStaticEmbedder()

	batch, err := e.EncodeDocuments(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, batch, 2)

	single, err := e.EncodeQuery(context.Background(), "alpha")
	require.NoError(t, err)

	assert.Equal(t, single, batch[0])
}

func TestStaticEmbedder_CloseThenEncodeFails(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.EncodeQuery(context.Background(), "hello")
	assert.Error(t, err)
}

func TestStaticEmbedder_DimAndModelName(t *testing.T) {
	e := NewStaticEmbedder()

	assert.Equal(t, Dim, e.Dim())
	assert.Equal(t, "static", e.ModelName())
}

func TestSplitCamelCase_SplitsAcronymsAndWords(t *testing.T) {
	assert.Equal(t, []string{"parse", "HTML", "Doc"}, splitCamelCase("parseHTMLDoc"))
}

func TestQuantizeBinary_PacksMSBFirst(t *testing.T) {
	vec := make([]float32, 384)
	vec[0] = 1.0 // should set bit 0 (0x80 of byte 0)

	packed := QuantizeBinary(vec)

	assert.Equal(t, byte(0x80), packed[0])
}

func TestHammingDistance_IdenticalIsZero(t *testing.T) {
	a := QuantizeBinary(make([]float32, 384))
	b := QuantizeBinary(make([]float32, 384))

	assert.Equal(t, 0, HammingDistance(a, b))
}

func TestHammingDistance_CountsDifferingBits(t *testing.T) {
	va := make([]float32, 384)
	vb := make([]float32, 384)
	va[0] = 1.0

	assert.Equal(t, 1, HammingDistance(QuantizeBinary(va), QuantizeBinary(vb)))
}

func assertApproximatelyUnit(t *testing.T, v []float32) {
	t.Helper()
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}
