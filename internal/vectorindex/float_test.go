package vectorindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatVec(values ...float32) []float32 { return values }

func TestFloatIndex_AddAndSearchOrdersByDistance(t *testing.T) {
	idx := NewFloatIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []int64{1, 2, 3}, [][]float32{
		floatVec(0, 0),
		floatVec(1, 0),
		floatVec(5, 5),
	}))

	results, err := idx.Search(ctx, floatVec(0, 0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, int64(3), results[2].ID)
	assert.Equal(t, float32(0), results[0].Distance)
	assert.Equal(t, float32(1), results[1].Distance)
}

func TestFloatIndex_SearchRespectsK(t *testing.T) {
	idx := NewFloatIndex(2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []int64{1, 2, 3}, [][]float32{
		floatVec(0, 0), floatVec(1, 1), floatVec(2, 2),
	}))

	results, err := idx.Search(ctx, floatVec(0, 0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestFloatIndex_RemoveThenSearchSkipsTombstonedSlot(t *testing.T) {
	idx := NewFloatIndex(2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []int64{1, 2}, [][]float32{floatVec(0, 0), floatVec(0, 0)}))

	n, err := idx.Remove(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := idx.Search(ctx, floatVec(0, 0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestFloatIndex_PersistThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "vectors")
	ctx := context.Background()

	original := NewFloatIndex(3)
	require.NoError(t, original.Add(ctx, []int64{100, 200}, [][]float32{
		floatVec(1, 2, 3), floatVec(4, 5, 6),
	}))
	require.NoError(t, original.Persist(base))

	restored := NewFloatIndex(3)
	require.NoError(t, restored.Load(base))

	assert.Equal(t, original.Stats(), restored.Stats())

	results, err := restored.Search(ctx, floatVec(1, 2, 3), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(100), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestFloatIndex_LoadDiscardsMismatchedBackend(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "vectors")
	ctx := context.Background()

	binIdx := NewBinaryIndex(8)
	require.NoError(t, binIdx.Add(ctx, []int64{1}, [][]float32{vec(8)}))
	require.NoError(t, binIdx.Persist(base))

	floatIdx := NewFloatIndex(8)
	require.NoError(t, floatIdx.Load(base))

	assert.Equal(t, 0, floatIdx.Stats().NTotal)
}

func TestNewConstructsRequestedBackend(t *testing.T) {
	binIdx, err := New(BackendBinary, 8)
	require.NoError(t, err)
	assert.IsType(t, &BinaryIndex{}, binIdx)

	floatIdx, err := New(BackendFloat, 8)
	require.NoError(t, err)
	assert.IsType(t, &FloatIndex{}, floatIdx)

	_, err = New(Backend("quantum"), 8)
	assert.Error(t, err)
}
