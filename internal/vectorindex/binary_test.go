package vectorindex

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(dim int, positiveIdx ...int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = -1
	}
	for _, idx := range positiveIdx {
		v[idx] = 1
	}
	return v
}

func TestBinaryIndex_AddAndSearchOrdersByDistance(t *testing.T) {
	idx := NewBinaryIndex(8)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []int64{1, 2, 3}, [][]float32{
		vec(8),        // all-zero bits, distance 0 from an all-zero query
		vec(8, 0),     // 1 bit different
		vec(8, 0, 1, 2), // 3 bits different
	}))

	results, err := idx.Search(ctx, vec(8), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, int64(3), results[2].ID)
	assert.True(t, results[0].Distance <= results[1].Distance)
	assert.True(t, results[1].Distance <= results[2].Distance)
}

func TestBinaryIndex_SearchSkipsRemovedSlots(t *testing.T) {
	idx := NewBinaryIndex(8)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []int64{1, 2}, [][]float32{vec(8), vec(8)}))

	n, err := idx.Remove(ctx, []int64{1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := idx.Search(ctx, vec(8), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].ID)
}

func TestBinaryIndex_ReaddingIDOrphansOldSlot(t *testing.T) {
	idx := NewBinaryIndex(8)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []int64{1}, [][]float32{vec(8)}))
	require.NoError(t, idx.Add(ctx, []int64{1}, [][]float32{vec(8, 0, 1, 2, 3)}))

	stats := idx.Stats()
	assert.Equal(t, 2, stats.NTotal)
	assert.Equal(t, 1, stats.Live)
	assert.Equal(t, 1, stats.Dead)

	results, err := idx.Search(ctx, vec(8), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].ID)
}

func TestBinaryIndex_AddRejectsDimensionMismatch(t *testing.T) {
	idx := NewBinaryIndex(8)
	err := idx.Add(context.Background(), []int64{1}, [][]float32{vec(4)})
	assert.Error(t, err)
}

func TestBinaryIndex_ClearResetsState(t *testing.T) {
	idx := NewBinaryIndex(8)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []int64{1}, [][]float32{vec(8)}))

	require.NoError(t, idx.Clear(ctx))

	assert.Equal(t, Stats{Backend: BackendBinary, Dim: 8}, idx.Stats())
}

func TestBinaryIndex_PersistThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "vectors")
	ctx := context.Background()

	original := NewBinaryIndex(8)
	require.NoError(t, original.Add(ctx, []int64{10, 20, 30}, [][]float32{
		vec(8), vec(8, 0), vec(8, 0, 1, 2),
	}))
	_, err := original.Remove(ctx, []int64{20})
	require.NoError(t, err)
	require.NoError(t, original.Persist(base))

	restored := NewBinaryIndex(8)
	require.NoError(t, restored.Load(base))

	assert.Equal(t, original.Stats(), restored.Stats())

	results, err := restored.Search(ctx, vec(8), 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	ids := []int64{results[0].ID, results[1].ID}
	assert.ElementsMatch(t, []int64{10, 30}, ids)
}

func TestBinaryIndex_LoadDiscardsMismatchedDimension(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "vectors")
	ctx := context.Background()

	original := NewBinaryIndex(8)
	require.NoError(t, original.Add(ctx, []int64{1}, [][]float32{vec(8)}))
	require.NoError(t, original.Persist(base))

	restored := NewBinaryIndex(16)
	require.NoError(t, restored.Load(base))

	assert.Equal(t, 0, restored.Stats().NTotal)
}

func TestBinaryIndex_LoadMissingSnapshotIsNotAnError(t *testing.T) {
	idx := NewBinaryIndex(8)
	err := idx.Load(filepath.Join(t.TempDir(), "missing"))
	assert.NoError(t, err)
}

func TestQuantizeToBitsetAndPacked_RoundTrip(t *testing.T) {
	v := vec(16, 0, 5, 15)
	bs := quantizeToBitset(v)
	packed := bitsetToPacked(bs, 16)
	restored := bitsetFromPacked(packed, 16)

	for i := 0; i < 16; i++ {
		assert.Equal(t, bs.Test(uint(i)), restored.Test(uint(i)), "bit %d", i)
	}
}
