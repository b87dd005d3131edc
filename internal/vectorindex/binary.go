package vectorindex

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bits-and-blooms/bitset"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

// BinaryIndex stores each vector as a packed bitset and ranks candidates by
// Hamming distance (XOR popcount). It is the default backend for eco and
// balanced mode, where RAM per vector matters more than ranking precision.
type BinaryIndex struct {
	mu sync.RWMutex

	dim      int
	vectors  []*bitset.BitSet
	slotToID map[int]int64
	idToSlot map[int64]int
	removed  *roaring.Bitmap
	nextSlot int
	closed   bool
}

// NewBinaryIndex constructs an empty binary index for vectors of the given
// float dimension (packed to dim/8 bytes per vector internally).
func NewBinaryIndex(dim int) *BinaryIndex {
	return &BinaryIndex{
		dim:      dim,
		slotToID: make(map[int]int64),
		idToSlot: make(map[int64]int),
		removed:  roaring.New(),
	}
}

func (idx *BinaryIndex) Dim() int { return idx.dim }

func (idx *BinaryIndex) Add(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return lumenerrors.InputErr("ids and vectors must have the same length", nil)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return lumenerrors.IndexErr("index is closed", nil)
	}

	for i, v := range vectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(v) != idx.dim {
			return dimensionMismatch(idx.dim, len(v))
		}

		if oldSlot, exists := idx.idToSlot[ids[i]]; exists {
			idx.removed.Add(uint32(oldSlot))
			delete(idx.slotToID, oldSlot)
		}

		slot := idx.nextSlot
		idx.nextSlot++
		idx.vectors = append(idx.vectors, quantizeToBitset(v))
		idx.slotToID[slot] = ids[i]
		idx.idToSlot[ids[i]] = slot
	}
	return nil
}

func (idx *BinaryIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, lumenerrors.IndexErr("index is closed", nil)
	}
	if len(query) != idx.dim {
		return nil, dimensionMismatch(idx.dim, len(query))
	}
	if k <= 0 || len(idx.vectors) == 0 {
		return []Result{}, nil
	}

	queryBits := quantizeToBitset(query)

	type candidate struct {
		slot int
		dist uint
	}
	candidates := make([]candidate, 0, len(idx.vectors))
	for slot, bs := range idx.vectors {
		if slot%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if idx.removed.Contains(uint32(slot)) {
			continue
		}
		if _, ok := idx.slotToID[slot]; !ok {
			continue
		}
		xor := queryBits.SymmetricDifference(bs)
		candidates = append(candidates, candidate{slot: slot, dist: xor.Count()})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].slot < candidates[j].slot
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		results[i] = Result{
			ID:       idx.slotToID[candidates[i].slot],
			Distance: float32(candidates[i].dist),
		}
	}
	return results, nil
}

func (idx *BinaryIndex) Remove(ctx context.Context, ids []int64) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return 0, lumenerrors.IndexErr("index is closed", nil)
	}

	removed := 0
	for _, id := range ids {
		if slot, exists := idx.idToSlot[id]; exists {
			idx.removed.Add(uint32(slot))
			delete(idx.slotToID, slot)
			delete(idx.idToSlot, id)
			removed++
		}
	}
	return removed, nil
}

func (idx *BinaryIndex) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors = nil
	idx.slotToID = make(map[int]int64)
	idx.idToSlot = make(map[int64]int)
	idx.removed = roaring.New()
	idx.nextSlot = 0
	return nil
}

func (idx *BinaryIndex) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		Backend:  BackendBinary,
		Dim:      idx.dim,
		NTotal:   len(idx.vectors),
		NextSlot: idx.nextSlot,
		Live:     len(idx.slotToID),
		Dead:     len(idx.vectors) - len(idx.slotToID),
	}
}

func (idx *BinaryIndex) Persist(basePath string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return lumenerrors.StorageErr("index is closed", nil)
	}

	err := writeVectorFile(basePath+".bin", BackendBinary, idx.dim, len(idx.vectors), func(w io.Writer) error {
		for _, bs := range idx.vectors {
			if _, err := w.Write(bitsetToPacked(bs, idx.dim)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	tombstone, err := tombstoneBytes(idx.removed)
	if err != nil {
		return lumenerrors.StorageErr("failed to serialize tombstone bitmap", err)
	}

	return saveIDsMeta(basePath+".ids", idsMeta{
		Backend:   string(BackendBinary),
		Dim:       idx.dim,
		NTotal:    len(idx.vectors),
		NextSlot:  idx.nextSlot,
		SlotToID:  idx.slotToID,
		Tombstone: tombstone,
	})
}

func (idx *BinaryIndex) Load(basePath string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return lumenerrors.StorageErr("index is closed", nil)
	}

	meta, err := loadIDsMeta(basePath + ".ids")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if meta.Backend != string(BackendBinary) || meta.Dim != idx.dim {
		snapshotMismatch(basePath, "backend or dimension does not match the configured index")
		return nil
	}

	backend, dim, ntotal, body, err := readVectorFile(basePath + ".bin")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if backend != BackendBinary || dim != idx.dim || ntotal != meta.NTotal {
		snapshotMismatch(basePath, "vector snapshot header does not match id map")
		return nil
	}

	rowBytes := (dim + 7) / 8
	vectors := make([]*bitset.BitSet, 0, ntotal)
	row := make([]byte, rowBytes)
	for i := 0; i < ntotal; i++ {
		if _, err := io.ReadFull(body, row); err != nil {
			return lumenerrors.StorageErr("vector snapshot is truncated", err)
		}
		vectors = append(vectors, bitsetFromPacked(row, dim))
	}

	removed, err := tombstoneFromBytes(meta.Tombstone)
	if err != nil {
		return lumenerrors.StorageErr("failed to deserialize tombstone bitmap", err)
	}

	idToSlot := make(map[int64]int, len(meta.SlotToID))
	for slot, id := range meta.SlotToID {
		idToSlot[id] = slot
	}

	idx.vectors = vectors
	idx.slotToID = meta.SlotToID
	idx.idToSlot = idToSlot
	idx.removed = removed
	idx.nextSlot = meta.NextSlot
	return nil
}

// quantizeToBitset sets bit i whenever v[i] is strictly positive, matching
// internal/embed.QuantizeBinary's threshold so float and binary backends
// agree on which features are "on".
func quantizeToBitset(v []float32) *bitset.BitSet {
	bs := bitset.New(uint(len(v)))
	for i, val := range v {
		if val > 0 {
			bs.Set(uint(i))
		}
	}
	return bs
}

// bitsetToPacked renders a bitset to the same MSB-first byte packing as
// internal/embed.QuantizeBinary, so on-disk vectors.bin rows are byte-
// identical to an equivalent float vector quantized directly.
func bitsetToPacked(bs *bitset.BitSet, dim int) []byte {
	packed := make([]byte, (dim+7)/8)
	for i := 0; i < dim; i++ {
		if bs.Test(uint(i)) {
			packed[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return packed
}

func bitsetFromPacked(packed []byte, dim int) *bitset.BitSet {
	bs := bitset.New(uint(dim))
	for i := 0; i < dim; i++ {
		if packed[i/8]&(1<<(7-uint(i%8))) != 0 {
			bs.Set(uint(i))
		}
	}
	return bs
}
