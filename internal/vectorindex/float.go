package vectorindex

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"sort"
	"sync"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

// FloatIndex stores full-precision L2-normalized vectors in a flat slice
// reshaped by stride Dim, and ranks candidates by squared L2 distance. It is
// the performance-mode backend, trading memory for ranking precision.
type FloatIndex struct {
	mu sync.RWMutex

	dim      int
	data     []float32 // flat, stride dim; slot n occupies data[n*dim:(n+1)*dim]
	slotToID map[int]int64
	idToSlot map[int64]int
	removed  map[int]struct{}
	nextSlot int
	closed   bool
}

// NewFloatIndex constructs an empty float index for vectors of the given
// dimension.
func NewFloatIndex(dim int) *FloatIndex {
	return &FloatIndex{
		dim:      dim,
		slotToID: make(map[int]int64),
		idToSlot: make(map[int64]int),
		removed:  make(map[int]struct{}),
	}
}

func (idx *FloatIndex) Dim() int { return idx.dim }

func (idx *FloatIndex) row(slot int) []float32 {
	return idx.data[slot*idx.dim : (slot+1)*idx.dim]
}

func (idx *FloatIndex) Add(ctx context.Context, ids []int64, vectors [][]float32) error {
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
			idx.removed[oldSlot] = struct{}{}
			delete(idx.slotToID, oldSlot)
		}

		slot := idx.nextSlot
		idx.nextSlot++
		idx.data = append(idx.data, v...)
		idx.slotToID[slot] = ids[i]
		idx.idToSlot[ids[i]] = slot
	}
	return nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (idx *FloatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, lumenerrors.IndexErr("index is closed", nil)
	}
	if len(query) != idx.dim {
		return nil, dimensionMismatch(idx.dim, len(query))
	}
	ntotal := idx.nextSlot
	if k <= 0 || ntotal == 0 {
		return []Result{}, nil
	}

	type candidate struct {
		slot int
		dist float32
	}
	candidates := make([]candidate, 0, ntotal)
	for slot := 0; slot < ntotal; slot++ {
		if slot%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, dead := idx.removed[slot]; dead {
			continue
		}
		if _, ok := idx.slotToID[slot]; !ok {
			continue
		}
		candidates = append(candidates, candidate{slot: slot, dist: squaredL2(query, idx.row(slot))})
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
		results[i] = Result{ID: idx.slotToID[candidates[i].slot], Distance: candidates[i].dist}
	}
	return results, nil
}

func (idx *FloatIndex) Remove(ctx context.Context, ids []int64) (int, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return 0, lumenerrors.IndexErr("index is closed", nil)
	}

	removed := 0
	for _, id := range ids {
		if slot, exists := idx.idToSlot[id]; exists {
			idx.removed[slot] = struct{}{}
			delete(idx.slotToID, slot)
			delete(idx.idToSlot, id)
			removed++
		}
	}
	return removed, nil
}

func (idx *FloatIndex) Clear(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.data = nil
	idx.slotToID = make(map[int]int64)
	idx.idToSlot = make(map[int64]int)
	idx.removed = make(map[int]struct{})
	idx.nextSlot = 0
	return nil
}

func (idx *FloatIndex) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return Stats{
		Backend:  BackendFloat,
		Dim:      idx.dim,
		NTotal:   idx.nextSlot,
		NextSlot: idx.nextSlot,
		Live:     len(idx.slotToID),
		Dead:     idx.nextSlot - len(idx.slotToID),
	}
}

func (idx *FloatIndex) Persist(basePath string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return lumenerrors.StorageErr("index is closed", nil)
	}

	err := writeVectorFile(basePath+".bin", BackendFloat, idx.dim, idx.nextSlot, func(w io.Writer) error {
		return binary.Write(w, binary.LittleEndian, idx.data)
	})
	if err != nil {
		return err
	}

	removedSlots := make([]byte, 0, len(idx.removed)*4)
	for slot := range idx.removed {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(slot))
		removedSlots = append(removedSlots, buf[:]...)
	}

	return saveIDsMeta(basePath+".ids", idsMeta{
		Backend:   string(BackendFloat),
		Dim:       idx.dim,
		NTotal:    idx.nextSlot,
		NextSlot:  idx.nextSlot,
		SlotToID:  idx.slotToID,
		Tombstone: removedSlots,
	})
}

func (idx *FloatIndex) Load(basePath string) error {
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
	if meta.Backend != string(BackendFloat) || meta.Dim != idx.dim {
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
	if backend != BackendFloat || dim != idx.dim || ntotal != meta.NTotal {
		snapshotMismatch(basePath, "vector snapshot header does not match id map")
		return nil
	}

	data := make([]float32, ntotal*dim)
	if err := binary.Read(body, binary.LittleEndian, data); err != nil && err != io.EOF {
		return lumenerrors.StorageErr("vector snapshot is truncated", err)
	}

	removed := make(map[int]struct{}, len(meta.Tombstone)/4)
	for i := 0; i+4 <= len(meta.Tombstone); i += 4 {
		removed[int(binary.LittleEndian.Uint32(meta.Tombstone[i:i+4]))] = struct{}{}
	}

	idToSlot := make(map[int64]int, len(meta.SlotToID))
	for slot, id := range meta.SlotToID {
		idToSlot[id] = slot
	}

	idx.data = data
	idx.slotToID = meta.SlotToID
	idx.idToSlot = idToSlot
	idx.removed = removed
	idx.nextSlot = meta.NextSlot
	return nil
}
