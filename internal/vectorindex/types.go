package vectorindex

import (
	"context"
	"fmt"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

// Backend names a vector index representation. Binary and float indexes are
// never mixed within a single instance; switching requires a full rebuild.
type Backend string

const (
	BackendBinary Backend = "binary"
	BackendFloat  Backend = "float"
)

// Result is one nearest-neighbor match. Distance is Hamming popcount for a
// BinaryIndex and squared L2 for a FloatIndex — the two are not comparable
// across backends.
type Result struct {
	ID       int64
	Distance float32
}

// Stats reports index occupancy for diagnostics and mode-consistency checks.
type Stats struct {
	Backend  Backend
	Dim      int
	NTotal   int // slots ever allocated, including logically removed ones
	NextSlot int
	Live     int
	Dead     int
}

// Index is the shared contract for BinaryIndex and FloatIndex. Slot indices
// are append-only and never reused; ids are the stable external identity.
type Index interface {
	// Add appends vectors to the index, one per id. len(ids) must equal
	// len(vectors), and every vector must match Dim. Re-adding an id that is
	// already present logically removes its prior slot first.
	Add(ctx context.Context, ids []int64, vectors [][]float32) error

	// Search returns up to k results in non-decreasing distance order, ties
	// broken by ascending slot index. Logically removed slots are skipped.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// Remove logically deletes each id's slot mapping without reclaiming the
	// slot, returning the number of ids actually found and removed.
	Remove(ctx context.Context, ids []int64) (int, error)

	// Clear reinitializes the backend and all mappings.
	Clear(ctx context.Context) error

	// Persist writes an atomic snapshot to basePath+".bin" (vectors) and
	// basePath+".ids" (slot/id mapping and removed-slot tombstone).
	Persist(basePath string) error

	// Load restores a snapshot written by Persist. A backend or dimension
	// mismatch against the receiver discards the snapshot and leaves the
	// index empty rather than erroring.
	Load(basePath string) error

	Stats() Stats
	Dim() int
}

// New constructs an empty Index for the given backend and dimension.
func New(backend Backend, dim int) (Index, error) {
	switch backend {
	case BackendBinary:
		return NewBinaryIndex(dim), nil
	case BackendFloat:
		return NewFloatIndex(dim), nil
	default:
		return nil, lumenerrors.InputErr(fmt.Sprintf("unknown vector index backend %q", backend), nil)
	}
}

func dimensionMismatch(expected, got int) error {
	return lumenerrors.New(lumenerrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("expected dimension %d, got %d", expected, got), nil)
}
