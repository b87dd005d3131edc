package vectorindex

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring/v2"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

const (
	vectorFileMagic  = "LMV1"
	vectorFileVersion = uint8(1)

	binaryBackendByte = uint8(0)
	floatBackendByte  = uint8(1)
)

// idsMeta is gob-encoded to basePath+".ids": the slot/id mapping, the
// tombstone of logically removed slots (a serialized roaring bitmap for
// BinaryIndex, a list of little-endian uint32 slots for FloatIndex), and enough header
// information to detect a stale or incompatible snapshot on Load.
type idsMeta struct {
	Backend   string
	Dim       int
	NTotal    int
	NextSlot  int
	SlotToID  map[int]int64
	Tombstone []byte
}

// writeVectorFile writes the ".bin" snapshot: a small fixed header followed
// by rowWriter's raw row bytes, via the same atomic temp-file-then-rename
// discipline the teacher's HNSW store uses for its own index snapshots.
func writeVectorFile(path string, backend Backend, dim, ntotal int, rowWriter func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return lumenerrors.StorageErr("failed to create index directory", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return lumenerrors.StorageErr("failed to create vector snapshot file", err)
	}

	writeErr := func() error {
		if _, err := io.WriteString(file, vectorFileMagic); err != nil {
			return err
		}
		if err := binary.Write(file, binary.LittleEndian, vectorFileVersion); err != nil {
			return err
		}
		backendByte := binaryBackendByte
		if backend == BackendFloat {
			backendByte = floatBackendByte
		}
		if err := binary.Write(file, binary.LittleEndian, backendByte); err != nil {
			return err
		}
		if err := binary.Write(file, binary.LittleEndian, int32(dim)); err != nil {
			return err
		}
		if err := binary.Write(file, binary.LittleEndian, int32(ntotal)); err != nil {
			return err
		}
		return rowWriter(file)
	}()

	if writeErr != nil {
		file.Close()
		os.Remove(tmpPath)
		return lumenerrors.StorageErr("failed to write vector snapshot", writeErr)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return lumenerrors.StorageErr("failed to close vector snapshot", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return lumenerrors.StorageErr("failed to install vector snapshot", err)
	}
	return nil
}

// readVectorFile reads and validates the fixed header, returning a reader
// positioned at the start of the row data.
func readVectorFile(path string) (backend Backend, dim, ntotal int, body *bytes.Reader, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, 0, nil, err
	}
	r := bytes.NewReader(data)

	magic := make([]byte, len(vectorFileMagic))
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != vectorFileMagic {
		return "", 0, 0, nil, lumenerrors.New(lumenerrors.ErrCodeIndexCorrupt, "vector snapshot has an invalid header", err)
	}
	var version, backendByte uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return "", 0, 0, nil, lumenerrors.New(lumenerrors.ErrCodeIndexCorrupt, "vector snapshot is truncated", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &backendByte); err != nil {
		return "", 0, 0, nil, lumenerrors.New(lumenerrors.ErrCodeIndexCorrupt, "vector snapshot is truncated", err)
	}
	var dim32, ntotal32 int32
	if err := binary.Read(r, binary.LittleEndian, &dim32); err != nil {
		return "", 0, 0, nil, lumenerrors.New(lumenerrors.ErrCodeIndexCorrupt, "vector snapshot is truncated", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &ntotal32); err != nil {
		return "", 0, 0, nil, lumenerrors.New(lumenerrors.ErrCodeIndexCorrupt, "vector snapshot is truncated", err)
	}

	backend = BackendBinary
	if backendByte == floatBackendByte {
		backend = BackendFloat
	}
	return backend, int(dim32), int(ntotal32), r, nil
}

func saveIDsMeta(path string, meta idsMeta) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return lumenerrors.StorageErr("failed to create index directory", err)
	}
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return lumenerrors.StorageErr("failed to create id map file", err)
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return lumenerrors.StorageErr("failed to encode id map", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return lumenerrors.StorageErr("failed to close id map file", err)
	}
	return os.Rename(tmpPath, path)
}

func loadIDsMeta(path string) (idsMeta, error) {
	var meta idsMeta
	file, err := os.Open(path)
	if err != nil {
		return meta, err
	}
	defer file.Close()
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return meta, lumenerrors.New(lumenerrors.ErrCodeIndexCorrupt, "id map is corrupt", err)
	}
	return meta, nil
}

func tombstoneBytes(removed *roaring.Bitmap) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := removed.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize tombstone bitmap: %w", err)
	}
	return buf.Bytes(), nil
}

func tombstoneFromBytes(data []byte) (*roaring.Bitmap, error) {
	removed := roaring.New()
	if len(data) == 0 {
		return removed, nil
	}
	if _, err := removed.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("deserialize tombstone bitmap: %w", err)
	}
	return removed, nil
}

// snapshotMismatch logs why a snapshot was rejected and the index is left
// empty, matching spec behavior: a mismatched backend or dimension discards
// rather than errors.
func snapshotMismatch(path, reason string) {
	slog.Warn("discarding incompatible vector index snapshot", slog.String("path", path), slog.String("reason", reason))
}
