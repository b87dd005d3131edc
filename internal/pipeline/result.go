package pipeline

import (
	"fmt"
	"time"

	"github.com/lumenary/lumen/internal/hardware"
)

// FileResult is the outcome of indexing one file.
type FileResult struct {
	Success        bool
	ChunksInserted int
	Mode           string
	Duration       time.Duration
	OOMSwitched    bool
	Message        string
	Error          string
}

// String renders a one-line human-readable summary.
func (r FileResult) String() string {
	if !r.Success {
		return fmt.Sprintf("indexing failed: %s", r.Error)
	}
	suffix := ""
	if r.OOMSwitched {
		suffix = " (switched to eco mode under memory pressure)"
	}
	return fmt.Sprintf("indexed %d chunks in %s mode in %s%s", r.ChunksInserted, r.Mode, r.Duration, suffix)
}

// DirectoryResult is the outcome of indexing a directory.
type DirectoryResult struct {
	Success        bool
	FilesIndexed   int
	TotalFiles     int
	ChunksInserted int
	Mode           string
	Duration       time.Duration
	OOMSwitched    bool
	Message        string
	Errors         []string
}

// String renders a one-line human-readable summary.
func (r DirectoryResult) String() string {
	suffix := ""
	if r.OOMSwitched {
		suffix = " (switched to eco mode under memory pressure)"
	}
	s := fmt.Sprintf("indexed %d/%d files, %d chunks, in %s mode in %s%s",
		r.FilesIndexed, r.TotalFiles, r.ChunksInserted, r.Mode, r.Duration, suffix)
	if len(r.Errors) > 0 {
		s += fmt.Sprintf(" (%d errors)", len(r.Errors))
	}
	return s
}

// SearchResult is one ranked hit returned by Processor.Search/SearchHybrid.
type SearchResult struct {
	ID         int64
	Distance   float32
	BM25Score  float64
	FilePath   string
	FileName   string
	Text       string
	ChunkIndex int
	Symbols    string
}

// Stats reports the pipeline's current operating state for diagnostics.
type Stats struct {
	Mode           string
	AutoDetected   bool
	OOMProtection  bool
	ModeSwitched   bool
	ChunksIndexed  int
	FilesIndexed   int
	IndexNTotal    int
	UsingBinary    bool
	EmbedderModel  string
}

// ProgressFunc is called at chunk and file granularity during ingestion.
// It must be invoked from the orchestrator, never from storage or index
// layers, so progress reporting stays decoupled from their internals.
type ProgressFunc func(filename string, done, total int)

// SwitchModeResult reports the outcome of a mode switch, including whether
// the vector index's binary/float representation changed.
type SwitchModeResult struct {
	PreviousMode   string
	NewMode        string
	IndexConverted bool
	Message        string
}

// AutoDetectResult reports the outcome of re-running hardware detection
// against the processor's current mode.
type AutoDetectResult struct {
	DetectedMode string
	CurrentMode  string
	Switched     bool
	AutoDetected bool
	Hardware     hardware.Profile
	SwitchResult *SwitchModeResult
}

// ModeSettingsResult exposes the static per-mode settings table entry for
// the processor's current mode.
type ModeSettingsResult struct {
	Mode         string
	BatchSize    int
	EmbeddingDim int
	Quantization string
	MaxChunkSize int
	Overlap      int
	RAMTargetMB  int
}
