package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/lumenary/lumen/internal/chunker"
	"github.com/lumenary/lumen/internal/embed"
	lumenerrors "github.com/lumenary/lumen/internal/errors"
	"github.com/lumenary/lumen/internal/gitignore"
	"github.com/lumenary/lumen/internal/hardware"
	"github.com/lumenary/lumen/internal/metadatastore"
	"github.com/lumenary/lumen/internal/modeset"
	"github.com/lumenary/lumen/internal/symbols"
	"github.com/lumenary/lumen/internal/vectorindex"
)

// defaultQueryCacheSize bounds the embedder's repeated-query cache.
const defaultQueryCacheSize = 256

// snapshotInterval is how many chunks accumulate between periodic index
// persists during streaming ingestion, mirroring the fsync-every-N-rows
// discipline of the original file manager.
const snapshotInterval = 100

// supportedExtensions lists file extensions the processor will read and
// chunk. Anything else is skipped, not an error.
var supportedExtensions = map[string]bool{
	".txt": true, ".md": true, ".py": true, ".js": true, ".ts": true,
	".json": true, ".csv": true, ".html": true, ".css": true,
	".go": true, ".rs": true, ".c": true, ".cpp": true, ".h": true,
	".yaml": true, ".yml": true, ".toml": true, ".conf": true,
}

func isSupportedExtension(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// loadGitignore reads dir's top-level .gitignore, if any, plus the
// always-excluded .git directory. A missing .gitignore is not an error; the
// returned matcher simply never matches.
func loadGitignore(dir string) *gitignore.Matcher {
	m := gitignore.New()
	m.AddPattern(".git/")
	if err := m.AddFromFile(filepath.Join(dir, ".gitignore"), ""); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("failed to read .gitignore", "dir", dir, "error", err)
	}
	return m
}

// ProcessorConfig configures a new Processor. CacheDir holds the vector
// snapshot and metadata database; it is created if missing.
type ProcessorConfig struct {
	Mode          hardware.Mode
	CacheDir      string
	EmbedBackend  embed.Backend
	ModelPath     string
	TokenizerPath string
	Logger        *slog.Logger
	Progress      ProgressFunc
}

type fileMeta struct {
	hash         string
	path         string
	name         string
	fileType     string
	size         int64
	modifiedDate string
}

// Processor runs the streaming ingestion algorithm against one mode's worth
// of embedder, chunker, and vector index, backed by a single metadata store.
// All exported methods serialize on mu: the pipeline has one writer.
type Processor struct {
	mu sync.Mutex

	cacheDir      string
	embedBackend  embed.Backend
	modelPath     string
	tokenizerPath string
	logger        *slog.Logger
	progress      ProgressFunc

	mode     hardware.Mode
	settings modeset.Settings
	embedder embed.Embedder
	chunker  *chunker.Chunker
	index    vectorindex.Index
	metadata *metadatastore.Store

	oomProtection bool
	modeSwitched  bool
	autoDetected  bool
	chunksIndexed int
	filesIndexed  int
	closed        bool
}

// NewProcessor opens the metadata store at cfg.CacheDir, constructs the
// embedder/chunker/index trio for cfg.Mode, and loads any existing vector
// snapshot found there.
func NewProcessor(ctx context.Context, cfg ProcessorConfig) (*Processor, error) {
	if cfg.CacheDir == "" {
		return nil, lumenerrors.InputErr("cache directory is required", nil)
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, lumenerrors.StorageErr("failed to create cache directory", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mode := cfg.Mode
	autoDetected := false
	if !modeset.Valid(mode) {
		if profile, err := hardware.DetectProfile(ctx); err == nil {
			mode = profile.RecommendedMode()
			autoDetected = true
		} else {
			mode = hardware.ModeBalanced
		}
	}

	metaStore, err := metadatastore.Open(filepath.Join(cfg.CacheDir, "metadata.sqlite3"), metadatastore.DefaultConfig())
	if err != nil {
		return nil, err
	}

	p := &Processor{
		cacheDir:      cfg.CacheDir,
		embedBackend:  cfg.EmbedBackend,
		modelPath:     cfg.ModelPath,
		tokenizerPath: cfg.TokenizerPath,
		logger:        logger,
		progress:      cfg.Progress,
		metadata:      metaStore,
		oomProtection: true,
		autoDetected:  autoDetected,
	}

	if err := p.initComponents(ctx, mode); err != nil {
		metaStore.Close()
		return nil, err
	}
	return p, nil
}

func (p *Processor) vectorBasePath() string {
	return filepath.Join(p.cacheDir, "vectors")
}

// initComponents builds a fresh embedder/chunker/index for mode and, only on
// success, swaps them into p. A failure leaves the previous components (if
// any) untouched so callers can roll back cleanly.
func (p *Processor) initComponents(ctx context.Context, mode hardware.Mode) error {
	settings := modeset.For(mode)

	embedder, err := embed.New(ctx, embed.Options{
		Backend:        p.embedBackend,
		ModelPath:      p.modelPath,
		TokenizerPath:  p.tokenizerPath,
		BatchSize:      settings.BatchSize,
		QueryCacheSize: defaultQueryCacheSize,
		Logger:         p.logger,
	})
	if err != nil {
		return lumenerrors.EmbeddingErr("failed to construct embedder", err)
	}

	backend := vectorindex.BackendBinary
	if !settings.UsesBinary() {
		backend = vectorindex.BackendFloat
	}
	idx, err := vectorindex.New(backend, settings.EmbeddingDim)
	if err != nil {
		embedder.Close()
		return err
	}
	if err := idx.Load(p.vectorBasePath()); err != nil {
		embedder.Close()
		return err
	}

	old := p.embedder
	p.mode = mode
	p.settings = settings
	p.embedder = embedder
	p.chunker = chunker.ForMode(mode)
	p.index = idx
	if old != nil {
		old.Close()
	}
	return nil
}

// reinitialize persists the current index, then rebuilds the embedder,
// chunker, and index for a new mode. Used by both SwitchMode and the
// one-shot OOM downgrade; the caller holds mu.
func (p *Processor) reinitialize(ctx context.Context, mode hardware.Mode) error {
	if p.index != nil {
		if err := p.index.Persist(p.vectorBasePath()); err != nil {
			p.logger.Warn("failed to persist index before mode switch", "error", err)
		}
	}
	return p.initComponents(ctx, mode)
}

// SwitchMode rebuilds the pipeline for a new operating mode. Switching
// between binary and float quantization does not migrate existing vectors:
// the new index's Load discards an incompatible snapshot and starts empty,
// exactly as a direct reconstruction of the on-disk representation. If
// reinitializing fails, the processor is rolled back to its previous mode.
// The returned result's IndexConverted reports whether that binary/float
// boundary was crossed, so a caller can tell a representation change from a
// same-representation swap.
func (p *Processor) SwitchMode(ctx context.Context, mode hardware.Mode) (SwitchModeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return SwitchModeResult{}, lumenerrors.StorageErr("processor is closed", nil)
	}
	if !modeset.Valid(mode) {
		return SwitchModeResult{}, lumenerrors.InputErr(fmt.Sprintf("unknown mode %q", mode), nil)
	}

	previous := p.mode
	if mode == previous {
		return SwitchModeResult{
			PreviousMode: string(previous),
			NewMode:      string(mode),
			Message:      fmt.Sprintf("already in %s mode", mode),
		}, nil
	}

	converted := modeset.For(previous).UsesBinary() != modeset.For(mode).UsesBinary()

	if err := p.reinitialize(ctx, mode); err != nil {
		p.logger.Warn("mode switch failed, rolling back", "target", mode, "error", err)
		if rollbackErr := p.reinitialize(ctx, previous); rollbackErr != nil {
			return SwitchModeResult{}, lumenerrors.IndexErr("mode switch failed and rollback to previous mode also failed", rollbackErr)
		}
		return SwitchModeResult{}, lumenerrors.IndexErr(fmt.Sprintf("failed to switch to mode %q", mode), err)
	}
	p.autoDetected = false
	return SwitchModeResult{
		PreviousMode:   string(previous),
		NewMode:        string(mode),
		IndexConverted: converted,
		Message:        fmt.Sprintf("switched to %s mode", mode),
	}, nil
}

// AutoDetectMode re-runs hardware detection and, if the freshly detected
// mode differs from the processor's current one, switches to it.
func (p *Processor) AutoDetectMode(ctx context.Context) (AutoDetectResult, error) {
	profile, err := hardware.DetectProfile(ctx)
	if err != nil {
		return AutoDetectResult{}, lumenerrors.ResourceErr("failed to detect hardware profile", err)
	}
	detected := profile.RecommendedMode()

	p.mu.Lock()
	current := p.mode
	p.mu.Unlock()

	result := AutoDetectResult{
		DetectedMode: string(detected),
		CurrentMode:  string(current),
		Hardware:     profile,
		AutoDetected: true,
	}

	if detected != current {
		switchResult, switchErr := p.SwitchMode(ctx, detected)
		if switchErr != nil {
			return AutoDetectResult{}, switchErr
		}
		result.Switched = true
		result.SwitchResult = &switchResult
		result.CurrentMode = switchResult.NewMode
	}

	p.mu.Lock()
	p.autoDetected = true
	p.mu.Unlock()

	return result, nil
}

// GetModeSettings returns the static per-mode settings table entry for the
// processor's current mode.
func (p *Processor) GetModeSettings() ModeSettingsResult {
	p.mu.Lock()
	settings := p.settings
	p.mu.Unlock()

	return ModeSettingsResult{
		Mode:         string(settings.Mode),
		BatchSize:    settings.BatchSize,
		EmbeddingDim: settings.EmbeddingDim,
		Quantization: string(settings.Quantization),
		MaxChunkSize: settings.MaxChunkSize,
		Overlap:      settings.Overlap,
		RAMTargetMB:  settings.RAMTargetMB,
	}
}

// memoryPressureDetected probes OS-reported available memory against the
// active mode's target. A probe failure is logged and treated as "no
// pressure": Go has no portable way to catch an allocation failure the way
// an exception-based runtime would, so this proactive check is the only
// OOM-avoidance signal available.
func (p *Processor) memoryPressureDetected(ctx context.Context) bool {
	profile, err := hardware.DetectProfile(ctx)
	if err != nil {
		p.logger.Warn("memory pressure probe failed", "error", err)
		return false
	}
	availableMB := profile.AvailableRAMGB * 1024
	return availableMB < float64(p.settings.RAMTargetMB)
}

// downgradeToEco performs the one-shot OOM-protection mode switch. The
// caller holds mu.
func (p *Processor) downgradeToEco(ctx context.Context) bool {
	if err := p.reinitialize(ctx, hardware.ModeEco); err != nil {
		p.logger.Warn("oom downgrade to eco mode failed", "error", err)
		return false
	}
	p.modeSwitched = true
	p.logger.Warn("switched to eco mode under memory pressure")
	return true
}

func computeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", lumenerrors.ExtractionErr("failed to open file for hashing", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		info, statErr := f.Stat()
		if statErr != nil {
			return "", lumenerrors.ExtractionErr("failed to hash file", err)
		}
		fallback := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())))
		return hex.EncodeToString(fallback[:]), nil
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IndexFile hashes, deduplicates, chunks, embeds, and persists one file.
func (p *Processor) IndexFile(ctx context.Context, path string) (FileResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indexFileLocked(ctx, path)
}

func (p *Processor) indexFileLocked(ctx context.Context, path string) (FileResult, error) {
	start := time.Now()
	if p.closed {
		return FileResult{}, lumenerrors.StorageErr("processor is closed", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileResult{Mode: string(p.mode), Error: fmt.Sprintf("cannot stat %s: %v", path, err)}, nil
	}
	if info.IsDir() {
		return FileResult{Mode: string(p.mode), Error: fmt.Sprintf("%s is a directory", path)}, nil
	}

	if !isSupportedExtension(path) {
		return FileResult{Mode: string(p.mode), Message: "unsupported file type", Duration: time.Since(start)}, nil
	}

	hash, err := computeFileHash(path)
	if err != nil {
		return FileResult{Mode: string(p.mode), Error: err.Error()}, nil
	}

	exists, err := p.metadata.CheckHashExists(ctx, hash)
	if err != nil {
		return FileResult{}, err
	}
	if exists {
		return FileResult{
			Success: true, Mode: string(p.mode),
			Message: "file already indexed (duplicate)", Duration: time.Since(start),
		}, nil
	}

	chunks, err := p.chunker.ChunkFile(path)
	if err != nil {
		return FileResult{Mode: string(p.mode), Error: err.Error()}, nil
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			texts = append(texts, c)
		}
	}
	if len(texts) == 0 {
		return FileResult{Mode: string(p.mode), Message: "no text content extracted", Duration: time.Since(start)}, nil
	}

	meta := fileMeta{
		hash:         hash,
		path:         path,
		name:         filepath.Base(path),
		fileType:     strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		size:         info.Size(),
		modifiedDate: info.ModTime().UTC().Format(time.RFC3339),
	}

	annotations := p.symbolAnnotations(ctx, path, texts)
	inserted, oomSwitched, err := p.ingestChunks(ctx, texts, annotations, meta)
	result := FileResult{
		ChunksInserted: inserted,
		Mode:           string(p.mode),
		Duration:       time.Since(start),
		OOMSwitched:    oomSwitched,
	}
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.Success = true
	return result, nil
}

// symbolAnnotations returns, for a code file, the comma-joined symbol names
// overlapping each chunk (see internal/symbols.AnnotateChunks). For a
// language with no registered grammar it returns nil, which ingestChunks
// treats as "no annotation for any chunk."
func (p *Processor) symbolAnnotations(ctx context.Context, path string, chunks []string) []string {
	if !symbols.SupportsExtension(filepath.Ext(path)) {
		return nil
	}
	source, err := os.ReadFile(path)
	if err != nil {
		p.logger.Warn("failed to read file for symbol extraction", "path", path, "error", err)
		return nil
	}
	syms, err := symbols.Extract(ctx, path, source)
	if err != nil {
		p.logger.Warn("symbol extraction failed", "path", path, "error", err)
		return nil
	}
	return symbols.AnnotateChunks(chunks, syms)
}

// ingestChunks embeds and inserts each chunk one at a time, rather than
// batching the whole file, so peak memory is bounded by one chunk's worth
// of work regardless of file size. total_chunks is written as
// metadatastore.TotalChunksPending and filled in once the true count is
// known.
func (p *Processor) ingestChunks(ctx context.Context, chunks []string, annotations []string, meta fileMeta) (int, bool, error) {
	startID, err := p.metadata.GetMaxID(ctx)
	if err != nil {
		return 0, false, err
	}
	nextID := startID + 1
	inserted := 0
	oomSwitched := false

	for chunkIndex, text := range chunks {
		if err := ctx.Err(); err != nil {
			return inserted, oomSwitched, err
		}

		if !p.modeSwitched && p.oomProtection && p.mode != hardware.ModeEco && p.memoryPressureDetected(ctx) {
			if p.downgradeToEco(ctx) {
				oomSwitched = true
			}
		}

		vectors, err := p.embedder.EncodeDocuments(ctx, []string{text})
		if err != nil {
			return inserted, oomSwitched, lumenerrors.EmbeddingErr("failed to embed chunk", err)
		}

		id := nextID
		if err := p.index.Add(ctx, []int64{id}, vectors); err != nil {
			return inserted, oomSwitched, err
		}

		var symbolNames string
		if chunkIndex < len(annotations) {
			symbolNames = annotations[chunkIndex]
		}

		if err := p.metadata.InsertChunk(ctx, metadatastore.Chunk{
			ID:           id,
			FileHash:     meta.hash,
			FilePath:     meta.path,
			FileName:     meta.name,
			FileType:     meta.fileType,
			FileSize:     meta.size,
			ModifiedDate: meta.modifiedDate,
			Text:         text,
			ChunkIndex:   chunkIndex,
			TotalChunks:  metadatastore.TotalChunksPending,
			SymbolNames:  symbolNames,
		}); err != nil {
			return inserted, oomSwitched, err
		}

		inserted++
		nextID++
		p.chunksIndexed++

		if p.progress != nil {
			p.progress(meta.name, inserted, len(chunks))
		}

		if p.mode == hardware.ModeEco {
			runtime.GC()
			debug.FreeOSMemory()
		}

		if inserted%snapshotInterval == 0 {
			if err := p.index.Persist(p.vectorBasePath()); err != nil {
				p.logger.Warn("periodic index snapshot failed", "error", err)
			}
		}
	}

	if inserted > 0 {
		if err := p.metadata.FillInTotalChunks(ctx, meta.hash, inserted); err != nil {
			p.logger.Warn("failed to fill in total chunk count", "file", meta.path, "error", err)
		}
		p.filesIndexed++
	}
	if err := p.index.Persist(p.vectorBasePath()); err != nil {
		p.logger.Warn("index snapshot failed", "error", err)
	}

	return inserted, oomSwitched, nil
}

// IndexDirectory walks dir, optionally recursively, indexing every file
// whose extension is supported (or in extensions, if non-empty).
func (p *Processor) IndexDirectory(ctx context.Context, dir string, recursive bool, extensions []string) (DirectoryResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	if p.closed {
		return DirectoryResult{}, lumenerrors.StorageErr("processor is closed", nil)
	}

	allow := supportedExtensions
	if len(extensions) > 0 {
		allow = make(map[string]bool, len(extensions))
		for _, ext := range extensions {
			allow[strings.ToLower(ext)] = true
		}
	}

	ignore := loadGitignore(dir)

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr == nil && rel != "." && ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if allow[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return DirectoryResult{}, lumenerrors.ExtractionErr("failed to walk directory", err)
	}

	result := DirectoryResult{Mode: string(p.mode), TotalFiles: len(paths)}
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, err.Error())
			break
		}
		fr, err := p.indexFileLocked(ctx, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		if fr.Error != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", path, fr.Error))
			continue
		}
		result.ChunksInserted += fr.ChunksInserted
		if fr.Success && fr.Message == "" {
			result.FilesIndexed++
		}
		if fr.OOMSwitched {
			result.OOMSwitched = true
		}
		if p.progress != nil {
			p.progress(filepath.Base(path), i+1, len(paths))
		}
	}

	result.Mode = string(p.mode)
	result.Duration = time.Since(start)
	result.Success = len(result.Errors) == 0
	return result, nil
}

// Search runs a pure dense nearest-neighbor query and resolves hits against
// the metadata store, preserving the index's distance-ascending order.
func (p *Processor) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, lumenerrors.StorageErr("processor is closed", nil)
	}

	vec, err := p.embedder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, lumenerrors.EmbeddingErr("failed to embed query", err)
	}
	hits, err := p.index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	return p.resolveHits(ctx, hits)
}

func (p *Processor) resolveHits(ctx context.Context, hits []vectorindex.Result) ([]SearchResult, error) {
	if len(hits) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	chunks, err := p.metadata.FetchByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]metadatastore.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		c, ok := byID[h.ID]
		if !ok {
			continue
		}
		results = append(results, SearchResult{
			ID:         h.ID,
			Distance:   h.Distance,
			FilePath:   c.FilePath,
			FileName:   c.FileName,
			Text:       c.Text,
			ChunkIndex: c.ChunkIndex,
			Symbols:    c.SymbolNames,
		})
	}
	return results, nil
}

// SearchHybrid combines the dense vector search with the FTS5 BM25 signal
// via reciprocal rank fusion, then re-resolves the fused ranking against the
// metadata store. candidateMultiplier widens each individual result set
// before fusion so a chunk ranked well by only one signal still has a
// chance to surface.
const (
	rrfK                = 60.0
	candidateMultiplier = 4
)

func (p *Processor) SearchHybrid(ctx context.Context, query string, k int) ([]SearchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, lumenerrors.StorageErr("processor is closed", nil)
	}

	vec, err := p.embedder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, lumenerrors.EmbeddingErr("failed to embed query", err)
	}
	dense, err := p.index.Search(ctx, vec, k*candidateMultiplier)
	if err != nil {
		return nil, err
	}
	bm25, err := p.metadata.SearchBM25(ctx, query, k*candidateMultiplier)
	if err != nil {
		p.logger.Warn("bm25 signal unavailable, falling back to dense-only", "error", err)
		bm25 = nil
	}

	fused := fuseRankings(dense, bm25)
	if len(fused) > k {
		fused = fused[:k]
	}

	hits := make([]vectorindex.Result, len(fused))
	scores := make(map[int64]float64, len(fused))
	for i, f := range fused {
		hits[i] = vectorindex.Result{ID: f.id, Distance: f.distance}
		scores[f.id] = f.bm25Score
	}

	results, err := p.resolveHits(ctx, hits)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].BM25Score = scores[results[i].ID]
	}
	return results, nil
}

type fusedHit struct {
	id        int64
	distance  float32
	bm25Score float64
	rrf       float64
}

// fuseRankings combines a dense ranking and a BM25 ranking with reciprocal
// rank fusion: each list contributes 1/(k+rank) to a chunk's score, so a
// chunk need not appear in both lists to place well, but doing so compounds.
func fuseRankings(dense []vectorindex.Result, bm25 []metadatastore.BM25Result) []fusedHit {
	byID := make(map[int64]*fusedHit)

	for rank, d := range dense {
		byID[d.ID] = &fusedHit{id: d.ID, distance: d.Distance, rrf: 1.0 / (rrfK + float64(rank+1))}
	}
	for rank, b := range bm25 {
		if h, ok := byID[b.ID]; ok {
			h.bm25Score = b.Score
			h.rrf += 1.0 / (rrfK + float64(rank+1))
		} else {
			byID[b.ID] = &fusedHit{id: b.ID, bm25Score: b.Score, rrf: 1.0 / (rrfK + float64(rank+1))}
		}
	}

	fused := make([]fusedHit, 0, len(byID))
	for _, h := range byID {
		fused = append(fused, *h)
	}
	sortFusedByScoreDesc(fused)
	return fused
}

func sortFusedByScoreDesc(fused []fusedHit) {
	for i := 1; i < len(fused); i++ {
		for j := i; j > 0 && fused[j].rrf > fused[j-1].rrf; j-- {
			fused[j], fused[j-1] = fused[j-1], fused[j]
		}
	}
}

// DeleteByHash removes every chunk and vector belonging to the file with
// the given content hash.
func (p *Processor) DeleteByHash(ctx context.Context, hash string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, lumenerrors.StorageErr("processor is closed", nil)
	}

	ids, err := p.metadata.GetIDsByHashes(ctx, []string{hash})
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if _, err := p.index.Remove(ctx, ids); err != nil {
		return 0, err
	}
	removed, err := p.metadata.DeleteByHashes(ctx, []string{hash})
	if err != nil {
		return removed, err
	}
	if err := p.index.Persist(p.vectorBasePath()); err != nil {
		p.logger.Warn("index snapshot failed after delete", "error", err)
	}
	return removed, nil
}

// ClearAll wipes the vector index and metadata store, returning the
// processor to an empty state at the current mode.
func (p *Processor) ClearAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return lumenerrors.StorageErr("processor is closed", nil)
	}
	if err := p.index.Clear(ctx); err != nil {
		return err
	}
	if err := p.metadata.ClearAll(ctx); err != nil {
		return err
	}
	p.chunksIndexed = 0
	p.filesIndexed = 0
	return p.index.Persist(p.vectorBasePath())
}

// Stats reports the processor's current operating state.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	idxStats := vectorindex.Stats{}
	if p.index != nil {
		idxStats = p.index.Stats()
	}
	model := ""
	if p.embedder != nil {
		model = p.embedder.ModelName()
	}
	return Stats{
		Mode:          string(p.mode),
		AutoDetected:  p.autoDetected,
		OOMProtection: p.oomProtection,
		ModeSwitched:  p.modeSwitched,
		ChunksIndexed: p.chunksIndexed,
		FilesIndexed:  p.filesIndexed,
		IndexNTotal:   idxStats.NTotal,
		UsingBinary:   p.settings.UsesBinary(),
		EmbedderModel: model,
	}
}

// Close persists the index and releases the embedder and metadata store.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	if p.index != nil {
		if err := p.index.Persist(p.vectorBasePath()); err != nil {
			firstErr = err
		}
	}
	if p.embedder != nil {
		if err := p.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.metadata != nil {
		if err := p.metadata.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
