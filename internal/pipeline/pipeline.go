package pipeline

import (
	"context"
	"fmt"
	"sync"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
	"github.com/lumenary/lumen/internal/hardware"
)

var (
	singletonMu sync.Mutex
	singleton   *Pipeline
)

// Pipeline is the process-wide entry point wrapping a Processor. Only one
// Pipeline should exist per cache directory within a process, and
// construction takes an on-disk lock so two separate processes never share
// one cache directory either.
type Pipeline struct {
	processor *Processor
	lock      *fileLock
	cacheDir  string
}

// Open constructs a Pipeline over cfg.CacheDir, acquiring the process-wide
// lock first. If the lock is already held (by this or another process),
// Open fails rather than blocking: a second pipeline over the same cache
// directory is a configuration error, not something to queue behind.
func Open(ctx context.Context, cfg ProcessorConfig) (*Pipeline, error) {
	if cfg.CacheDir == "" {
		return nil, lumenerrors.InputErr("cache directory is required", nil)
	}

	lock := newFileLock(cfg.CacheDir)
	acquired, err := lock.tryLock()
	if err != nil {
		return nil, lumenerrors.New(lumenerrors.ErrCodeLockHeld, "failed to acquire pipeline lock", err)
	}
	if !acquired {
		return nil, lumenerrors.New(lumenerrors.ErrCodeLockHeld,
			fmt.Sprintf("another process already holds the pipeline lock for %s", cfg.CacheDir), nil).
			WithSuggestion("close the other lumen process or choose a different cache directory")
	}

	processor, err := NewProcessor(ctx, cfg)
	if err != nil {
		lock.unlock()
		return nil, err
	}

	return &Pipeline{processor: processor, lock: lock, cacheDir: cfg.CacheDir}, nil
}

// Global returns the process's singleton Pipeline, opening it on first
// call. Subsequent calls return the same instance regardless of cfg.
func Global(ctx context.Context, cfg ProcessorConfig) (*Pipeline, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		return singleton, nil
	}
	p, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	singleton = p
	return p, nil
}

// ResetGlobal closes and clears the process's singleton Pipeline, if any.
// Intended for tests that need a clean slate between cases.
func ResetGlobal() {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singleton != nil {
		singleton.Close()
		singleton = nil
	}
}

func (pl *Pipeline) IndexFile(ctx context.Context, path string) (FileResult, error) {
	return pl.processor.IndexFile(ctx, path)
}

func (pl *Pipeline) IndexDirectory(ctx context.Context, dir string, recursive bool, extensions []string) (DirectoryResult, error) {
	return pl.processor.IndexDirectory(ctx, dir, recursive, extensions)
}

func (pl *Pipeline) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return pl.processor.Search(ctx, query, k)
}

func (pl *Pipeline) SearchHybrid(ctx context.Context, query string, k int) ([]SearchResult, error) {
	return pl.processor.SearchHybrid(ctx, query, k)
}

func (pl *Pipeline) DeleteByHash(ctx context.Context, hash string) (int, error) {
	return pl.processor.DeleteByHash(ctx, hash)
}

func (pl *Pipeline) ClearAll(ctx context.Context) error {
	return pl.processor.ClearAll(ctx)
}

// SwitchMode rebuilds the pipeline for a new operating mode. See
// Processor.SwitchMode for the binary/float conversion semantics.
func (pl *Pipeline) SwitchMode(ctx context.Context, mode hardware.Mode) (SwitchModeResult, error) {
	return pl.processor.SwitchMode(ctx, mode)
}

// AutoDetectMode re-runs hardware detection and switches mode if it differs
// from the current one. See Processor.AutoDetectMode.
func (pl *Pipeline) AutoDetectMode(ctx context.Context) (AutoDetectResult, error) {
	return pl.processor.AutoDetectMode(ctx)
}

// GetModeSettings returns the settings table entry for the current mode.
func (pl *Pipeline) GetModeSettings() ModeSettingsResult {
	return pl.processor.GetModeSettings()
}

func (pl *Pipeline) Stats() Stats {
	return pl.processor.Stats()
}

// Close releases the processor and the on-disk pipeline lock. Safe to call
// more than once.
func (pl *Pipeline) Close() error {
	err := pl.processor.Close()
	if unlockErr := pl.lock.unlock(); unlockErr != nil && err == nil {
		err = unlockErr
	}
	return err
}
