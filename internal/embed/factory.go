package embed

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

// Backend selects which embedder implementation New constructs.
type Backend string

const (
	// BackendONNX runs local inference through onnxruntime; preferred when
	// a model is available since it produces genuine semantic embeddings.
	BackendONNX Backend = "onnx"

	// BackendStatic uses the dependency-free hash embedder; always
	// available, used as the fallback when no ONNX model is configured.
	BackendStatic Backend = "static"
)

// Options configures New.
type Options struct {
	Backend        Backend
	ModelPath      string
	TokenizerPath  string
	BatchSize      int
	QueryCacheSize int
	Logger         *slog.Logger
}

// DefaultModelPath is where `lumen` looks for a bundled ONNX model when
// none is configured explicitly.
func DefaultModelPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lumen", "models", "model.onnx")
	}
	return filepath.Join(home, ".lumen", "models", "model.onnx")
}

// DefaultTokenizerPath mirrors DefaultModelPath for the tokenizer file.
func DefaultTokenizerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lumen", "models", "tokenizer.json")
	}
	return filepath.Join(home, ".lumen", "models", "tokenizer.json")
}

// New constructs an Embedder according to opts, applying LUMEN_EMBED_BACKEND
// as an override and falling back from onnx to static when no model is
// present (an explicit backend=onnx request with a missing model is an
// error instead, so a misconfiguration never silently degrades).
func New(ctx context.Context, opts Options) (Embedder, error) {
	backend := opts.Backend
	explicit := backend != ""
	if env := Backend(strings.ToLower(os.Getenv("LUMEN_EMBED_BACKEND"))); env != "" {
		backend = env
		explicit = true
	}
	if backend == "" {
		backend = BackendONNX
	}

	modelPath := opts.ModelPath
	if modelPath == "" {
		modelPath = DefaultModelPath()
	}
	tokenizerPath := opts.TokenizerPath
	if tokenizerPath == "" {
		tokenizerPath = DefaultTokenizerPath()
	}

	var embedder Embedder
	var err error

	switch backend {
	case BackendStatic:
		embedder = NewStaticEmbedder()

	case BackendONNX:
		embedder, err = NewONNXEmbedder(modelPath, tokenizerPath, opts.BatchSize)
		if err != nil {
			if explicit {
				return nil, err
			}
			// Auto-detection: no model configured is not fatal, degrade to
			// the always-available static backend.
			if opts.Logger != nil {
				opts.Logger.Warn("onnx model unavailable, falling back to static embedder", "error", err)
			}
			embedder, err = NewStaticEmbedder(), nil
		}

	default:
		return nil, lumenerrors.InputErr("embeddings.backend must be 'onnx' or 'static'", nil).
			WithDetail("backend", string(backend))
	}

	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(embedder, opts.QueryCacheSize), nil
}
