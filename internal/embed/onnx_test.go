package embed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

func TestNewONNXEmbedder_MissingModelReturnsModelUnavailableError(t *testing.T) {
	dir := t.TempDir()

	_, err := NewONNXEmbedder(filepath.Join(dir, "model.onnx"), filepath.Join(dir, "tokenizer.json"), 4)

	assert.Error(t, err)
	assert.Equal(t, lumenerrors.ErrCodeModelUnavailable, lumenerrors.GetCode(err))
}

func TestNewONNXEmbedder_MissingTokenizerReturnsModelUnavailableError(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.onnx")
	// Create a placeholder model file so only the tokenizer is missing.
	assert.NoError(t, os.WriteFile(modelPath, []byte{}, 0644))

	_, err := NewONNXEmbedder(modelPath, filepath.Join(dir, "tokenizer.json"), 4)

	assert.Error(t, err)
	assert.Equal(t, lumenerrors.ErrCodeModelUnavailable, lumenerrors.GetCode(err))
}
