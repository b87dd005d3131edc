package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Edge case tests: malformed input, boundary values, and precedence
// ordering that could otherwise fail silently.

func TestLoad_MalformedYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".lumen.yaml"), []byte("mode: [unterminated\n"), 0644))

	_, err := Load(dir)

	assert.Error(t, err)
}

func TestLoadYAML_MissingFileReturnsError(t *testing.T) {
	cfg := NewConfig()

	err := cfg.loadYAML(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestMergeWith_ZeroValuesDoNotOverwriteDefaults(t *testing.T) {
	cfg := NewConfig()
	original := cfg.Storage.SQLiteCacheMB

	cfg.mergeWith(&Config{})

	assert.Equal(t, original, cfg.Storage.SQLiteCacheMB)
}

func TestMergeWith_ExplicitZeroChunkingIsIgnored(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunking.MaxChunkSize = 512

	cfg.mergeWith(&Config{Chunking: ChunkingConfig{MaxChunkSize: 0}})

	assert.Equal(t, 512, cfg.Chunking.MaxChunkSize, "zero is indistinguishable from unset in this merge scheme")
}

func TestApplyEnvOverrides_InvalidIntIsIgnored(t *testing.T) {
	cfg := NewConfig()
	original := cfg.Storage.SQLiteCacheMB

	t.Setenv("LUMEN_SQLITE_CACHE_MB", "not-a-number")
	cfg.applyEnvOverrides()

	assert.Equal(t, original, cfg.Storage.SQLiteCacheMB)
}

func TestApplyEnvOverrides_NegativeChunkOverlapIsIgnored(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunking.Overlap = 50

	t.Setenv("LUMEN_CHUNK_OVERLAP", "-10")
	cfg.applyEnvOverrides()

	assert.Equal(t, 50, cfg.Chunking.Overlap)
}

func TestValidate_ZeroMaxChunkSizeSkipsOverlapCheck(t *testing.T) {
	cfg := NewConfig()
	cfg.Chunking.MaxChunkSize = 0
	cfg.Chunking.Overlap = 0

	assert.NoError(t, cfg.Validate(), "zero chunking fields defer to mode settings, not a conflict")
}

func TestLoad_UserConfigThenProjectConfigPrecedence(t *testing.T) {
	userDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", userDir)
	require.NoError(t, os.MkdirAll(filepath.Join(userDir, "lumen"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "lumen", "config.yaml"), []byte("mode: eco\n"), 0644))

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".lumen.yaml"), []byte("mode: performance\n"), 0644))

	cfg, err := Load(projectDir)

	require.NoError(t, err)
	assert.Equal(t, "performance", cfg.Mode, "project config must win over user config")
}

func TestConfig_JSONRoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Mode = "balanced"

	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, cfg.Mode, decoded.Mode)
	assert.Equal(t, cfg.Embed.Backend, decoded.Embed.Backend)
}

func TestWriteYAML_FailsOnUnwritableDir(t *testing.T) {
	cfg := NewConfig()

	err := cfg.WriteYAML(filepath.Join(t.TempDir(), "nonexistent-subdir", "config.yaml"))

	assert.Error(t, err)
}
