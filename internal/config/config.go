package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete lumen configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	CacheDir string         `yaml:"cache_dir" json:"cache_dir"`
	Mode     string         `yaml:"mode" json:"mode"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Embed    EmbedConfig    `yaml:"embeddings" json:"embeddings"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Log      LogConfig      `yaml:"logging" json:"logging"`
}

// ChunkingConfig configures the paragraph/sentence chunker.
// Zero values mean "derive from mode settings" (see internal/modeset).
type ChunkingConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size" json:"max_chunk_size"`
	Overlap      int `yaml:"overlap" json:"overlap"`
}

// EmbedConfig configures the embedding backend.
type EmbedConfig struct {
	// Backend selects the embedder: "onnx" (default, falls back to static
	// if no model is available), or "static" to force the hash-based backend.
	Backend string `yaml:"backend" json:"backend"`

	// ModelPath is the path to the ONNX model file. Empty uses the
	// bundled default search path (~/.lumen/models/).
	ModelPath string `yaml:"model_path" json:"model_path"`

	// TokenizerPath is the path to the tokenizer.json for the ONNX backend.
	TokenizerPath string `yaml:"tokenizer_path" json:"tokenizer_path"`

	// QueryCacheSize is not read by the pipeline, which bounds its LRU cache
	// of query embeddings at 256 entries.
	QueryCacheSize int `yaml:"query_cache_size" json:"query_cache_size"`
}

// StorageConfig configures the metadata store and vector index files.
type StorageConfig struct {
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`

	// SnapshotInterval is not read by the pipeline, which snapshots the
	// vector index to disk every 100 inserted chunks.
	SnapshotInterval int `yaml:"snapshot_interval" json:"snapshot_interval"`
}

// LogConfig configures file logging.
type LogConfig struct {
	Level   string `yaml:"level" json:"level"`
	Debug   bool   `yaml:"debug" json:"debug"`
	LogPath string `yaml:"log_path" json:"log_path"`
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		Version:  1,
		CacheDir: defaultCacheDir(),
		Mode:     "auto",
		Chunking: ChunkingConfig{
			MaxChunkSize: 0, // derive from mode
			Overlap:      0, // derive from mode
		},
		Embed: EmbedConfig{
			Backend:        "onnx",
			QueryCacheSize: 1000,
		},
		Storage: StorageConfig{
			SQLiteCacheMB:    64,
			SnapshotInterval: 100,
		},
		Log: LogConfig{
			Level: "info",
			Debug: false,
		},
	}
}

// defaultCacheDir returns ~/.lumen as the default cache root.
func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".lumen")
	}
	return filepath.Join(home, ".lumen")
}

// GetUserConfigPath returns the path to the user/global configuration file,
// honoring XDG_CONFIG_HOME when set.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "lumen", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "lumen", "config.yaml")
	}
	return filepath.Join(home, ".config", "lumen", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global config file if present.
// A missing file is not an error.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load loads configuration from the given project directory, applying
// settings in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/lumen/config.yaml)
//  3. Project config (.lumen.yaml in dir)
//  4. Environment variables (LUMEN_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load .lumen.yaml or .lumen.yml from dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".lumen.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".lumen.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.CacheDir != "" {
		c.CacheDir = other.CacheDir
	}
	if other.Mode != "" {
		c.Mode = other.Mode
	}

	if other.Chunking.MaxChunkSize != 0 {
		c.Chunking.MaxChunkSize = other.Chunking.MaxChunkSize
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	if other.Embed.Backend != "" {
		c.Embed.Backend = other.Embed.Backend
	}
	if other.Embed.ModelPath != "" {
		c.Embed.ModelPath = other.Embed.ModelPath
	}
	if other.Embed.TokenizerPath != "" {
		c.Embed.TokenizerPath = other.Embed.TokenizerPath
	}
	if other.Embed.QueryCacheSize != 0 {
		c.Embed.QueryCacheSize = other.Embed.QueryCacheSize
	}

	if other.Storage.SQLiteCacheMB != 0 {
		c.Storage.SQLiteCacheMB = other.Storage.SQLiteCacheMB
	}
	if other.Storage.SnapshotInterval != 0 {
		c.Storage.SnapshotInterval = other.Storage.SnapshotInterval
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Debug {
		c.Log.Debug = other.Log.Debug
	}
	if other.Log.LogPath != "" {
		c.Log.LogPath = other.Log.LogPath
	}
}

// applyEnvOverrides applies LUMEN_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LUMEN_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("LUMEN_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("LUMEN_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.MaxChunkSize = n
		}
	}
	if v := os.Getenv("LUMEN_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.Overlap = n
		}
	}
	if v := os.Getenv("LUMEN_EMBED_BACKEND"); v != "" {
		c.Embed.Backend = v
	}
	if v := os.Getenv("LUMEN_MODEL_PATH"); v != "" {
		c.Embed.ModelPath = v
	}
	if v := os.Getenv("LUMEN_TOKENIZER_PATH"); v != "" {
		c.Embed.TokenizerPath = v
	}
	if v := os.Getenv("LUMEN_SQLITE_CACHE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Storage.SQLiteCacheMB = n
		}
	}
	if v := os.Getenv("LUMEN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LUMEN_DEBUG"); v != "" {
		c.Log.Debug = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	validModes := map[string]bool{"auto": true, "eco": true, "balanced": true, "performance": true}
	if !validModes[strings.ToLower(c.Mode)] {
		return fmt.Errorf("mode must be 'auto', 'eco', 'balanced', or 'performance', got %s", c.Mode)
	}

	validBackends := map[string]bool{"onnx": true, "static": true}
	if !validBackends[strings.ToLower(c.Embed.Backend)] {
		return fmt.Errorf("embeddings.backend must be 'onnx' or 'static', got %s", c.Embed.Backend)
	}

	if c.Chunking.MaxChunkSize < 0 {
		return fmt.Errorf("chunking.max_chunk_size must be non-negative, got %d", c.Chunking.MaxChunkSize)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunking.overlap must be non-negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.Overlap >= c.Chunking.MaxChunkSize && c.Chunking.MaxChunkSize > 0 {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than max_chunk_size (%d)", c.Chunking.Overlap, c.Chunking.MaxChunkSize)
	}

	if c.Storage.SQLiteCacheMB < 0 {
		return fmt.Errorf("storage.sqlite_cache_mb must be non-negative, got %d", c.Storage.SQLiteCacheMB)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
