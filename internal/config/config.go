package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
)

// Config represents the complete ragstore configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Compaction CompactionConfig `yaml:"compaction" json:"compaction"`
}

// StorageConfig configures where the store lives on disk.
type StorageConfig struct {
	// Path is the store directory (documents.db, vectors.gob, lock file).
	Path string `yaml:"path" json:"path"`

	// SQLiteCacheMB is the SQLite page cache size in MB (default: 64).
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// ChunkingConfig configures the recursive text splitter.
type ChunkingConfig struct {
	Size       int      `yaml:"size" json:"size"`
	Overlap    int      `yaml:"overlap" json:"overlap"`
	Separators []string `yaml:"separators" json:"separators"`

	// IDScheme selects chunk id derivation: "content" (default) or "prefix".
	IDScheme string `yaml:"id_scheme" json:"id_scheme"`
}

// IndexConfig configures the approximate vector index.
type IndexConfig struct {
	// Backend is "auto", "hnsw" or "bruteforce".
	Backend        string `yaml:"backend" json:"backend"`
	MaxElements    int    `yaml:"max_elements" json:"max_elements"`
	M              int    `yaml:"m" json:"m"`
	EfConstruction int    `yaml:"ef_construction" json:"ef_construction"`
	EfSearch       int    `yaml:"ef_search" json:"ef_search"`
}

// SearchConfig configures hybrid search defaults.
type SearchConfig struct {
	DefaultK int `yaml:"default_k" json:"default_k"`

	// HybridAlpha weights semantic similarity against keyword relevance.
	// 1.0 is pure semantic, 0.0 pure keyword.
	HybridAlpha float64 `yaml:"hybrid_alpha" json:"hybrid_alpha"`

	// KeywordBackend selects "sqlite" (FTS5, default) or "bleve".
	KeywordBackend string `yaml:"keyword_backend" json:"keyword_backend"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider      string        `yaml:"provider" json:"provider"`
	Model         string        `yaml:"model" json:"model"`
	Dimensions    int           `yaml:"dimensions" json:"dimensions"`
	BatchSize     int           `yaml:"batch_size" json:"batch_size"`
	Workers       int           `yaml:"workers" json:"workers"`
	CacheSize     int           `yaml:"cache_size" json:"cache_size"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	OllamaHost    string        `yaml:"ollama_host" json:"ollama_host"`
	OpenAIBaseURL string        `yaml:"openai_base_url" json:"openai_base_url"`
	OpenAIAPIKey  string        `yaml:"openai_api_key" json:"-"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// CompactionConfig configures background compaction while serving.
type CompactionConfig struct {
	// Enabled turns on scheduled compaction. Default: true
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Schedule is a cron spec or descriptor such as "@every 5m".
	Schedule string `yaml:"schedule" json:"schedule"`

	// TombstoneThreshold is the tombstone ratio (tombstones / slots) at
	// which compaction becomes eligible. Range 0.0-1.0, default 0.2.
	TombstoneThreshold float64 `yaml:"tombstone_threshold" json:"tombstone_threshold"`

	// MinTombstones skips small indexes. Default: 100
	MinTombstones int `yaml:"min_tombstones" json:"min_tombstones"`

	// IdleTimeout is how long the store must go without a search before
	// compacting. Default: "30s"
	IdleTimeout string `yaml:"idle_timeout" json:"idle_timeout"`

	// Cooldown is the minimum time between compactions. Default: "1h"
	Cooldown string `yaml:"cooldown" json:"cooldown"`
}

// NewConfig creates a new Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Path:          defaultStoragePath(),
			SQLiteCacheMB: 64,
		},
		Chunking: ChunkingConfig{
			Size:       512,
			Overlap:    50,
			Separators: []string{"\n\n", "\n", ". ", " "},
			IDScheme:   "content",
		},
		Index: IndexConfig{
			Backend:        "auto",
			MaxElements:    100000,
			M:              16,
			EfConstruction: 200,
			EfSearch:       50,
		},
		Search: SearchConfig{
			DefaultK:       5,
			HybridAlpha:    0.7,
			KeywordBackend: "sqlite",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "",
			Dimensions: 256,
			BatchSize:  32,
			Workers:    runtime.NumCPU(),
			CacheSize:  1000,
			Timeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Compaction: CompactionConfig{
			Enabled:            true,
			Schedule:           "@every 5m",
			TombstoneThreshold: 0.2,
			MinTombstones:      100,
			IdleTimeout:        "30s",
			Cooldown:           "1h",
		},
	}
}

// defaultStoragePath returns ~/.ragstore/data, falling back to the temp dir.
func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ragstore", "data")
	}
	return filepath.Join(home, ".ragstore", "data")
}

// GetUserConfigPath returns the path to the user configuration file.
//   - $XDG_CONFIG_HOME/ragstore/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/ragstore/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ragstore", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ragstore", "config.yaml")
	}
	return filepath.Join(home, ".config", "ragstore", "config.yaml")
}

// Load loads configuration for the project rooted at dir.
// Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/ragstore/config.yaml)
//  3. Project config (.ragstore.yaml in dir)
//  4. Environment variables (RAGSTORE_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromDir loads .ragstore.yaml, or .ragstore.yml as a fallback.
func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".ragstore.yaml", ".ragstore.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML parses path and merges its non-zero values over c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return ragerrors.New(ragerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)

	var explicit struct {
		Compaction struct {
			Enabled *bool `yaml:"enabled"`
		} `yaml:"compaction"`
	}
	if err := yaml.Unmarshal(data, &explicit); err == nil && explicit.Compaction.Enabled != nil {
		c.Compaction.Enabled = *explicit.Compaction.Enabled
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}
	if other.Storage.SQLiteCacheMB != 0 {
		c.Storage.SQLiteCacheMB = other.Storage.SQLiteCacheMB
	}

	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}
	if len(other.Chunking.Separators) > 0 {
		c.Chunking.Separators = other.Chunking.Separators
	}
	if other.Chunking.IDScheme != "" {
		c.Chunking.IDScheme = other.Chunking.IDScheme
	}

	if other.Index.Backend != "" {
		c.Index.Backend = other.Index.Backend
	}
	if other.Index.MaxElements != 0 {
		c.Index.MaxElements = other.Index.MaxElements
	}
	if other.Index.M != 0 {
		c.Index.M = other.Index.M
	}
	if other.Index.EfConstruction != 0 {
		c.Index.EfConstruction = other.Index.EfConstruction
	}
	if other.Index.EfSearch != 0 {
		c.Index.EfSearch = other.Index.EfSearch
	}

	if other.Search.DefaultK != 0 {
		c.Search.DefaultK = other.Search.DefaultK
	}
	// A literal 0 alpha (pure keyword) is only expressible via env override.
	if other.Search.HybridAlpha != 0 {
		c.Search.HybridAlpha = other.Search.HybridAlpha
	}
	if other.Search.KeywordBackend != "" {
		c.Search.KeywordBackend = other.Search.KeywordBackend
	}

	e := other.Embeddings
	if e.Provider != "" {
		c.Embeddings.Provider = e.Provider
	}
	if e.Model != "" {
		c.Embeddings.Model = e.Model
	}
	if e.Dimensions != 0 {
		c.Embeddings.Dimensions = e.Dimensions
	}
	if e.BatchSize != 0 {
		c.Embeddings.BatchSize = e.BatchSize
	}
	if e.Workers != 0 {
		c.Embeddings.Workers = e.Workers
	}
	if e.CacheSize != 0 {
		c.Embeddings.CacheSize = e.CacheSize
	}
	if e.Timeout != 0 {
		c.Embeddings.Timeout = e.Timeout
	}
	if e.OllamaHost != "" {
		c.Embeddings.OllamaHost = e.OllamaHost
	}
	if e.OpenAIBaseURL != "" {
		c.Embeddings.OpenAIBaseURL = e.OpenAIBaseURL
	}
	if e.OpenAIAPIKey != "" {
		c.Embeddings.OpenAIAPIKey = e.OpenAIAPIKey
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	// Compaction.Enabled is applied by loadYAML, which can tell an
	// explicit false from an omitted key.
	cp := other.Compaction
	if cp.Schedule != "" {
		c.Compaction.Schedule = cp.Schedule
	}
	if cp.TombstoneThreshold != 0 {
		c.Compaction.TombstoneThreshold = cp.TombstoneThreshold
	}
	if cp.MinTombstones != 0 {
		c.Compaction.MinTombstones = cp.MinTombstones
	}
	if cp.IdleTimeout != "" {
		c.Compaction.IdleTimeout = cp.IdleTimeout
	}
	if cp.Cooldown != "" {
		c.Compaction.Cooldown = cp.Cooldown
	}
}

// applyEnvOverrides applies RAGSTORE_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGSTORE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("RAGSTORE_HYBRID_ALPHA"); v != "" {
		if a, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && a >= 0 && a <= 1 {
			c.Search.HybridAlpha = a
		}
	}
	if v := os.Getenv("RAGSTORE_KEYWORD_BACKEND"); v != "" {
		c.Search.KeywordBackend = v
	}
	if v := os.Getenv("RAGSTORE_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("RAGSTORE_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RAGSTORE_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RAGSTORE_EMBEDDINGS_DIMENSIONS"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			c.Embeddings.Dimensions = d
		}
	}
	if v := os.Getenv("RAGSTORE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("RAGSTORE_OPENAI_BASE_URL"); v != "" {
		c.Embeddings.OpenAIBaseURL = v
	}
	if v := os.Getenv("RAGSTORE_OPENAI_API_KEY"); v != "" {
		c.Embeddings.OpenAIAPIKey = v
	}
	if v := os.Getenv("RAGSTORE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("RAGSTORE_COMPACTION_ENABLED"); v != "" {
		c.Compaction.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("RAGSTORE_COMPACTION_SCHEDULE"); v != "" {
		c.Compaction.Schedule = v
	}
}

// Validate reports the first invalid setting as a ConfigurationError.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return ragerrors.ConfigurationError(fmt.Sprintf(format, args...), nil)
	}

	if c.Storage.Path == "" {
		return invalid("storage.path must not be empty")
	}

	if c.Chunking.Size <= 0 {
		return invalid("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return invalid("chunking.overlap must be in [0, size), got %d with size %d",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	for _, sep := range c.Chunking.Separators {
		if sep == "" {
			return invalid("chunking.separators must not contain empty strings")
		}
	}
	if !oneOf(c.Chunking.IDScheme, "content", "prefix") {
		return invalid("chunking.id_scheme must be 'content' or 'prefix', got %s", c.Chunking.IDScheme)
	}

	if !oneOf(c.Index.Backend, "auto", "hnsw", "bruteforce") {
		return invalid("index.backend must be 'auto', 'hnsw' or 'bruteforce', got %s", c.Index.Backend)
	}
	if c.Index.MaxElements <= 0 || c.Index.M <= 0 || c.Index.EfConstruction <= 0 || c.Index.EfSearch <= 0 {
		return invalid("index parameters must be positive")
	}

	if c.Search.HybridAlpha < 0 || c.Search.HybridAlpha > 1 {
		return invalid("search.hybrid_alpha must be between 0 and 1, got %f", c.Search.HybridAlpha)
	}
	if c.Search.DefaultK <= 0 {
		return invalid("search.default_k must be positive, got %d", c.Search.DefaultK)
	}
	if !oneOf(c.Search.KeywordBackend, "sqlite", "bleve") {
		return invalid("search.keyword_backend must be 'sqlite' or 'bleve', got %s", c.Search.KeywordBackend)
	}

	if !oneOf(c.Embeddings.Provider, "static", "ollama", "openai") {
		return invalid("embeddings.provider must be 'static', 'ollama' or 'openai', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return invalid("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize <= 0 {
		return invalid("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}

	if !oneOf(c.Server.Transport, "stdio") {
		return invalid("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	if !oneOf(c.Server.LogLevel, "debug", "info", "warn", "error") {
		return invalid("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Compaction.Enabled {
		if c.Compaction.Schedule == "" {
			return invalid("compaction.schedule must not be empty when compaction is enabled")
		}
		if c.Compaction.TombstoneThreshold < 0 || c.Compaction.TombstoneThreshold > 1 {
			return invalid("compaction.tombstone_threshold must be between 0 and 1, got %f", c.Compaction.TombstoneThreshold)
		}
		if c.Compaction.MinTombstones < 0 {
			return invalid("compaction.min_tombstones must be non-negative, got %d", c.Compaction.MinTombstones)
		}
		for name, v := range map[string]string{"idle_timeout": c.Compaction.IdleTimeout, "cooldown": c.Compaction.Cooldown} {
			if _, err := time.ParseDuration(v); err != nil {
				return invalid("compaction.%s must be a duration, got %q", name, v)
			}
		}
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(v)
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
