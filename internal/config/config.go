// Package config holds MKC's in-process configuration, adapted from
// codenerd's internal/config/config.go: a root Config struct of nested
// per-subsystem structs, a DefaultConfig(), YAML Load/Save, and
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mkc-dev/mkc/internal/embedding"
)

// Config holds all MKC configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Memory     MemoryConfig     `yaml:"memory"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Tenant     TenantConfig     `yaml:"tenant"`
	Sync       SyncConfig       `yaml:"sync"`
	Constraint ConstraintConfig `yaml:"constraint"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retry      RetryConfig      `yaml:"retry"`
}

// MemoryConfig configures the Memory Manager and its provider backends
// (spec §4.1).
type MemoryConfig struct {
	WorkingCapacity     int    `yaml:"working_capacity"`      // LRU eviction bound for the Agent/Session cache
	SessionTTL          string `yaml:"session_ttl"`           // default 1h; the Memory Manager uses LayerSpecs' DefaultTTL, not this
	DatabasePath        string `yaml:"database_path"`         // sqlite file for ordered-doc/vector layers
	MaxContentBytes      int    `yaml:"max_content_bytes"`     // ContentTooLong bound
	MaxQueryBytes        int    `yaml:"max_query_bytes"`       // QueryTooLong bound
	DefaultSearchLimit   int    `yaml:"default_search_limit"`
	MaxSearchLimit       int    `yaml:"max_search_limit"` // clamps limits above this
	DecayRatePerDay      float64 `yaml:"decay_rate_per_day"`
	DecayArchiveThreshold float64 `yaml:"decay_archive_threshold"`
	ConsolidationCap           int     `yaml:"consolidation_cap"`
	ConsolidationSimThreshold  float64 `yaml:"consolidation_similarity_threshold"`
	DedupSimilarityThreshold   float64 `yaml:"dedup_similarity_threshold"` // merge-algorithm 0.95 default
}

// KnowledgeConfig configures the Knowledge Store's Git backend (spec §4.2, §6).
type KnowledgeConfig struct {
	RepoBaseDir string `yaml:"repo_base_dir"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// EmbeddingConfig wraps embedding.Config for YAML loading.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"`
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	TaskType       string `yaml:"task_type"`
}

func (e EmbeddingConfig) ToEngineConfig() embedding.Config {
	return embedding.Config{
		Provider:       e.Provider,
		OllamaEndpoint: e.OllamaEndpoint,
		OllamaModel:    e.OllamaModel,
		GenAIAPIKey:    e.GenAIAPIKey,
		GenAIModel:     e.GenAIModel,
		TaskType:       e.TaskType,
	}
}

// TenantConfig configures the Tenant Router (spec §4.4).
type TenantConfig struct {
	NamespacePrefix string `yaml:"namespace_prefix"`
}

// SyncConfig configures the Sync Bridge (spec §4.5).
type SyncConfig struct {
	Interval string `yaml:"interval"` // schedule period for syncNow when run on a timer
}

// ConstraintConfig configures the Constraint Engine (spec §4.3).
type ConstraintConfig struct {
	MinSeverity string `yaml:"min_severity"`
}

// LoggingConfig configures the logging package.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// RetryConfig holds retry/backoff settings. internal/operation's retry
// does not read it; it uses fixed values (3 attempts in total).
type RetryConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BaseDelay   string `yaml:"base_delay"`
	MaxDelay    string `yaml:"max_delay"`
}

// DefaultConfig returns sensible defaults, mirroring codenerd's
// DefaultConfig layout.
func DefaultConfig() *Config {
	return &Config{
		Name:    "mkc",
		Version: "0.1.0",

		Memory: MemoryConfig{
			WorkingCapacity:           20000,
			SessionTTL:                "1h",
			DatabasePath:              "data/mkc.db",
			MaxContentBytes:           65536,
			MaxQueryBytes:             4096,
			DefaultSearchLimit:        10,
			MaxSearchLimit:            100,
			DecayRatePerDay:           0.01,
			DecayArchiveThreshold:     0.1,
			ConsolidationCap:          5000,
			ConsolidationSimThreshold: 0.92,
			DedupSimilarityThreshold:  0.95,
		},

		Knowledge: KnowledgeConfig{
			RepoBaseDir: "data/knowledge",
			AuthorName:  "mkc",
			AuthorEmail: "mkc@localhost",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},

		Tenant: TenantConfig{NamespacePrefix: "mkc"},

		Sync: SyncConfig{Interval: "5m"},

		Constraint: ConstraintConfig{MinSeverity: "Info"},

		Logging: LoggingConfig{Debug: false},

		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   "100ms",
			MaxDelay:    "5s",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// (with env overrides applied) if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" || c.Embedding.Provider == "ollama" {
			c.Embedding.Provider = "genai"
		}
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
	if path := os.Getenv("MKC_DB"); path != "" {
		c.Memory.DatabasePath = path
	}
	if dir := os.Getenv("MKC_KNOWLEDGE_DIR"); dir != "" {
		c.Knowledge.RepoBaseDir = dir
	}
}

// SessionTTLDuration parses Memory.SessionTTL, defaulting to 1h.
func (c *Config) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.Memory.SessionTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// SyncIntervalDuration parses Sync.Interval, defaulting to 5m.
func (c *Config) SyncIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
