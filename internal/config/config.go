package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the matchdex configuration shared by the API server and the indexer CLI.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Profiles  ProfilesConfig  `yaml:"profiles"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Matching  MatchingConfig  `yaml:"matching"`
	Indexer   IndexerConfig   `yaml:"indexer"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection settings (vectors, cache, counters, and
// profiles unless profiles.driver is postgres).
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Profile store drivers.
const (
	ProfilesRedis    = "redis"
	ProfilesPostgres = "postgres"
)

// ProfilesConfig selects the Profile Store backend.
type ProfilesConfig struct {
	Driver      string `yaml:"driver"` // redis (default) | postgres
	PostgresDSN string `yaml:"postgres_dsn"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Name            string `yaml:"name"`      // default: <key_prefix>emb:idx
	Algorithm       string `yaml:"algorithm"` // hnsw (default) | flat
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	HNSWEFRuntime   int    `yaml:"hnsw_ef_runtime"`
}

// MatchingConfig bounds match requests and tunes oversampling.
type MatchingConfig struct {
	DefaultTopK          int `yaml:"default_top_k"`
	MaxTopK              int `yaml:"max_top_k"`
	DefaultAgeTolerance  int `yaml:"default_age_tolerance"`
	MaxAgeTolerance      int `yaml:"max_age_tolerance"`
	OversampleFactor     int `yaml:"oversample_factor"`
	MaxOversampleRetries int `yaml:"max_oversample_retries"`
	MaxCandidates        int `yaml:"max_candidates"`
	RequestTimeoutMS     int `yaml:"request_timeout_ms"`
}

// IndexerConfig tunes the offline indexer.
type IndexerConfig struct {
	BatchSize     int    `yaml:"batch_size"`
	Workers       int    `yaml:"workers"`
	MaxAttempts   int    `yaml:"max_attempts"`
	RetryBaseMS   int    `yaml:"retry_base_ms"`
	CheckpointKey string `yaml:"checkpoint_key"` // default: <key_prefix>indexer:checkpoint
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// Embedding providers.
const (
	ProviderOpenAI    = "openai"
	ProviderLangchain = "langchain"
)

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider            string       `yaml:"provider"` // openai (default) | langchain
	APIKey              string       `yaml:"api_key"`
	BaseURL             string       `yaml:"base_url"`
	Model               string       `yaml:"model"`
	Dimensions          int          `yaml:"dimensions"`
	DocumentInstruction string       `yaml:"document_instruction"`
	QueryInstruction    string       `yaml:"query_instruction"`
	TimeoutSec          int          `yaml:"timeout_sec"`
	MaxBatchSize        int          `yaml:"max_batch_size"`
	CacheTTLSec         int          `yaml:"cache_ttl_sec"` // 0 = cache forever, -1 = no cache
	Budget              BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Profiles.Driver == "" {
		c.Profiles.Driver = ProfilesRedis
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "matchdex:"
	}

	e := &c.Embedding
	if e.Provider == "" {
		e.Provider = ProviderOpenAI
	}
	if e.Model == "" {
		e.Model = "text-embedding-3-small"
	}
	if e.Dimensions <= 0 {
		e.Dimensions = 1536
	}
	if e.TimeoutSec <= 0 {
		e.TimeoutSec = 30
	}
	if e.MaxBatchSize <= 0 {
		e.MaxBatchSize = 256
	}

	if c.Index.Name == "" {
		c.Index.Name = c.Storage.KeyPrefix + "emb:idx"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}

	m := &c.Matching
	if m.DefaultTopK <= 0 {
		m.DefaultTopK = 10
	}
	if m.MaxTopK <= 0 {
		m.MaxTopK = 100
	}
	if m.DefaultAgeTolerance <= 0 {
		m.DefaultAgeTolerance = 5
	}
	if m.MaxAgeTolerance <= 0 {
		m.MaxAgeTolerance = 20
	}
	if m.OversampleFactor <= 0 {
		m.OversampleFactor = 4
	}
	if m.MaxOversampleRetries <= 0 {
		m.MaxOversampleRetries = 3
	}
	if m.MaxCandidates <= 0 {
		m.MaxCandidates = 1000
	}
	if m.RequestTimeoutMS <= 0 {
		m.RequestTimeoutMS = 5000
	}

	ix := &c.Indexer
	if ix.BatchSize <= 0 {
		ix.BatchSize = 100
	}
	if ix.Workers <= 0 {
		ix.Workers = 4
	}
	if ix.MaxAttempts <= 0 {
		ix.MaxAttempts = 3
	}
	if ix.RetryBaseMS <= 0 {
		ix.RetryBaseMS = 200
	}
	if ix.CheckpointKey == "" {
		ix.CheckpointKey = c.Storage.KeyPrefix + "indexer:checkpoint"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}

	switch c.Profiles.Driver {
	case ProfilesRedis:
	case ProfilesPostgres:
		if c.Profiles.PostgresDSN == "" {
			return fmt.Errorf("profiles.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("profiles.driver must be %q or %q, got %q", ProfilesRedis, ProfilesPostgres, c.Profiles.Driver)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderLangchain:
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderLangchain, c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("embedding.budget.action must be \"warn\" or \"reject\", got %q", c.Embedding.Budget.Action)
	}

	switch c.Index.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("index.algorithm must be \"hnsw\" or \"flat\", got %q", c.Index.Algorithm)
	}

	m := c.Matching
	if m.DefaultTopK > m.MaxTopK {
		return fmt.Errorf("matching.default_top_k (%d) exceeds max_top_k (%d)", m.DefaultTopK, m.MaxTopK)
	}
	if m.DefaultAgeTolerance > m.MaxAgeTolerance {
		return fmt.Errorf("matching.default_age_tolerance (%d) exceeds max_age_tolerance (%d)",
			m.DefaultAgeTolerance, m.MaxAgeTolerance)
	}
	if m.MaxTopK > m.MaxCandidates {
		return fmt.Errorf("matching.max_top_k (%d) exceeds max_candidates (%d)", m.MaxTopK, m.MaxCandidates)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
