package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Budget = BudgetConfig{DailyTokenLimit: 1000000, Action: "invalid_action"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Embedding.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantSub string
	}{
		{"port zero", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"port too high", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"no addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"unknown profiles driver", func(c *Config) { c.Profiles.Driver = "mongo" }, "profiles.driver"},
		{"postgres without dsn", func(c *Config) { c.Profiles.Driver = ProfilesPostgres }, "postgres_dsn"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding.provider"},
		{"negative dims", func(c *Config) { c.Embedding.Dimensions = -1 }, "embedding.dimensions"},
		{"bad algorithm", func(c *Config) { c.Index.Algorithm = "ivf" }, "index.algorithm"},
		{"top_k bounds", func(c *Config) { c.Matching.DefaultTopK = 200 }, "default_top_k"},
		{"tolerance bounds", func(c *Config) { c.Matching.DefaultAgeTolerance = 30 }, "default_age_tolerance"},
		{"candidates below max_top_k", func(c *Config) { c.Matching.MaxCandidates = 50 }, "max_candidates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_PostgresWithDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Profiles = ProfilesConfig{Driver: ProfilesPostgres, PostgresDSN: "postgres://localhost/matchdex"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("ReadTimeoutSec: got %d, want 10", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Profiles.Driver != ProfilesRedis {
		t.Errorf("Profiles.Driver: got %q, want %q", cfg.Profiles.Driver, ProfilesRedis)
	}
	if cfg.Storage.KeyPrefix != "matchdex:" {
		t.Errorf("KeyPrefix: got %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Index.Name != "matchdex:emb:idx" {
		t.Errorf("Index.Name: got %q", cfg.Index.Name)
	}
	if cfg.Indexer.CheckpointKey != "matchdex:indexer:checkpoint" {
		t.Errorf("CheckpointKey: got %q", cfg.Indexer.CheckpointKey)
	}
	m := cfg.Matching
	if m.DefaultTopK != 10 || m.MaxTopK != 100 || m.DefaultAgeTolerance != 5 || m.MaxAgeTolerance != 20 {
		t.Errorf("matching bounds: %+v", m)
	}
	if m.OversampleFactor != 4 || m.MaxOversampleRetries != 3 || m.MaxCandidates != 1000 {
		t.Errorf("oversampling: %+v", m)
	}
	if cfg.Embedding.Provider != ProviderOpenAI || cfg.Embedding.Dimensions != 1536 {
		t.Errorf("embedding: %+v", cfg.Embedding)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		Storage:  StorageConfig{KeyPrefix: "test:"},
		Index:    IndexConfig{HNSWM: 32},
		Matching: MatchingConfig{MaxTopK: 50},
		Indexer:  IndexerConfig{BatchSize: 500},
	}
	cfg.ApplyDefaults()

	if cfg.Storage.KeyPrefix != "test:" {
		t.Errorf("KeyPrefix overridden: %q", cfg.Storage.KeyPrefix)
	}
	if cfg.Index.Name != "test:emb:idx" {
		t.Errorf("Index.Name should follow prefix: %q", cfg.Index.Name)
	}
	if cfg.Index.HNSWM != 32 || cfg.Matching.MaxTopK != 50 || cfg.Indexer.BatchSize != 500 {
		t.Errorf("explicit values overridden: %+v %+v %+v", cfg.Index, cfg.Matching, cfg.Indexer)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MATCHDEX_TEST_ADDR", "redis:6380")

	in := []byte("a: ${MATCHDEX_TEST_ADDR}\nb: ${MATCHDEX_TEST_UNSET:-fallback}\nc: ${MATCHDEX_TEST_UNSET}")
	got := string(expandEnvVars(in))

	want := "a: redis:6380\nb: fallback\nc: "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	yaml := `
http:
  port: ${MATCHDEX_TEST_PORT:-9090}
database:
  addrs: ["localhost:6379"]
embedding:
  provider: langchain
  base_url: http://localhost:11434/v1
  model: nomic-embed-text
  dimensions: 768
matching:
  max_top_k: 50
`
	if err := os.WriteFile(filepath.Join(dir, "config", "unit.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, err := Load("unit")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d", cfg.HTTP.Port)
	}
	if cfg.Embedding.Provider != ProviderLangchain || cfg.Embedding.Dimensions != 768 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Matching.MaxTopK != 50 || cfg.Matching.DefaultTopK != 10 {
		t.Errorf("matching = %+v", cfg.Matching)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load("does-not-exist"); err == nil {
		t.Fatal("expected error for missing config")
	}
}
