package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Crawler.MaxPagesTarget != 60 || cfg.Crawler.MaxPagesCompetitor != 15 {
		t.Fatalf("unexpected page budgets: %+v", cfg.Crawler)
	}
	if got := cfg.RequestTimeout(); got != 10*time.Second {
		t.Fatalf("expected request timeout 10s, got %v", got)
	}
	if got := cfg.HomepageTimeout(); got != 15*time.Second {
		t.Fatalf("expected homepage timeout 15s, got %v", got)
	}
	if got := cfg.FetchDelay(); got != 200*time.Millisecond {
		t.Fatalf("expected fetch delay 200ms, got %v", got)
	}
	if got := cfg.MaxPageBytes(); got != 5*1024*1024 {
		t.Fatalf("expected 5MB page limit, got %d", got)
	}
	if cfg.LLM.MaxAttempts != 3 || cfg.LLM.MaxOutputTokens != 6000 {
		t.Fatalf("unexpected llm defaults: %+v", cfg.LLM)
	}
	if cfg.Worker.LeaseBackend != "file" || cfg.PollInterval() != 5*time.Second {
		t.Fatalf("unexpected worker defaults: %+v", cfg.Worker)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
crawler:
  max_pages_target: 20
  max_pages_competitor: 5
  request_timeout_seconds: 4
  blocked_hosts: ["internal.example", "*.corp"]
llm:
  model: gemini-test
  max_attempts: 5
worker:
  lease_backend: postgres
db:
  enabled: true
  dsn: postgres://localhost/audit
storage:
  backend: local
  local_dir: /tmp/out
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Crawler.MaxPagesTarget != 20 || len(cfg.Crawler.BlockedHosts) != 2 {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if got := cfg.RequestTimeout(); got != 4*time.Second {
		t.Fatalf("expected request timeout 4s, got %v", got)
	}
	if cfg.LLM.Model != "gemini-test" || cfg.LLM.MaxAttempts != 5 {
		t.Fatalf("expected llm overrides: %+v", cfg.LLM)
	}
	if cfg.Worker.LeaseBackend != "postgres" || !cfg.DB.Enabled {
		t.Fatalf("expected postgres lease: %+v", cfg.Worker)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Crawler: CrawlerConfig{
			MaxPagesTarget:         60,
			MaxPagesCompetitor:     15,
			RequestTimeoutSeconds:  10,
			HomepageTimeoutSeconds: 15,
			MaxPageSizeMB:          5,
		},
		LLM:     LLMConfig{MaxAttempts: 3, Temperature: 0.2},
		Worker:  WorkerConfig{LeaseBackend: "file"},
		Storage: StorageConfig{Backend: "memory"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{name: "invalid port", mut: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mut: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "zero budget", mut: func(c *Config) { c.Crawler.MaxPagesTarget = 0 }, want: "page budgets"},
		{name: "zero timeout", mut: func(c *Config) { c.Crawler.RequestTimeoutSeconds = 0 }, want: "timeouts"},
		{name: "zero attempts", mut: func(c *Config) { c.LLM.MaxAttempts = 0 }, want: "llm.max_attempts"},
		{name: "unknown lease", mut: func(c *Config) { c.Worker.LeaseBackend = "etcd" }, want: "worker.lease_backend"},
		{name: "postgres lease without db", mut: func(c *Config) { c.Worker.LeaseBackend = "postgres" }, want: "requires db.enabled"},
		{name: "gcs without bucket", mut: func(c *Config) { c.Storage.Backend = "gcs" }, want: "storage.gcs_bucket"},
		{name: "pubsub missing topic", mut: func(c *Config) { c.PubSub.Enabled = true }, want: "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mut(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
