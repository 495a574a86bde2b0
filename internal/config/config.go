// Package config loads and validates audit service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Headless HeadlessConfig `mapstructure:"headless"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Evidence EvidenceConfig `mapstructure:"evidence"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs the sequential per-job crawl.
type CrawlerConfig struct {
	UserAgent               string   `mapstructure:"user_agent"`
	MaxPagesTarget          int      `mapstructure:"max_pages_target"`
	MaxPagesCompetitor      int      `mapstructure:"max_pages_competitor"`
	RequestTimeoutSeconds   int      `mapstructure:"request_timeout_seconds"`
	HomepageTimeoutSeconds  int      `mapstructure:"homepage_timeout_seconds"`
	AuxiliaryTimeoutSeconds int      `mapstructure:"auxiliary_timeout_seconds"`
	MaxPageSizeMB           int      `mapstructure:"max_page_size_mb"`
	FetchDelayMs            int      `mapstructure:"fetch_delay_ms"`
	LinksPerPage            int      `mapstructure:"links_per_page"`
	SitemapMaxURLs          int      `mapstructure:"sitemap_max_urls"`
	MaxErrors               int      `mapstructure:"max_errors"`
	MaxRedirects            int      `mapstructure:"max_redirects"`
	BlockedHosts            []string `mapstructure:"blocked_hosts"`
	RespectRobots           bool     `mapstructure:"respect_robots"`
}

// HeadlessConfig configures the optional homepage re-render.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	// PromotionThresh is the visible word count below which a script-heavy
	// homepage is re-rendered.
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// LLMConfig configures the structured-generation client and retry budget.
type LLMConfig struct {
	Provider        string  `mapstructure:"provider"`
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
	BackoffBaseMs   int     `mapstructure:"backoff_base_ms"`
	BackoffMaxMs    int     `mapstructure:"backoff_max_ms"`
}

// EvidenceConfig bounds the evidence extractor.
type EvidenceConfig struct {
	MaxPages int `mapstructure:"max_pages"`
}

// AuditConfig bounds the generation context.
type AuditConfig struct {
	TargetPages     int `mapstructure:"target_pages"`
	CompetitorPages int `mapstructure:"competitor_pages"`
	SampledURLs     int `mapstructure:"sampled_urls"`
}

// WorkerConfig controls job polling and the single-instance lease.
type WorkerConfig struct {
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
	ErrorBackoffSeconds int    `mapstructure:"error_backoff_seconds"`
	LeaseBackend        string `mapstructure:"lease_backend"`
	LeasePath           string `mapstructure:"lease_path"`
	LeaseName           string `mapstructure:"lease_name"`
}

// StorageConfig selects where audit artifacts are archived.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	LocalDir    string `mapstructure:"local_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	DSN            string `mapstructure:"dsn"`
	MaxOpenConns   int    `mapstructure:"max_open_conns"`
	JobsTable      string `mapstructure:"jobs_table"`
	PagesTable     string `mapstructure:"pages_table"`
	ArtifactsTable string `mapstructure:"artifacts_table"`
	LeaseTable     string `mapstructure:"lease_table"`
}

// PubSubConfig holds metadata for job completion notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (compatible; ai-visibility-audit/0.1)")
	v.SetDefault("crawler.max_pages_target", 60)
	v.SetDefault("crawler.max_pages_competitor", 15)
	v.SetDefault("crawler.request_timeout_seconds", 10)
	v.SetDefault("crawler.homepage_timeout_seconds", 15)
	v.SetDefault("crawler.auxiliary_timeout_seconds", 5)
	v.SetDefault("crawler.max_page_size_mb", 5)
	v.SetDefault("crawler.fetch_delay_ms", 200)
	v.SetDefault("crawler.links_per_page", 30)
	v.SetDefault("crawler.sitemap_max_urls", 100)
	v.SetDefault("crawler.max_errors", 20)
	v.SetDefault("crawler.max_redirects", 5)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 50)
	v.SetDefault("llm.provider", "genai")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_output_tokens", 6000)
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.backoff_base_ms", 500)
	v.SetDefault("llm.backoff_max_ms", 4000)
	v.SetDefault("evidence.max_pages", 15)
	v.SetDefault("audit.target_pages", 15)
	v.SetDefault("audit.competitor_pages", 10)
	v.SetDefault("audit.sampled_urls", 10)
	v.SetDefault("worker.poll_interval_seconds", 5)
	v.SetDefault("worker.error_backoff_seconds", 10)
	v.SetDefault("worker.lease_backend", "file")
	v.SetDefault("worker.lease_path", "/tmp/ai-visibility-worker.pid")
	v.SetDefault("worker.lease_name", "audit-worker")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.local_dir", "artifacts")
	v.SetDefault("storage.prefix", "audits")
	v.SetDefault("storage.content_type", "application/json")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("db.jobs_table", "audit_jobs")
	v.SetDefault("db.pages_table", "scraped_pages")
	v.SetDefault("db.artifacts_table", "job_artifacts")
	v.SetDefault("db.lease_table", "worker_leases")
	v.SetDefault("progress.buffer_size", 1024)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.MaxPagesTarget <= 0 || c.Crawler.MaxPagesCompetitor < 0 {
		return fmt.Errorf("crawler page budgets must be positive")
	}
	if c.Crawler.RequestTimeoutSeconds <= 0 || c.Crawler.HomepageTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler timeouts must be > 0")
	}
	if c.Crawler.MaxPageSizeMB <= 0 {
		return fmt.Errorf("crawler.max_page_size_mb must be > 0")
	}
	if c.LLM.MaxAttempts <= 0 {
		return fmt.Errorf("llm.max_attempts must be > 0")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2]")
	}
	switch c.Worker.LeaseBackend {
	case "file", "postgres":
	default:
		return fmt.Errorf("worker.lease_backend %q not supported", c.Worker.LeaseBackend)
	}
	if c.Worker.LeaseBackend == "postgres" && !c.DB.Enabled {
		return fmt.Errorf("worker.lease_backend postgres requires db.enabled")
	}
	switch c.Storage.Backend {
	case "memory", "local":
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q not supported", c.Storage.Backend)
	}
	if c.DB.Enabled && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set when pubsub is enabled")
	}
	return nil
}

// RequestTimeout is the per-page fetch timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Crawler.RequestTimeoutSeconds) * time.Second
}

// HomepageTimeout is the longer timeout used for the homepage fetch.
func (c Config) HomepageTimeout() time.Duration {
	return time.Duration(c.Crawler.HomepageTimeoutSeconds) * time.Second
}

// AuxiliaryTimeout bounds robots.txt and sitemap requests.
func (c Config) AuxiliaryTimeout() time.Duration {
	return time.Duration(c.Crawler.AuxiliaryTimeoutSeconds) * time.Second
}

// FetchDelay is the fixed pause between sequential fetches.
func (c Config) FetchDelay() time.Duration {
	return time.Duration(c.Crawler.FetchDelayMs) * time.Millisecond
}

// MaxPageBytes converts the page size limit to bytes.
func (c Config) MaxPageBytes() int {
	return c.Crawler.MaxPageSizeMB * 1024 * 1024
}

// PollInterval is the idle wait between job polls.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalSeconds) * time.Second
}

// ErrorBackoff is the wait after a failed poll.
func (c Config) ErrorBackoff() time.Duration {
	return time.Duration(c.Worker.ErrorBackoffSeconds) * time.Second
}

// LLMTimeout bounds a single generation call.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// HeadlessTimeout bounds one headless homepage render.
func (c Config) HeadlessTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
