package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Crawl      CrawlConfig      `yaml:"crawl" mapstructure:"crawl"`
	Reader     ReaderConfig     `yaml:"reader" mapstructure:"reader"`
	Synthesis  SynthesisConfig  `yaml:"synthesis" mapstructure:"synthesis"`
	Questions  QuestionConfig   `yaml:"questions" mapstructure:"questions"`
	Platforms  PlatformsConfig  `yaml:"platforms" mapstructure:"platforms"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CrawlConfig configures the site crawl phase.
type CrawlConfig struct {
	MaxPages    int `yaml:"max_pages" mapstructure:"max_pages"`
	PageCharCap int `yaml:"page_char_cap" mapstructure:"page_char_cap"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// UserAgent pins one agent for every fetch. Left empty, the crawler
	// rotates through a small pool of browser agents.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	// ReaderFailureThreshold is how many consecutive reader-proxy failures
	// open its circuit; ReaderResetSecs is how long the circuit stays open.
	ReaderFailureThreshold int `yaml:"reader_failure_threshold" mapstructure:"reader_failure_threshold"`
	ReaderResetSecs        int `yaml:"reader_reset_secs" mapstructure:"reader_reset_secs"`
}

// ReaderConfig holds reader-proxy fallback settings for sites that block
// direct fetches.
type ReaderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SynthesisConfig configures knowledge synthesis.
type SynthesisConfig struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// QuestionConfig configures question panel generation.
type QuestionConfig struct {
	Model        string `yaml:"model" mapstructure:"model"`
	MaxTokens    int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TemplatePath string `yaml:"template_path" mapstructure:"template_path"`
}

// PlatformConfig holds one assistant platform's credentials and model.
type PlatformConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PlatformsConfig holds settings for every queried assistant platform plus
// the model used to simulate unconfigured ones.
type PlatformsConfig struct {
	ChatGPT         PlatformConfig `yaml:"chatgpt" mapstructure:"chatgpt"`
	Claude          PlatformConfig `yaml:"claude" mapstructure:"claude"`
	Gemini          PlatformConfig `yaml:"gemini" mapstructure:"gemini"`
	Perplexity      PlatformConfig `yaml:"perplexity" mapstructure:"perplexity"`
	SimulationModel string         `yaml:"simulation_model" mapstructure:"simulation_model"`
	// RetryMaxAttempts bounds live-call retries before a platform is
	// marked degraded for the rest of the run.
	RetryMaxAttempts      int `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs int `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
}

// ScoringConfig configures the scoring engine.
type ScoringConfig struct {
	// WeightsPath optionally overrides sub-metric weights from a YAML
	// file. Dimension weights are fixed.
	WeightsPath string `yaml:"weights_path" mapstructure:"weights_path"`
}

// CacheConfig configures result reuse.
type CacheConfig struct {
	// CallerTTLHours is how long an authenticated caller's own result is
	// served before a fresh run.
	CallerTTLHours int `yaml:"caller_ttl_hours" mapstructure:"caller_ttl_hours"`
	// FallbackSize bounds the in-memory read cache used when the store
	// is unreachable.
	FallbackSize int `yaml:"fallback_size" mapstructure:"fallback_size"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
	Gemini     map[string]ModelPricing `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityPricing       `yaml:"perplexity" mapstructure:"perplexity"`
	Reader     ReaderPricing           `yaml:"reader" mapstructure:"reader"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PerplexityPricing holds Perplexity pricing.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// ReaderPricing holds reader-proxy pricing.
type ReaderPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// MonitoringConfig configures the background health checker.
type MonitoringConfig struct {
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	SimulatedRateAlert  float64 `yaml:"simulated_rate_alert" mapstructure:"simulated_rate_alert"`
	FailureRateAlert    float64 `yaml:"failure_rate_alert" mapstructure:"failure_rate_alert"`
	// CostAlertUSD alerts when window spend exceeds it; zero disables.
	CostAlertUSD float64 `yaml:"cost_alert_usd" mapstructure:"cost_alert_usd"`
}

// SalesforceConfig holds Salesforce JWT auth settings for CRM sync.
type SalesforceConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration is usable for the given mode.
// Mode "analyze" covers one-shot CLI runs; "serve" additionally checks the
// HTTP server settings. Platform keys are deliberately not required: a run
// with no keys still completes, in simulated mode.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for sqlite")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if c.Crawl.MaxPages < 1 || c.Crawl.MaxPages > 25 {
		errs = append(errs, "crawl.max_pages must be between 1 and 25")
	}
	if c.Crawl.PageCharCap < 1000 {
		errs = append(errs, "crawl.page_char_cap must be >= 1000")
	}
	if c.Cache.CallerTTLHours < 0 {
		errs = append(errs, "cache.caller_ttl_hours must be >= 0")
	}
	if c.Cache.FallbackSize < 1 {
		errs = append(errs, "cache.fallback_size must be >= 1")
	}

	if c.Salesforce.Enabled {
		if c.Salesforce.ClientID == "" {
			errs = append(errs, "salesforce.client_id is required when salesforce is enabled")
		}
		if c.Salesforce.Username == "" {
			errs = append(errs, "salesforce.username is required when salesforce is enabled")
		}
		if c.Salesforce.KeyPath == "" {
			errs = append(errs, "salesforce.key_path is required when salesforce is enabled")
		}
	}

	switch mode {
	case "analyze":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		errs = append(errs, "unknown mode: "+mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RADIUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "radius.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.max_pages", 10)
	v.SetDefault("crawl.page_char_cap", 15000)
	v.SetDefault("crawl.timeout_secs", 30)
	v.SetDefault("crawl.reader_failure_threshold", 3)
	v.SetDefault("crawl.reader_reset_secs", 60)
	v.SetDefault("reader.base_url", "https://r.jina.ai")
	v.SetDefault("synthesis.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("synthesis.max_tokens", 4096)
	v.SetDefault("synthesis.temperature", 0.3)
	v.SetDefault("questions.model", "claude-haiku-4-5-20251001")
	v.SetDefault("questions.max_tokens", 3000)
	v.SetDefault("platforms.chatgpt.model", "gpt-4o-mini")
	v.SetDefault("platforms.claude.model", "claude-haiku-4-5-20251001")
	v.SetDefault("platforms.gemini.model", "gemini-2.0-flash")
	v.SetDefault("platforms.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("platforms.perplexity.model", "sonar-pro")
	v.SetDefault("platforms.perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("platforms.simulation_model", "claude-haiku-4-5-20251001")
	v.SetDefault("platforms.retry_max_attempts", 2)
	v.SetDefault("platforms.retry_initial_backoff_ms", 500)
	v.SetDefault("cache.caller_ttl_hours", 24)
	v.SetDefault("cache.fallback_size", 64)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.simulated_rate_alert", 0.9)
	v.SetDefault("monitoring.failure_rate_alert", 0.2)
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.reader.per_mtok", 0.02)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
