// Package config loads and validates leadgen configuration.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Serper     SerperConfig     `yaml:"serper" mapstructure:"serper"`
	Registry   RegistryConfig   `yaml:"registry" mapstructure:"registry"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Sinks      SinksConfig      `yaml:"sinks" mapstructure:"sinks"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Salesforce SalesforceConfig `yaml:"salesforce" mapstructure:"salesforce"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Outreach   OutreachConfig   `yaml:"outreach" mapstructure:"outreach"`
	Queries    QueriesConfig    `yaml:"queries" mapstructure:"queries"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PipelineConfig configures qualification thresholds and run limits.
type PipelineConfig struct {
	MinRating       float64  `yaml:"min_rating" mapstructure:"min_rating"`
	MinReviews      int      `yaml:"min_reviews" mapstructure:"min_reviews"`
	MaxLeadsPerRun  int      `yaml:"max_leads_per_run" mapstructure:"max_leads_per_run"`
	QueryDelayMs    int      `yaml:"query_delay_ms" mapstructure:"query_delay_ms"`
	Premium         bool     `yaml:"premium" mapstructure:"premium"`
	MinQualityScore float64  `yaml:"min_quality_score" mapstructure:"min_quality_score"`
	TargetCountries []string `yaml:"target_countries" mapstructure:"target_countries"`
	CostPerQuery    float64  `yaml:"cost_per_query" mapstructure:"cost_per_query"`
}

// SearchConfig selects the search provider and its retry policy.
type SearchConfig struct {
	Provider         string        `yaml:"provider" mapstructure:"provider"`
	FallbackProvider string        `yaml:"fallback_provider" mapstructure:"fallback_provider"`
	MaxResults       int           `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSecs      int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry            RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit          CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig holds the bounded exponential backoff applied to each query.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the per-provider circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SerperConfig holds Serper maps API settings.
type SerperConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Country  string `yaml:"country" mapstructure:"country"`
	Language string `yaml:"language" mapstructure:"language"`
}

// RegistryConfig selects where previously seen place IDs are kept.
type RegistryConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	Path          string `yaml:"path" mapstructure:"path"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	RedisKey      string `yaml:"redis_key" mapstructure:"redis_key"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// SinksConfig lists the lead sinks a run writes to.
type SinksConfig struct {
	Enabled   []string `yaml:"enabled" mapstructure:"enabled"`
	CSVPath   string   `yaml:"csv_path" mapstructure:"csv_path"`
	XLSXPath  string   `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	XLSXSheet string   `yaml:"xlsx_sheet" mapstructure:"xlsx_sheet"`
}

// NotionConfig holds Notion API credentials and the lead database ID.
type NotionConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	LeadDB    string  `yaml:"lead_db" mapstructure:"lead_db"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SalesforceConfig holds Salesforce JWT auth settings.
type SalesforceConfig struct {
	ClientID string `yaml:"client_id" mapstructure:"client_id"`
	Username string `yaml:"username" mapstructure:"username"`
	KeyPath  string `yaml:"key_path" mapstructure:"key_path"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
	SObject  string `yaml:"sobject" mapstructure:"sobject"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutreachConfig describes the sender used in drafted outreach.
type OutreachConfig struct {
	SenderName   string `yaml:"sender_name" mapstructure:"sender_name"`
	Company      string `yaml:"company" mapstructure:"company"`
	Pitch        string `yaml:"pitch" mapstructure:"pitch"`
	ContactEmail string `yaml:"contact_email" mapstructure:"contact_email"`
	ContactPhone string `yaml:"contact_phone" mapstructure:"contact_phone"`
}

// QueriesConfig configures search query generation.
type QueriesConfig struct {
	VocabularyFile string   `yaml:"vocabulary_file" mapstructure:"vocabulary_file"`
	Cities         []string `yaml:"cities" mapstructure:"cities"`
	Categories     []string `yaml:"categories" mapstructure:"categories"`
	MaxQueries     int      `yaml:"max_queries" mapstructure:"max_queries"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment, then
// validates it.
func Load() (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every key so that env overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.min_rating", 4.0)
	v.SetDefault("pipeline.min_reviews", 20)
	v.SetDefault("pipeline.max_leads_per_run", 50)
	v.SetDefault("pipeline.query_delay_ms", 2000)
	v.SetDefault("pipeline.premium", false)
	v.SetDefault("pipeline.min_quality_score", 60.0)
	v.SetDefault("pipeline.target_countries", []string{})
	v.SetDefault("pipeline.cost_per_query", 0.032)
	v.SetDefault("search.provider", "google")
	v.SetDefault("search.fallback_provider", "")
	v.SetDefault("search.max_results", 20)
	v.SetDefault("search.timeout_secs", 30)
	v.SetDefault("search.retry.max_attempts", 3)
	v.SetDefault("search.retry.initial_backoff_ms", 1000)
	v.SetDefault("search.retry.max_backoff_ms", 30000)
	v.SetDefault("search.retry.multiplier", 2.0)
	v.SetDefault("search.retry.jitter_fraction", 0.0)
	v.SetDefault("search.circuit.failure_threshold", 5)
	v.SetDefault("search.circuit.reset_timeout_secs", 60)
	v.SetDefault("google.key", "")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.rate_limit", 10.0)
	v.SetDefault("serper.key", "")
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.country", "")
	v.SetDefault("serper.language", "en")
	v.SetDefault("registry.driver", "file")
	v.SetDefault("registry.path", "data/processed_ids.txt")
	v.SetDefault("registry.redis_addr", "localhost:6379")
	v.SetDefault("registry.redis_password", "")
	v.SetDefault("registry.redis_db", 0)
	v.SetDefault("registry.redis_key", "leadgen:seen_places")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.path", "data/leadgen.db")
	v.SetDefault("sinks.enabled", []string{"csv", "store"})
	v.SetDefault("sinks.csv_path", "data/all_leads.csv")
	v.SetDefault("sinks.xlsx_path", "data/leads.xlsx")
	v.SetDefault("sinks.xlsx_sheet", "Leads")
	v.SetDefault("notion.token", "")
	v.SetDefault("notion.lead_db", "")
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("salesforce.client_id", "")
	v.SetDefault("salesforce.username", "")
	v.SetDefault("salesforce.key_path", "")
	v.SetDefault("salesforce.login_url", "https://login.salesforce.com")
	v.SetDefault("salesforce.sobject", "Lead")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 600)
	v.SetDefault("outreach.sender_name", "")
	v.SetDefault("outreach.company", "")
	v.SetDefault("outreach.pitch", "we build websites and booking tools for local businesses")
	v.SetDefault("outreach.contact_email", "")
	v.SetDefault("outreach.contact_phone", "")
	v.SetDefault("queries.vocabulary_file", "")
	v.SetDefault("queries.cities", []string{})
	v.SetDefault("queries.categories", []string{})
	v.SetDefault("queries.max_queries", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
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
