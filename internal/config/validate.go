package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidConfig is the root of every validation failure.
var ErrInvalidConfig = eris.New("invalid configuration")

var (
	searchProviders = []string{"google", "serper"}
	registryDrivers = []string{"file", "sqlite", "postgres", "redis"}
	storeDrivers    = []string{"sqlite", "postgres"}
	sinkNames       = []string{"csv", "xlsx", "notion", "salesforce", "store"}
)

// Validate checks the shared settings plus the requirements of the given
// mode: "run", "serve", "outreach", "registry" or "store". An empty mode
// checks the shared settings only. All problems are reported together.
func (c *Config) Validate(mode ...string) error {
	var errs []string
	errs = append(errs, c.validateBase()...)

	for _, m := range mode {
		switch m {
		case "run":
			errs = append(errs, c.validateSearch()...)
			errs = append(errs, c.validateSinks()...)
			errs = append(errs, c.validateRegistry()...)
		case "serve":
			if c.Server.Port <= 0 || c.Server.Port > 65535 {
				errs = append(errs, fmt.Sprintf("server.port must be > 0 and <= 65535, got %d", c.Server.Port))
			}
			errs = append(errs, c.validateStore()...)
		case "outreach":
			errs = append(errs, c.validateStore()...)
			if c.Anthropic.MaxTokens <= 0 {
				errs = append(errs, "anthropic.max_tokens must be > 0")
			}
		case "registry":
			errs = append(errs, c.validateRegistry()...)
		case "store":
			errs = append(errs, c.validateStore()...)
		case "":
		default:
			errs = append(errs, fmt.Sprintf("unknown mode %q", m))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return eris.Wrapf(ErrInvalidConfig, "config: %s", strings.Join(errs, "; "))
}

func (c *Config) validateBase() []string {
	var errs []string
	p := c.Pipeline
	if p.MinRating < 0 || p.MinRating > 5 {
		errs = append(errs, fmt.Sprintf("pipeline.min_rating must be between 0 and 5, got %v", p.MinRating))
	}
	if p.MinReviews < 0 {
		errs = append(errs, fmt.Sprintf("pipeline.min_reviews must be >= 0, got %d", p.MinReviews))
	}
	if p.MaxLeadsPerRun < 1 {
		errs = append(errs, fmt.Sprintf("pipeline.max_leads_per_run must be >= 1, got %d", p.MaxLeadsPerRun))
	}
	if p.QueryDelayMs < 0 {
		errs = append(errs, fmt.Sprintf("pipeline.query_delay_ms must be >= 0, got %d", p.QueryDelayMs))
	}
	if p.MinQualityScore < 0 || p.MinQualityScore > 100 {
		errs = append(errs, fmt.Sprintf("pipeline.min_quality_score must be between 0 and 100, got %v", p.MinQualityScore))
	}
	if p.CostPerQuery < 0 {
		errs = append(errs, "pipeline.cost_per_query must be >= 0")
	}

	r := c.Search.Retry
	if r.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("search.retry.max_attempts must be >= 1, got %d", r.MaxAttempts))
	}
	if r.InitialBackoffMs < 0 || r.MaxBackoffMs < r.InitialBackoffMs {
		errs = append(errs, "search.retry backoff must satisfy 0 <= initial_backoff_ms <= max_backoff_ms")
	}
	if r.JitterFraction < 0 || r.JitterFraction > 1 {
		errs = append(errs, "search.retry.jitter_fraction must be between 0 and 1")
	}
	if c.Search.MaxResults < 1 {
		errs = append(errs, "search.max_results must be >= 1")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		errs = append(errs, fmt.Sprintf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	return errs
}

func (c *Config) validateSearch() []string {
	var errs []string
	if !slices.Contains(searchProviders, c.Search.Provider) {
		errs = append(errs, fmt.Sprintf("search.provider must be one of %s, got %q", strings.Join(searchProviders, ", "), c.Search.Provider))
	}
	if fb := c.Search.FallbackProvider; fb != "" && !slices.Contains(searchProviders, fb) {
		errs = append(errs, fmt.Sprintf("search.fallback_provider must be one of %s, got %q", strings.Join(searchProviders, ", "), fb))
	}
	for _, p := range []string{c.Search.Provider, c.Search.FallbackProvider} {
		switch p {
		case "google":
			if c.Google.Key == "" {
				errs = append(errs, "google.key is required")
			}
		case "serper":
			if c.Serper.Key == "" {
				errs = append(errs, "serper.key is required")
			}
		}
	}
	return errs
}

func (c *Config) validateSinks() []string {
	var errs []string
	if len(c.Sinks.Enabled) == 0 {
		errs = append(errs, "sinks.enabled must name at least one sink")
	}
	for _, s := range c.Sinks.Enabled {
		switch s {
		case "csv":
			if c.Sinks.CSVPath == "" {
				errs = append(errs, "sinks.csv_path is required")
			}
		case "xlsx":
			if c.Sinks.XLSXPath == "" {
				errs = append(errs, "sinks.xlsx_path is required")
			}
		case "notion":
			if c.Notion.Token == "" {
				errs = append(errs, "notion.token is required")
			}
			if c.Notion.LeadDB == "" {
				errs = append(errs, "notion.lead_db is required")
			}
		case "salesforce":
			if c.Salesforce.ClientID == "" {
				errs = append(errs, "salesforce.client_id is required")
			}
			if c.Salesforce.Username == "" {
				errs = append(errs, "salesforce.username is required")
			}
			if c.Salesforce.KeyPath == "" {
				errs = append(errs, "salesforce.key_path is required")
			}
		case "store":
			errs = append(errs, c.validateStore()...)
		default:
			errs = append(errs, fmt.Sprintf("sinks.enabled: unknown sink %q (want one of %s)", s, strings.Join(sinkNames, ", ")))
		}
	}
	return errs
}

func (c *Config) validateRegistry() []string {
	var errs []string
	switch c.Registry.Driver {
	case "file":
		if c.Registry.Path == "" {
			errs = append(errs, "registry.path is required")
		}
	case "redis":
		if c.Registry.RedisAddr == "" {
			errs = append(errs, "registry.redis_addr is required")
		}
		if c.Registry.RedisKey == "" {
			errs = append(errs, "registry.redis_key is required")
		}
	case "sqlite", "postgres":
		if c.Registry.Driver != c.Store.Driver {
			errs = append(errs, fmt.Sprintf("registry.driver %q must match store.driver %q", c.Registry.Driver, c.Store.Driver))
		}
		errs = append(errs, c.validateStore()...)
	default:
		errs = append(errs, fmt.Sprintf("registry.driver must be one of %s, got %q", strings.Join(registryDrivers, ", "), c.Registry.Driver))
	}
	return errs
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return []string{"store.path is required"}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
	default:
		return []string{fmt.Sprintf("store.driver must be one of %s, got %q", strings.Join(storeDrivers, ", "), c.Store.Driver)}
	}
	return nil
}
