package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/outreach"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/queries"
	"github.com/sells-group/leadgen-cli/internal/registry"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/sink"
	"github.com/sells-group/leadgen-cli/internal/store"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/google"
	"github.com/sells-group/leadgen-cli/pkg/notion"
	sfpkg "github.com/sells-group/leadgen-cli/pkg/salesforce"
	"github.com/sells-group/leadgen-cli/pkg/serper"
)

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(c.Store.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// closer releases whatever an init helper opened.
type closer func()

// initRegistry builds the configured registry. The sqlite and postgres
// drivers reuse st when given, so the registry and the lead store share a
// connection; otherwise a store is opened and closed by the returned closer.
func initRegistry(ctx context.Context, c *config.Config, st store.Store) (registry.Registry, closer, error) {
	switch c.Registry.Driver {
	case "file":
		return registry.NewFileRegistry(c.Registry.Path), func() {}, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Registry.RedisAddr,
			Password: c.Registry.RedisPassword,
			DB:       c.Registry.RedisDB,
		})
		return registry.NewRedisRegistry(rdb, c.Registry.RedisKey), func() { _ = rdb.Close() }, nil
	case "sqlite", "postgres":
		if st != nil {
			return st, func() {}, nil
		}
		own, err := initStore(ctx, c)
		if err != nil {
			return nil, nil, err
		}
		return own, func() { _ = own.Close() }, nil
	default:
		return nil, nil, eris.Errorf("unsupported registry driver: %s", c.Registry.Driver)
	}
}

// needsStore reports whether a run must open the lead store.
func needsStore(c *config.Config) bool {
	if c.Registry.Driver == "sqlite" || c.Registry.Driver == "postgres" {
		return true
	}
	for _, s := range c.Sinks.Enabled {
		if s == "store" {
			return true
		}
	}
	return false
}

// initSinks builds one sink per enabled name. st is used for the "store"
// sink and may be nil when that sink is not enabled.
func initSinks(c *config.Config, st store.Store) (*sink.Multi, error) {
	var sinks []sink.Sink
	for _, name := range c.Sinks.Enabled {
		switch name {
		case "csv":
			sinks = append(sinks, sink.NewCSV(c.Sinks.CSVPath))
		case "xlsx":
			sinks = append(sinks, sink.NewXLSX(c.Sinks.XLSXPath, c.Sinks.XLSXSheet))
		case "notion":
			client := notion.NewClient(c.Notion.Token, notion.WithRateLimit(c.Notion.RateLimit))
			sinks = append(sinks, sink.NewNotion(client, c.Notion.LeadDB))
		case "salesforce":
			client, err := sfpkg.Dial(sfpkg.Credentials{
				LoginURL: c.Salesforce.LoginURL,
				Username: c.Salesforce.Username,
				ClientID: c.Salesforce.ClientID,
				KeyPath:  c.Salesforce.KeyPath,
			})
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink.NewSalesforce(client, c.Salesforce.SObject))
		case "store":
			if st == nil {
				return nil, eris.New("store sink enabled but no store is open")
			}
			sinks = append(sinks, st)
		default:
			return nil, eris.Errorf("unknown sink: %s", name)
		}
	}
	return sink.NewMulti(sinks...), nil
}

// initSearch builds the provider chain: the primary provider, then the
// fallback, each wrapped with retry and guarded by a circuit breaker.
func initSearch(c *config.Config) (search.Provider, error) {
	retry := resilience.FromRetryConfig(
		c.Search.Retry.MaxAttempts,
		c.Search.Retry.InitialBackoffMs,
		c.Search.Retry.MaxBackoffMs,
		c.Search.Retry.Multiplier,
		c.Search.Retry.JitterFraction,
	)
	circuit := resilience.FromCircuitConfig(c.Search.Circuit.FailureThreshold, c.Search.Circuit.ResetTimeoutSecs)

	var providers []search.Provider
	for _, name := range []string{c.Search.Provider, c.Search.FallbackProvider} {
		if name == "" {
			continue
		}
		p, err := newProvider(c, name)
		if err != nil {
			return nil, err
		}
		providers = append(providers, search.WithRetry(p, retry))
	}
	if len(providers) == 0 {
		return nil, eris.New("no search provider configured")
	}
	return search.NewChain(circuit, providers...), nil
}

func newProvider(c *config.Config, name string) (search.Provider, error) {
	timeout := time.Duration(c.Search.TimeoutSecs) * time.Second
	switch name {
	case "google":
		client := google.NewClient(c.Google.Key,
			google.WithBaseURL(c.Google.BaseURL),
			google.WithRateLimit(c.Google.RateLimit),
		)
		return search.NewGooglePlaces(client, c.Search.MaxResults), nil
	case "serper":
		client := serper.NewClient(c.Serper.Key,
			serper.WithBaseURL(c.Serper.BaseURL),
			serper.WithTimeout(timeout),
		)
		return search.NewSerper(client, c.Search.MaxResults, c.Serper.Country, c.Serper.Language), nil
	default:
		return nil, eris.Errorf("unsupported search provider: %s", name)
	}
}

// buildQueries resolves the vocabulary and expands it into search queries,
// restricted to the target countries and capped by queries.max_queries.
func buildQueries(c *config.Config) ([]string, error) {
	v, err := queries.Resolve(c.Queries.Cities, c.Queries.Categories, c.Queries.VocabularyFile)
	if err != nil {
		return nil, err
	}
	cities := v.Cities
	if len(c.Pipeline.TargetCountries) > 0 {
		cities = queries.FilterCities(cities, c.Pipeline.TargetCountries)
		if len(cities) == 0 {
			zap.L().Warn("no cities match the target countries", zap.Strings("countries", c.Pipeline.TargetCountries))
		}
	}
	return queries.Limit(queries.Generate(v.Categories, cities), c.Queries.MaxQueries), nil
}

// runEnv holds everything a pipeline run needs.
type runEnv struct {
	Pipeline *pipeline.Pipeline
	Store    store.Store // nil unless a store-backed registry or sink is used
	Sinks    *sink.Multi
	closers  []closer
}

// Close releases resources held by the run environment.
func (e *runEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initRun wires the search chain, registry, sinks and store into a
// Pipeline. Callers should defer env.Close().
func initRun(ctx context.Context, c *config.Config) (*runEnv, error) {
	if err := c.Validate("run"); err != nil {
		return nil, err
	}

	env := &runEnv{}
	if needsStore(c) {
		st, err := initStore(ctx, c)
		if err != nil {
			return nil, err
		}
		env.Store = st
		env.closers = append(env.closers, func() { _ = st.Close() })
	}

	reg, closeReg, err := initRegistry(ctx, c, env.Store)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, closeReg)

	sinks, err := initSinks(c, env.Store)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Sinks = sinks

	provider, err := initSearch(c)
	if err != nil {
		env.Close()
		return nil, err
	}

	deps := pipeline.Deps{Provider: provider, Registry: reg, Sink: sinks}
	if env.Store != nil {
		deps.Recorder = env.Store
	}
	env.Pipeline = pipeline.New(deps, pipeline.OptionsFromConfig(c.Pipeline))
	return env, nil
}

// initGenerator returns the Claude generator with the template fallback,
// or the template alone when no Anthropic key is configured.
func initGenerator(c *config.Config) outreach.Generator {
	sender := outreach.SenderFromConfig(c.Outreach)
	tmpl := outreach.NewTemplate(sender)
	if c.Anthropic.Key == "" {
		zap.L().Info("anthropic key not set, drafting from templates only")
		return outreach.NewFallback(nil, tmpl)
	}
	claude := outreach.NewClaude(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic, sender)
	return outreach.NewFallback(claude, tmpl)
}
