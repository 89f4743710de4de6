// Package pipeline runs the lead qualification pipeline: search each query,
// qualify and de-duplicate the results, transform and score them, then hand
// the ranked leads to the sinks and remember their place IDs.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/qualify"
	"github.com/sells-group/leadgen-cli/internal/registry"
	"github.com/sells-group/leadgen-cli/internal/scorer"
	"github.com/sells-group/leadgen-cli/internal/search"
	"github.com/sells-group/leadgen-cli/internal/sink"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Deps are the collaborators of a run. Recorder is optional.
type Deps struct {
	Provider search.Provider
	Registry registry.Registry
	Sink     sink.Sink
	Recorder store.RunRecorder
}

// Options tune a run.
type Options struct {
	Thresholds   qualify.Thresholds
	MaxLeads     int
	QueryDelay   time.Duration
	Premium      bool
	MinScore     float64
	CostPerQuery float64
}

// OptionsFromConfig maps the pipeline config section to run options.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	return Options{
		Thresholds:   qualify.Thresholds{MinRating: cfg.MinRating, MinReviews: cfg.MinReviews},
		MaxLeads:     cfg.MaxLeadsPerRun,
		QueryDelay:   time.Duration(cfg.QueryDelayMs) * time.Millisecond,
		Premium:      cfg.Premium,
		MinScore:     cfg.MinQualityScore,
		CostPerQuery: cfg.CostPerQuery,
	}
}

// Validate checks the options. Failures wrap config.ErrInvalidConfig and
// name the offending field.
func (o Options) Validate() error {
	var errs []string
	if o.Thresholds.MinRating < 0 || o.Thresholds.MinRating > 5 {
		errs = append(errs, fmt.Sprintf("min_rating must be between 0 and 5, got %g", o.Thresholds.MinRating))
	}
	if o.Thresholds.MinReviews < 0 {
		errs = append(errs, fmt.Sprintf("min_reviews must be >= 0, got %d", o.Thresholds.MinReviews))
	}
	if o.MaxLeads < 1 {
		errs = append(errs, fmt.Sprintf("max_leads_per_run must be >= 1, got %d", o.MaxLeads))
	}
	if o.QueryDelay < 0 {
		errs = append(errs, fmt.Sprintf("query_delay must be >= 0, got %s", o.QueryDelay))
	}
	if o.MinScore < 0 || o.MinScore > 100 {
		errs = append(errs, fmt.Sprintf("min_quality_score must be between 0 and 100, got %g", o.MinScore))
	}
	if o.CostPerQuery < 0 {
		errs = append(errs, fmt.Sprintf("cost_per_query must be >= 0, got %g", o.CostPerQuery))
	}
	if len(errs) == 0 {
		return nil
	}
	return eris.Wrapf(config.ErrInvalidConfig, "pipeline: %s", strings.Join(errs, "; "))
}

// Result is the outcome of a run.
type Result struct {
	Summary model.RunSummary
	// Leads are the accepted leads, ranked by descending quality score.
	Leads []model.Lead
}

// Pipeline runs the qualification pipeline. A Pipeline may be reused for
// successive runs but not for concurrent ones.
type Pipeline struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	onState []func(model.RunState)
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	return &Pipeline{deps: deps, opts: opts, now: time.Now}
}

// OnState registers fn to be called on every state transition.
func (p *Pipeline) OnState(fn func(model.RunState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = append(p.onState, fn)
}

// run carries the mutable state of a single Run.
type run struct {
	p       *Pipeline
	log     *zap.Logger
	summary model.RunSummary
	dedupe  *qualify.Deduplicator
	leads   []model.Lead
}

func (r *run) setState(s model.RunState) {
	if r.summary.State == s {
		return
	}
	r.log.Debug("pipeline: state", zap.String("from", string(r.summary.State)), zap.String("to", string(s)))
	r.summary.State = s

	r.p.mu.Lock()
	fns := append([]func(model.RunState){}, r.p.onState...)
	r.p.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (r *run) capped() bool {
	return r.summary.Counters.Accepted >= r.p.opts.MaxLeads
}

// Run executes one pipeline run over queries. Only invalid configuration
// and context cancellation are returned as errors; search, sink and
// registry failures are logged and reflected in the summary.
func (p *Pipeline) Run(ctx context.Context, queries []string) (*Result, error) {
	r := &run{
		p: p,
		summary: model.RunSummary{
			ID:        uuid.NewString(),
			State:     model.RunStateIdle,
			Premium:   p.opts.Premium,
			StartedAt: p.now().UTC(),
		},
	}
	r.log = zap.L().With(zap.String("run_id", r.summary.ID), zap.Bool("premium", p.opts.Premium))

	if err := p.validate(); err != nil {
		r.setState(model.RunStateAborted)
		r.summary.Error = err.Error()
		r.finish(ctx)
		return &Result{Summary: r.summary}, err
	}

	r.log.Info("pipeline: starting run", zap.Int("queries", len(queries)), zap.Int("max_leads", p.opts.MaxLeads))

	r.setState(model.RunStateLoadingRegistry)
	seen, err := p.deps.Registry.Load(ctx)
	if err != nil {
		r.log.Warn("pipeline: registry load failed, continuing with empty seen set", zap.Error(err))
		seen = registry.NewSet()
	}
	r.dedupe = qualify.NewDeduplicator(seen)
	r.log.Info("pipeline: registry loaded", zap.Int("seen", seen.Len()))

	r.setState(model.RunStateGeneratingQueries)
	queries = cleanQueries(queries)

	if err := r.search(ctx, queries); err != nil {
		r.setState(model.RunStateAborted)
		r.summary.Error = err.Error()
		r.finish(ctx)
		return &Result{Summary: r.summary, Leads: r.leads}, err
	}

	r.setState(model.RunStatePersisting)
	ranked := scorer.RankLeads(r.leads)
	sinkErr := r.persist(ctx, ranked)

	switch {
	case sinkErr != nil:
		r.summary.Error = sinkErr.Error()
		r.setState(model.RunStatePartialFailure)
	case r.summary.Counters.QueriesFailed > 0:
		r.summary.Error = fmt.Sprintf("%d of %d queries failed", r.summary.Counters.QueriesFailed, r.summary.Counters.QueriesIssued)
		r.setState(model.RunStatePartialFailure)
	default:
		r.setState(model.RunStateDone)
	}
	r.finish(ctx)

	c := r.summary.Counters
	r.log.Info("pipeline: run complete",
		zap.String("state", string(r.summary.State)),
		zap.Int("queries_issued", c.QueriesIssued),
		zap.Int("queries_failed", c.QueriesFailed),
		zap.Int("raw_results", c.RawResults),
		zap.Int("filtered_out", c.FilteredOut),
		zap.Int("below_score", c.BelowScore),
		zap.Int("duplicates_skipped", c.DuplicatesSkipped),
		zap.Int("accepted", c.Accepted),
		zap.Float64("cost_usd", r.summary.CostUSD),
	)
	return &Result{Summary: r.summary, Leads: ranked}, nil
}

func (p *Pipeline) validate() error {
	if err := p.opts.Validate(); err != nil {
		return err
	}
	var missing []string
	if p.deps.Provider == nil {
		missing = append(missing, "search provider")
	}
	if p.deps.Registry == nil {
		missing = append(missing, "registry")
	}
	if p.deps.Sink == nil {
		missing = append(missing, "sink")
	}
	if len(missing) > 0 {
		return eris.Wrapf(config.ErrInvalidConfig, "pipeline: %s required", strings.Join(missing, ", "))
	}
	return nil
}

// search issues the queries one at a time, spaced by the query delay, and
// processes each batch before the next query.
func (r *run) search(ctx context.Context, queries []string) error {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if d := r.p.opts.QueryDelay; d > 0 {
		limiter = rate.NewLimiter(rate.Every(d), 1)
	}

	for _, q := range queries {
		if r.capped() {
			r.log.Info("pipeline: lead cap reached", zap.Int("accepted", r.summary.Counters.Accepted))
			return nil
		}
		if err := limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "pipeline: wait for next query")
		}

		r.setState(model.RunStateSearching)
		r.summary.Counters.QueriesIssued++
		r.summary.CostUSD = float64(r.summary.Counters.QueriesIssued) * r.p.opts.CostPerQuery

		records, err := r.p.deps.Provider.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(ctx.Err(), "pipeline: search")
			}
			r.summary.Counters.QueriesFailed++
			r.log.Warn("pipeline: query failed", zap.String("query", q), zap.Error(err))
			continue
		}
		r.summary.Counters.RawResults += len(records)

		if r.p.opts.Premium {
			unique := qualify.DedupeByKey(records)
			r.summary.Counters.DuplicatesSkipped += len(records) - len(unique)
			records = unique
		}

		accepted := r.process(q, records)
		r.log.Info("pipeline: query processed",
			zap.String("query", q),
			zap.Int("results", len(records)),
			zap.Int("accepted", accepted),
		)
	}
	return nil
}

// process runs each record through filter, dedupe, transform and score.
// It returns the number of records accepted from this batch.
func (r *run) process(query string, records []model.RawRecord) int {
	opts := r.p.opts
	c := &r.summary.Counters
	accepted := 0

	for _, rec := range records {
		if r.capped() {
			break
		}

		r.setState(model.RunStateFiltering)
		if !opts.Thresholds.IsQualified(rec) {
			c.FilteredOut++
			r.log.Debug("pipeline: filtered out",
				zap.String("place_id", rec.PlaceID),
				zap.String("reason", opts.Thresholds.Reason(rec)),
			)
			continue
		}
		if r.dedupe.Duplicate(rec) {
			c.DuplicatesSkipped++
			r.log.Debug("pipeline: duplicate", zap.String("place_id", rec.PlaceID))
			continue
		}

		r.setState(model.RunStateTransforming)
		lead := qualify.TransformAt(rec, query, r.p.now())
		highQuality := scorer.IsHighQuality(&rec, opts.MinScore)
		lead.QualityScore = rec.QualityScore

		if opts.Premium && !highQuality {
			c.BelowScore++
			r.log.Debug("pipeline: below min score",
				zap.String("place_id", rec.PlaceID),
				zap.Float64("score", *rec.QualityScore),
			)
			continue
		}

		r.dedupe.Check(rec)
		r.leads = append(r.leads, lead)
		c.Accepted++
		accepted++
	}
	return accepted
}

// persist writes the leads to the sink and, only if the sink accepted them,
// appends their IDs to the registry.
func (r *run) persist(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		r.log.Info("pipeline: no new leads to persist")
		return nil
	}

	if err := r.p.deps.Sink.Write(ctx, leads); err != nil {
		r.log.Error("pipeline: sink write failed, registry not updated",
			zap.String("sink", r.p.deps.Sink.Name()),
			zap.Int("leads", len(leads)),
			zap.Error(err),
		)
		return eris.Wrap(err, "pipeline: persist leads")
	}

	ids := r.dedupe.Accepted()
	if err := r.p.deps.Registry.Save(ctx, ids); err != nil {
		r.log.Warn("pipeline: registry save failed, ids may be processed again next run",
			zap.Int("ids", ids.Len()),
			zap.Error(err),
		)
		return nil
	}
	r.log.Info("pipeline: leads persisted", zap.Int("leads", len(leads)), zap.Int("ids", ids.Len()))
	return nil
}

// finish stamps the completion time and records the summary when a
// recorder is configured.
func (r *run) finish(ctx context.Context) {
	done := r.p.now().UTC()
	r.summary.CompletedAt = &done

	if r.p.deps.Recorder == nil {
		return
	}
	if err := r.p.deps.Recorder.RecordRun(context.WithoutCancel(ctx), &r.summary); err != nil {
		r.log.Warn("pipeline: record run failed", zap.Error(err))
	}
}

// cleanQueries trims queries and drops blanks and repeats, keeping order.
func cleanQueries(queries []string) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
