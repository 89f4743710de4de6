package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/registry"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS seen_places (
	place_id   TEXT PRIMARY KEY,
	first_seen TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	place_id          TEXT PRIMARY KEY,
	business_name     TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	country           TEXT NOT NULL DEFAULT '',
	rating            DOUBLE PRECISION NOT NULL DEFAULT 0,
	reviews_count     INTEGER NOT NULL DEFAULT 0,
	phone             TEXT NOT NULL DEFAULT '',
	website_url       TEXT,
	has_website       BOOLEAN NOT NULL DEFAULT false,
	maps_url          TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	source_query      TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'Not Contacted',
	quality_score     DOUBLE PRECISION,
	last_contacted_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS drafts (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	place_id   TEXT NOT NULL,
	channel    TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	generator  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	premium      BOOLEAN NOT NULL DEFAULT false,
	counters     JSONB NOT NULL,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_drafts_place_id ON drafts(place_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Name implements sink.Sink.
func (s *PostgresStore) Name() string { return "store" }

// Load implements registry.Registry.
func (s *PostgresStore) Load(ctx context.Context) (registry.Set, error) {
	rows, err := s.pool.Query(ctx, `SELECT place_id FROM seen_places`)
	if err != nil {
		return nil, eris.Wrapf(registry.ErrStorageRead, "postgres: load seen places: %v", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, eris.Wrapf(registry.ErrStorageRead, "postgres: scan seen places: %v", err)
	}
	return registry.NewSet(ids...), nil
}

// Save implements registry.Registry. Ids already present are ignored.
func (s *PostgresStore) Save(ctx context.Context, ids registry.Set) error {
	if ids.Len() == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO seen_places (place_id) SELECT unnest($1::text[]) ON CONFLICT (place_id) DO NOTHING`,
		ids.Sorted(),
	)
	if err != nil {
		return eris.Wrapf(registry.ErrStorageWrite, "postgres: save seen places: %v", err)
	}
	return nil
}

const postgresUpsertLead = `INSERT INTO leads (` + leadColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (place_id) DO UPDATE SET
		business_name = EXCLUDED.business_name,
		category = EXCLUDED.category,
		city = EXCLUDED.city,
		state = EXCLUDED.state,
		country = EXCLUDED.country,
		rating = EXCLUDED.rating,
		reviews_count = EXCLUDED.reviews_count,
		phone = EXCLUDED.phone,
		website_url = EXCLUDED.website_url,
		has_website = EXCLUDED.has_website,
		maps_url = EXCLUDED.maps_url,
		quality_score = EXCLUDED.quality_score`

// Write implements sink.Sink. Leads are upserted by place id in a single
// transaction; the status and contact history of an existing lead are
// preserved.
func (s *PostgresStore) Write(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin write leads")
	}
	var unkeyed []string
	for i := range leads {
		l := &leads[i]
		if l.PlaceID == "" {
			unkeyed = append(unkeyed, l.BusinessName)
			continue
		}
		if _, err := tx.Exec(ctx, postgresUpsertLead, leadArgs(l)...); err != nil {
			tx.Rollback(ctx) //nolint:errcheck
			return eris.Wrapf(err, "postgres: upsert lead %s", l.PlaceID)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit write leads")
	}
	warnUnkeyed(unkeyed)
	return nil
}

// ListLeads returns leads matching filter, best score first.
func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query, args := buildLeadQuery(filter, func(n int) string { return "$" + strconv.Itoa(n) })
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanPostgresLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// GetLead returns one lead by place id.
func (s *PostgresStore) GetLead(ctx context.Context, placeID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE place_id = $1`, placeID)
	l, err := scanPostgresLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: lead %s", placeID)
	}
	return l, err
}

// UpdateLeadStatus moves a lead to status. Moving to Contacted stamps
// last_contacted_at.
func (s *PostgresStore) UpdateLeadStatus(ctx context.Context, placeID, status string) error {
	if !ValidStatus(status) {
		return eris.Wrapf(ErrInvalidStatus, "postgres: status %q", status)
	}
	var contacted *time.Time
	if status == model.StatusContacted {
		now := time.Now().UTC()
		contacted = &now
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET status = $1, last_contacted_at = COALESCE($2, last_contacted_at) WHERE place_id = $3`,
		status, contacted, placeID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead status %s", placeID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "lead %s", placeID)
	}
	return nil
}

// SaveDraft stores d, assigning an id and timestamp when missing.
func (s *PostgresStore) SaveDraft(ctx context.Context, d *model.Draft) error {
	fillDraft(d)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO drafts (id, place_id, channel, subject, body, generator, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.PlaceID, d.Channel, d.Subject, d.Body, d.Generator, d.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert draft for %s", d.PlaceID)
}

// ListDrafts returns drafts for placeID, newest first. An empty placeID
// lists every draft.
func (s *PostgresStore) ListDrafts(ctx context.Context, placeID string) ([]model.Draft, error) {
	query := `SELECT id, place_id, channel, subject, body, generator, created_at FROM drafts`
	var args []any
	if placeID != "" {
		query += ` WHERE place_id = $1`
		args = append(args, placeID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list drafts")
	}
	defer rows.Close()

	var drafts []model.Draft
	for rows.Next() {
		var d model.Draft
		if err := rows.Scan(&d.ID, &d.PlaceID, &d.Channel, &d.Subject, &d.Body, &d.Generator, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan draft")
		}
		drafts = append(drafts, d)
	}
	return drafts, eris.Wrap(rows.Err(), "postgres: list drafts iterate")
}

// RecordRun inserts or updates the summary of a run.
func (s *PostgresStore) RecordRun(ctx context.Context, run *model.RunSummary) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal counters")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO runs (id, state, premium, counters, cost_usd, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			counters = EXCLUDED.counters,
			cost_usd = EXCLUDED.cost_usd,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at`,
		run.ID, string(run.State), run.Premium, counters, run.CostUSD, run.Error, run.StartedAt, run.CompletedAt,
	)
	return eris.Wrapf(err, "postgres: record run %s", run.ID)
}

// ListRuns returns the most recent run summaries.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, state, premium, counters, cost_usd, error, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var (
			r        model.RunSummary
			state    string
			counters []byte
		)
		if err := rows.Scan(&r.ID, &state, &r.Premium, &counters, &r.CostUSD, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.State = model.RunState(state)
		if err := json.Unmarshal(counters, &r.Counters); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal counters")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(&l.PlaceID, &l.BusinessName, &l.Category, &l.City, &l.State, &l.Country, &l.Rating,
		&l.ReviewsCount, &l.Phone, &l.WebsiteURL, &l.HasWebsite, &l.MapsURL, &l.CreatedAt, &l.SourceQuery,
		&l.Status, &l.QualityScore, &l.LastContactedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}
	return &l, nil
}
