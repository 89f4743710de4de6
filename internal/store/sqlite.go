package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/registry"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS seen_places (
	place_id   TEXT PRIMARY KEY,
	first_seen DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	place_id          TEXT PRIMARY KEY,
	business_name     TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL DEFAULT '',
	state             TEXT NOT NULL DEFAULT '',
	country           TEXT NOT NULL DEFAULT '',
	rating            REAL NOT NULL DEFAULT 0,
	reviews_count     INTEGER NOT NULL DEFAULT 0,
	phone             TEXT NOT NULL DEFAULT '',
	website_url       TEXT,
	has_website       BOOLEAN NOT NULL DEFAULT 0,
	maps_url          TEXT NOT NULL DEFAULT '',
	created_at        TEXT NOT NULL,
	source_query      TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'Not Contacted',
	quality_score     REAL,
	last_contacted_at DATETIME
);

CREATE TABLE IF NOT EXISTS drafts (
	id         TEXT PRIMARY KEY,
	place_id   TEXT NOT NULL,
	channel    TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	generator  TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	premium      BOOLEAN NOT NULL DEFAULT 0,
	counters     TEXT NOT NULL,
	cost_usd     REAL NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_city ON leads(city);
CREATE INDEX IF NOT EXISTS idx_drafts_place_id ON drafts(place_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Name implements sink.Sink.
func (s *SQLiteStore) Name() string { return "store" }

// Load implements registry.Registry.
func (s *SQLiteStore) Load(ctx context.Context) (registry.Set, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT place_id FROM seen_places`)
	if err != nil {
		return nil, eris.Wrapf(registry.ErrStorageRead, "sqlite: load seen places: %v", err)
	}
	defer rows.Close() //nolint:errcheck

	set := registry.NewSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrapf(registry.ErrStorageRead, "sqlite: scan seen place: %v", err)
		}
		set.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(registry.ErrStorageRead, "sqlite: iterate seen places: %v", err)
	}
	return set, nil
}

// Save implements registry.Registry. Ids already present are ignored.
func (s *SQLiteStore) Save(ctx context.Context, ids registry.Set) error {
	if ids.Len() == 0 {
		return nil
	}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO seen_places (place_id, first_seen) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck

		now := time.Now().UTC()
		for _, id := range ids.Sorted() {
			if _, err := stmt.ExecContext(ctx, id, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return eris.Wrapf(registry.ErrStorageWrite, "sqlite: save seen places: %v", err)
	}
	return nil
}

// Write implements sink.Sink. Leads are upserted by place id; the status and
// contact history of an existing lead are preserved.
func (s *SQLiteStore) Write(ctx context.Context, leads []model.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	var unkeyed []string
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO leads (`+leadColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(place_id) DO UPDATE SET
				business_name = excluded.business_name,
				category = excluded.category,
				city = excluded.city,
				state = excluded.state,
				country = excluded.country,
				rating = excluded.rating,
				reviews_count = excluded.reviews_count,
				phone = excluded.phone,
				website_url = excluded.website_url,
				has_website = excluded.has_website,
				maps_url = excluded.maps_url,
				quality_score = excluded.quality_score`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck

		for i := range leads {
			l := &leads[i]
			if l.PlaceID == "" {
				unkeyed = append(unkeyed, l.BusinessName)
				continue
			}
			if _, err := stmt.ExecContext(ctx, leadArgs(l)...); err != nil {
				return eris.Wrapf(err, "upsert %s", l.PlaceID)
			}
		}
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "sqlite: write leads")
	}
	warnUnkeyed(unkeyed)
	return nil
}

// ListLeads returns leads matching filter, best score first.
func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query, args := buildLeadQuery(filter, func(int) string { return "?" })
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

// GetLead returns one lead by place id.
func (s *SQLiteStore) GetLead(ctx context.Context, placeID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE place_id = ?`, placeID)
	l, err := scanSQLiteLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: lead %s", placeID)
	}
	return l, err
}

// UpdateLeadStatus moves a lead to status. Moving to Contacted stamps
// last_contacted_at.
func (s *SQLiteStore) UpdateLeadStatus(ctx context.Context, placeID, status string) error {
	if !ValidStatus(status) {
		return eris.Wrapf(ErrInvalidStatus, "sqlite: status %q", status)
	}
	var contacted any
	if status == model.StatusContacted {
		contacted = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, last_contacted_at = COALESCE(?, last_contacted_at) WHERE place_id = ?`,
		status, contacted, placeID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead status %s", placeID)
	}
	return checkRowsAffected(res, "lead", placeID)
}

// SaveDraft stores d, assigning an id and timestamp when missing.
func (s *SQLiteStore) SaveDraft(ctx context.Context, d *model.Draft) error {
	fillDraft(d)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, place_id, channel, subject, body, generator, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.PlaceID, d.Channel, d.Subject, d.Body, d.Generator, d.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert draft for %s", d.PlaceID)
}

// ListDrafts returns drafts for placeID, newest first. An empty placeID
// lists every draft.
func (s *SQLiteStore) ListDrafts(ctx context.Context, placeID string) ([]model.Draft, error) {
	query := `SELECT id, place_id, channel, subject, body, generator, created_at FROM drafts`
	var args []any
	if placeID != "" {
		query += ` WHERE place_id = ?`
		args = append(args, placeID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list drafts")
	}
	defer rows.Close() //nolint:errcheck

	var drafts []model.Draft
	for rows.Next() {
		var d model.Draft
		if err := rows.Scan(&d.ID, &d.PlaceID, &d.Channel, &d.Subject, &d.Body, &d.Generator, &d.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan draft")
		}
		drafts = append(drafts, d)
	}
	return drafts, eris.Wrap(rows.Err(), "sqlite: list drafts iterate")
}

// RecordRun inserts or replaces the summary of a run.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.RunSummary) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal counters")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, state, premium, counters, cost_usd, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			counters = excluded.counters,
			cost_usd = excluded.cost_usd,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		run.ID, string(run.State), run.Premium, string(counters), run.CostUSD, run.Error, run.StartedAt, nullable(run.CompletedAt),
	)
	return eris.Wrapf(err, "sqlite: record run %s", run.ID)
}

// ListRuns returns the most recent run summaries.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, premium, counters, cost_usd, error, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.RunSummary
	for rows.Next() {
		var (
			r         model.RunSummary
			state     string
			counters  string
			completed sql.NullTime
		)
		if err := rows.Scan(&r.ID, &state, &r.Premium, &counters, &r.CostUSD, &r.Error, &r.StartedAt, &completed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.State = model.RunState(state)
		if err := json.Unmarshal([]byte(counters), &r.Counters); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal counters")
		}
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return tx.Commit()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func leadArgs(l *model.Lead) []any {
	return []any{
		l.PlaceID, l.BusinessName, l.Category, l.City, l.State, l.Country, l.Rating, l.ReviewsCount,
		l.Phone, nullable(l.WebsiteURL), l.HasWebsite, l.MapsURL, l.CreatedAt, l.SourceQuery, statusOrDefault(l.Status),
		nullable(l.QualityScore), nullable(l.LastContactedAt),
	}
}

// nullable turns a nil pointer into an untyped nil bind argument.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func statusOrDefault(s string) string {
	if s == "" {
		return model.StatusNotContacted
	}
	return s
}

func fillDraft(d *model.Draft) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var (
		l         model.Lead
		website   sql.NullString
		score     sql.NullFloat64
		contacted sql.NullTime
	)
	err := row.Scan(&l.PlaceID, &l.BusinessName, &l.Category, &l.City, &l.State, &l.Country, &l.Rating,
		&l.ReviewsCount, &l.Phone, &website, &l.HasWebsite, &l.MapsURL, &l.CreatedAt, &l.SourceQuery,
		&l.Status, &score, &contacted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}
	if website.Valid {
		l.WebsiteURL = &website.String
	}
	if score.Valid {
		l.QualityScore = &score.Float64
	}
	if contacted.Valid {
		l.LastContactedAt = &contacted.Time
	}
	return &l, nil
}
