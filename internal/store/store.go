// Package store persists leads, seen place ids, outreach drafts and run
// summaries in SQLite or PostgreSQL.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/registry"
)

// Sentinel errors.
var (
	ErrNotFound      = eris.New("not found")
	ErrInvalidStatus = eris.New("invalid lead status")
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status   string  `json:"status,omitempty"`
	City     string  `json:"city,omitempty"`
	Category string  `json:"category,omitempty"`
	MinScore float64 `json:"min_score,omitempty"`
	Limit    int     `json:"limit,omitempty"`
	Offset   int     `json:"offset,omitempty"`
}

// DefaultListLimit caps ListLeads and ListRuns when no limit is given.
const DefaultListLimit = 100

// LeadStore reads and updates stored leads.
type LeadStore interface {
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	GetLead(ctx context.Context, placeID string) (*model.Lead, error)
	UpdateLeadStatus(ctx context.Context, placeID, status string) error
}

// DraftStore keeps generated outreach drafts.
type DraftStore interface {
	SaveDraft(ctx context.Context, d *model.Draft) error
	ListDrafts(ctx context.Context, placeID string) ([]model.Draft, error)
}

// RunRecorder keeps pipeline run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *model.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)
}

// Store is the full persistence surface. A Store is also a registry of
// seen place ids and a lead sink.
type Store interface {
	registry.Registry
	LeadStore
	DraftStore
	RunRecorder

	Name() string
	Write(ctx context.Context, leads []model.Lead) error

	Migrate(ctx context.Context) error
	Close() error
}

// ValidStatus reports whether s is one of the known lead statuses.
func ValidStatus(s string) bool {
	switch s {
	case model.StatusNotContacted, model.StatusContacted, model.StatusReplied, model.StatusNotInterest:
		return true
	default:
		return false
	}
}

const leadColumns = `place_id, business_name, category, city, state, country, rating, reviews_count,
	phone, website_url, has_website, maps_url, created_at, source_query, status, quality_score, last_contacted_at`

// buildLeadQuery renders the ListLeads SELECT. placeholder maps a 1-based
// argument index to the driver's bind syntax.
func buildLeadQuery(f LeadFilter, placeholder func(int) string) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, placeholder(len(args))))
	}
	if f.Status != "" {
		add("status = %s", f.Status)
	}
	if f.City != "" {
		add("LOWER(city) = LOWER(%s)", f.City)
	}
	if f.Category != "" {
		add("LOWER(category) = LOWER(%s)", f.Category)
	}
	if f.MinScore > 0 {
		add("COALESCE(quality_score, 0) >= %s", f.MinScore)
	}

	var b strings.Builder
	b.WriteString("SELECT " + leadColumns + " FROM leads")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY COALESCE(quality_score, 0) DESC, created_at DESC")

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	args = append(args, limit)
	b.WriteString(" LIMIT " + placeholder(len(args)))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		b.WriteString(" OFFSET " + placeholder(len(args)))
	}
	return b.String(), args
}

type scannable interface {
	Scan(dest ...any) error
}

// warnUnkeyed logs leads dropped by Write for lacking a place id.
func warnUnkeyed(names []string) {
	if len(names) == 0 {
		return
	}
	zap.L().Warn("store: skipped leads without place id",
		zap.Int("count", len(names)),
		zap.Strings("businesses", names),
	)
}
