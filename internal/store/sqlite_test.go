package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/registry"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLead(id string, score float64) model.Lead {
	return model.Lead{
		BusinessName: "Biz " + id,
		Category:     "Dentist",
		City:         "Austin",
		State:        "TX",
		Country:      "USA",
		Rating:       4.6,
		ReviewsCount: 120,
		Phone:        "+1 512 555 0100",
		WebsiteURL:   model.String("https://" + id + ".test"),
		HasWebsite:   true,
		MapsURL:      "https://maps.google.com/?cid=" + id,
		PlaceID:      id,
		CreatedAt:    "2026-03-04T04:06:07Z",
		SourceQuery:  "Dentist in Austin, TX, USA",
		Status:       model.StatusNotContacted,
		QualityScore: model.Float(score),
	}
}

func TestSQLite_ImplementsStore(t *testing.T) {
	var _ Store = newTestSQLiteStore(t)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

// --- Registry ---

func TestSQLite_Registry_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seen, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, seen.Len())

	require.NoError(t, st.Save(ctx, registry.NewSet("a", "b")))
	require.NoError(t, st.Save(ctx, registry.NewSet("b", "c")))
	require.NoError(t, st.Save(ctx, registry.NewSet()))

	seen, err = st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, seen.Sorted())
}

func TestSQLite_Registry_ClosedDB(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Close())

	_, err := st.Load(context.Background())
	assert.ErrorIs(t, err, registry.ErrStorageRead)

	err = st.Save(context.Background(), registry.NewSet("a"))
	assert.ErrorIs(t, err, registry.ErrStorageWrite)
}

// --- Leads ---

func TestSQLite_Write_AndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, []model.Lead{testLead("p1", 80)}))

	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Biz p1", got.BusinessName)
	assert.Equal(t, "https://p1.test", got.Website())
	assert.True(t, got.HasWebsite)
	assert.Equal(t, 120, got.ReviewsCount)
	assert.InDelta(t, 80.0, got.Score(), 0.001)
	assert.Equal(t, model.StatusNotContacted, got.Status)
	assert.Nil(t, got.LastContactedAt)
}

func TestSQLite_Write_NullableFields(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	l := testLead("p1", 0)
	l.WebsiteURL = nil
	l.HasWebsite = false
	l.QualityScore = nil
	require.NoError(t, st.Write(ctx, []model.Lead{l}))

	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got.WebsiteURL)
	assert.Nil(t, got.QualityScore)
	assert.False(t, got.HasWebsite)
}

func TestSQLite_Write_UpsertPreservesStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Write(ctx, []model.Lead{testLead("p1", 70)}))
	require.NoError(t, st.UpdateLeadStatus(ctx, "p1", model.StatusContacted))

	updated := testLead("p1", 90)
	updated.BusinessName = "Renamed"
	require.NoError(t, st.Write(ctx, []model.Lead{updated}))

	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.BusinessName)
	assert.InDelta(t, 90.0, got.Score(), 0.001)
	assert.Equal(t, model.StatusContacted, got.Status)
	assert.NotNil(t, got.LastContactedAt)
}

func TestSQLite_Write_SkipsEmptyPlaceID(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	st := newTestSQLiteStore(t)
	ctx := context.Background()

	unkeyed := testLead("", 50)
	unkeyed.BusinessName = "No ID Dental"
	require.NoError(t, st.Write(ctx, []model.Lead{unkeyed, testLead("p2", 60)}))

	leads, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "p2", leads[0].PlaceID)

	warned := logs.FilterMessage("store: skipped leads without place id").All()
	require.Len(t, warned, 1)
	assert.Equal(t, zapcore.WarnLevel, warned[0].Level)
	fields := warned[0].ContextMap()
	assert.EqualValues(t, 1, fields["count"])
	assert.Equal(t, []interface{}{"No ID Dental"}, fields["businesses"])
}

func TestSQLite_Write_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Write(context.Background(), nil))
}

func TestSQLite_GetLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetLead(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListLeads_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	paris := testLead("p3", 95)
	paris.City = "Paris"
	paris.Category = "Spa"
	require.NoError(t, st.Write(ctx, []model.Lead{testLead("p1", 60), testLead("p2", 75), paris}))
	require.NoError(t, st.UpdateLeadStatus(ctx, "p2", model.StatusReplied))

	all, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "p3", all[0].PlaceID, "best score first")

	byCity, err := st.ListLeads(ctx, LeadFilter{City: "austin"})
	require.NoError(t, err)
	assert.Len(t, byCity, 2)

	byStatus, err := st.ListLeads(ctx, LeadFilter{Status: model.StatusReplied})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "p2", byStatus[0].PlaceID)

	byScore, err := st.ListLeads(ctx, LeadFilter{MinScore: 70})
	require.NoError(t, err)
	assert.Len(t, byScore, 2)

	byCategory, err := st.ListLeads(ctx, LeadFilter{Category: "SPA"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	page, err := st.ListLeads(ctx, LeadFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p2", page[0].PlaceID)
}

func TestSQLite_UpdateLeadStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.Write(ctx, []model.Lead{testLead("p1", 60)}))

	err := st.UpdateLeadStatus(ctx, "p1", "Maybe")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	err = st.UpdateLeadStatus(ctx, "missing", model.StatusContacted)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.UpdateLeadStatus(ctx, "p1", model.StatusContacted))
	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got.LastContactedAt)
	first := *got.LastContactedAt

	require.NoError(t, st.UpdateLeadStatus(ctx, "p1", model.StatusReplied))
	got, err = st.GetLead(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReplied, got.Status)
	require.NotNil(t, got.LastContactedAt)
	assert.True(t, first.Equal(*got.LastContactedAt), "reply keeps the contact time")
}

// --- Drafts ---

func TestSQLite_Drafts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	older := &model.Draft{PlaceID: "p1", Channel: model.ChannelEmail, Subject: "Hi", Body: "Hello", Generator: "template",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &model.Draft{PlaceID: "p1", Channel: model.ChannelMessage, Body: "Hey", Generator: "claude",
		CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	other := &model.Draft{PlaceID: "p2", Channel: model.ChannelMessage, Body: "Yo", Generator: "template"}
	for _, d := range []*model.Draft{older, newer, other} {
		require.NoError(t, st.SaveDraft(ctx, d))
		assert.NotEmpty(t, d.ID)
	}
	assert.False(t, other.CreatedAt.IsZero())

	drafts, err := st.ListDrafts(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, newer.ID, drafts[0].ID)
	assert.Equal(t, "Hi", drafts[1].Subject)

	all, err := st.ListDrafts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// --- Runs ---

func TestSQLite_Runs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	run := &model.RunSummary{State: model.RunStateSearching, Premium: true, StartedAt: start}
	require.NoError(t, st.RecordRun(ctx, run))
	require.NotEmpty(t, run.ID)

	done := start.Add(5 * time.Minute)
	run.State = model.RunStateDone
	run.Counters = model.RunCounters{QueriesIssued: 2, RawResults: 10, Accepted: 3, FilteredOut: 7}
	run.CostUSD = 0.064
	run.CompletedAt = &done
	require.NoError(t, st.RecordRun(ctx, run))

	earlier := &model.RunSummary{State: model.RunStateAborted, Error: "boom", StartedAt: start.Add(-time.Hour)}
	require.NoError(t, st.RecordRun(ctx, earlier))

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, model.RunStateDone, runs[0].State)
	assert.True(t, runs[0].Premium)
	assert.Equal(t, 3, runs[0].Counters.Accepted)
	assert.InDelta(t, 0.064, runs[0].CostUSD, 1e-9)
	require.NotNil(t, runs[0].CompletedAt)
	assert.True(t, done.Equal(*runs[0].CompletedAt))
	assert.Equal(t, "boom", runs[1].Error)
	assert.Nil(t, runs[1].CompletedAt)

	limited, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestBuildLeadQuery(t *testing.T) {
	t.Parallel()

	q, args := buildLeadQuery(LeadFilter{Status: "Contacted", MinScore: 60, Limit: 5, Offset: 10},
		func(n int) string { return "$" + string(rune('0'+n)) })
	assert.Contains(t, q, "WHERE status = $1 AND COALESCE(quality_score, 0) >= $2")
	assert.Contains(t, q, "LIMIT $3 OFFSET $4")
	assert.Equal(t, []any{"Contacted", 60.0, 5, 10}, args)

	q, args = buildLeadQuery(LeadFilter{}, func(int) string { return "?" })
	assert.NotContains(t, q, "WHERE")
	assert.Equal(t, []any{DefaultListLimit}, args)
}

func TestValidStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidStatus(model.StatusNotContacted))
	assert.True(t, ValidStatus(model.StatusNotInterest))
	assert.False(t, ValidStatus(""))
	assert.False(t, ValidStatus("contacted"))
}
