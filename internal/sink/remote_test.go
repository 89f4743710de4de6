package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/notion/mocks"
	"github.com/sells-group/leadgen-cli/pkg/salesforce"
)

// --- Notion ---

func TestNotionSink_CreatesNewAndUpdatesExisting(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	byPlaceID := func(id string) any {
		return mock.MatchedBy(func(req *notionapi.DatabaseQueryRequest) bool {
			f, ok := req.Filter.(notionapi.PropertyFilter)
			return ok && f.Property == "Place ID" && f.RichText.Equals == id
		})
	}
	mc.On("QueryDatabase", ctx, "leads-db", byPlaceID("p1")).
		Return(&notionapi.DatabaseQueryResponse{}, nil).Once()
	mc.On("QueryDatabase", ctx, "leads-db", byPlaceID("p2")).
		Return(&notionapi.DatabaseQueryResponse{Results: []notionapi.Page{{ID: "page-2"}}}, nil).Once()
	mc.On("CreatePage", ctx, mock.MatchedBy(func(req *notionapi.PageCreateRequest) bool {
		_, hasStatus := req.Properties["Status"]
		return req.Parent.DatabaseID == "leads-db" && hasStatus
	})).Return(&notionapi.Page{ID: "page-1"}, nil).Once()
	mc.On("UpdatePage", ctx, "page-2", mock.MatchedBy(func(req *notionapi.PageUpdateRequest) bool {
		_, hasStatus := req.Properties["Status"]
		return !hasStatus
	})).Return(&notionapi.Page{ID: "page-2"}, nil).Once()

	s := NewNotion(mc, "leads-db")
	require.NoError(t, s.Write(ctx, []model.Lead{lead("p1", "One", 70), lead("p2", "Two", 80)}))
	assert.Equal(t, "notion", s.Name())
}

func TestNotionSink_ReportsFailures(t *testing.T) {
	mc := mocks.NewMockClient(t)
	ctx := context.Background()

	mc.On("QueryDatabase", ctx, "db", mock.Anything).Return(&notionapi.DatabaseQueryResponse{}, nil).Twice()
	mc.On("CreatePage", ctx, mock.Anything).Return(nil, errors.New("validation_error")).Once()
	mc.On("CreatePage", ctx, mock.Anything).Return(&notionapi.Page{ID: "ok"}, nil).Once()

	err := NewNotion(mc, "db").Write(ctx, []model.Lead{lead("p1", "One", 70), lead("p2", "Two", 80)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 leads failed")
}

func TestLeadProperties(t *testing.T) {
	t.Parallel()

	l := lead("p1", "Acme Law", 85)
	props := LeadProperties(&l)

	title, ok := props["Name"].(notionapi.TitleProperty)
	require.True(t, ok)
	assert.Equal(t, "Acme Law", title.Title[0].Text.Content)
	assert.Equal(t, 85.0, props["Score"].(notionapi.NumberProperty).Number)
	assert.Equal(t, "https://p1.test", props["Website"].(notionapi.URLProperty).URL)
	assert.True(t, props["Has Website"].(notionapi.CheckboxProperty).Checkbox)
	assert.Contains(t, props, "Created")

	l.WebsiteURL = nil
	l.Phone = ""
	l.QualityScore = nil
	l.CreatedAt = "not a date"
	props = LeadProperties(&l)
	assert.NotContains(t, props, "Website")
	assert.NotContains(t, props, "Phone")
	assert.NotContains(t, props, "Score")
	assert.NotContains(t, props, "Created")
}

// --- Salesforce ---

type fakeSF struct {
	inserted []map[string]any
	failAll  bool
}

func (f *fakeSF) Query(_ context.Context, _ string, _ any) error { return nil }

func (f *fakeSF) InsertCollection(_ context.Context, _ string, records []map[string]any) ([]salesforce.CollectionResult, error) {
	f.inserted = append(f.inserted, records...)
	out := make([]salesforce.CollectionResult, len(records))
	for i := range records {
		if f.failAll {
			out[i] = salesforce.CollectionResult{Errors: []string{"DUPLICATES_DETECTED"}}
			continue
		}
		out[i] = salesforce.CollectionResult{ID: "00Q", Success: true}
	}
	return out, nil
}

func (f *fakeSF) UpdateCollection(_ context.Context, _ string, _ []salesforce.CollectionRecord) ([]salesforce.CollectionResult, error) {
	return nil, nil
}

func TestSalesforceSink_Write(t *testing.T) {
	fc := &fakeSF{}
	s := NewSalesforce(fc, "")

	noName := lead("p3", "  ", 50)
	require.NoError(t, s.Write(context.Background(), []model.Lead{lead("p1", "One", 85), noName}))
	require.Len(t, fc.inserted, 1)
	assert.Equal(t, "One", fc.inserted[0]["Company"])
	assert.Equal(t, "Hot", fc.inserted[0]["Rating"])
	assert.Equal(t, LeadSource, fc.inserted[0]["LeadSource"])
}

func TestSalesforceSink_Rejected(t *testing.T) {
	err := NewSalesforce(&fakeSF{failAll: true}, "Lead").Write(context.Background(), []model.Lead{lead("p1", "One", 85)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DUPLICATES_DETECTED")
}

func TestRatingTier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Hot", RatingTier(80))
	assert.Equal(t, "Warm", RatingTier(60))
	assert.Equal(t, "Cold", RatingTier(59.9))
}

func TestSalesforceFields_Optional(t *testing.T) {
	t.Parallel()

	l := lead("p1", "One", 40)
	l.Phone = ""
	l.WebsiteURL = nil
	l.Category = ""
	f := SalesforceFields(&l)
	assert.NotContains(t, f, "Phone")
	assert.NotContains(t, f, "Website")
	assert.NotContains(t, f, "Industry")
	assert.Equal(t, "Cold", f["Rating"])
}
