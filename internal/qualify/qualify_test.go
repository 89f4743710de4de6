package qualify

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/registry"
)

func rec(rating *float64, reviews *int, website *string) model.RawRecord {
	return model.RawRecord{Title: "Biz", Rating: rating, Reviews: reviews, Website: website, PlaceID: "p"}
}

func TestIsQualified(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		rec    model.RawRecord
		want   bool
		reason string
	}{
		{"boundary passes", rec(model.Float(4.0), model.Int(20), nil), true, ""},
		{"empty website counts as absent", rec(model.Float(4.0), model.Int(20), model.String("")), true, ""},
		{"whitespace website counts as absent", rec(model.Float(4.6), model.Int(90), model.String("  ")), true, ""},
		{"rating just below", rec(model.Float(3.9999), model.Int(20), nil), false, ReasonLowRating},
		{"reviews just below", rec(model.Float(4.5), model.Int(19), nil), false, ReasonLowReviews},
		{"has website", rec(model.Float(4.5), model.Int(200), model.String("http://x.com")), false, ReasonHasWebsite},
		{"missing rating", rec(nil, model.Int(200), nil), false, ReasonMissingRating},
		{"missing reviews", rec(model.Float(4.5), nil, nil), false, ReasonMissingReviews},
		{"zero rating present", rec(model.Float(0), model.Int(200), nil), false, ReasonLowRating},
		{"NaN rating", rec(model.Float(math.NaN()), model.Int(200), nil), false, ReasonLowRating},
		{"all absent", model.RawRecord{}, false, ReasonMissingRating},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsQualified(tt.rec))
			assert.Equal(t, tt.reason, DefaultThresholds().Reason(tt.rec))
		})
	}
}

func TestThresholds_Custom(t *testing.T) {
	t.Parallel()

	th := Thresholds{MinRating: 4.5, MinReviews: 100}
	assert.False(t, th.IsQualified(rec(model.Float(4.4), model.Int(500), nil)))
	assert.False(t, th.IsQualified(rec(model.Float(4.8), model.Int(99), nil)))
	assert.True(t, th.IsQualified(rec(model.Float(4.5), model.Int(100), nil)))

	lax := Thresholds{}
	assert.True(t, lax.IsQualified(rec(model.Float(0), model.Int(0), nil)))
	assert.False(t, lax.IsQualified(rec(nil, model.Int(0), nil)), "unknown rating never qualifies")
}

func TestTransformAt_Completeness(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 4, 5, 6, 7, 890, time.FixedZone("X", 3600))
	r := model.RawRecord{
		Title:    "  Acme Dental ",
		Category: "Dentist",
		Rating:   model.Float(4.7),
		Reviews:  model.Int(312),
		Address:  "500 Congress Ave, Austin, TX 78701, USA",
		Phone:    model.String(" +1 512 555 0100 "),
		PlaceID:  "ChIJ-acme",
		MapsURL:  "https://maps.google.com/?cid=42",
	}

	lead := TransformAt(r, "dentist in Austin", now)

	assert.Equal(t, "Acme Dental", lead.BusinessName)
	assert.Equal(t, "Dentist", lead.Category)
	assert.Equal(t, "Austin", lead.City)
	assert.Equal(t, "TX", lead.State)
	assert.Equal(t, "USA", lead.Country)
	assert.InDelta(t, 4.7, lead.Rating, 0.0001)
	assert.Equal(t, 312, lead.ReviewsCount)
	assert.Equal(t, "+1 512 555 0100", lead.Phone)
	assert.Nil(t, lead.WebsiteURL)
	assert.False(t, lead.HasWebsite)
	assert.Equal(t, "https://maps.google.com/?cid=42", lead.MapsURL)
	assert.Equal(t, "ChIJ-acme", lead.PlaceID)
	assert.Equal(t, "2026-03-04T04:06:07Z", lead.CreatedAt)
	assert.Equal(t, "dentist in Austin", lead.SourceQuery)
	assert.Equal(t, model.StatusNotContacted, lead.Status)
	assert.Len(t, lead.Row(), len(model.LeadColumns))
}

func TestTransform_WebsiteAndMapsFallback(t *testing.T) {
	t.Parallel()

	r := model.RawRecord{Title: "Studio", Website: model.String("https://studio.test"), PlaceID: "abc"}
	lead := Transform(r, "q")

	require.NotNil(t, lead.WebsiteURL)
	assert.Equal(t, "https://studio.test", *lead.WebsiteURL)
	assert.True(t, lead.HasWebsite)
	assert.Equal(t, "https://www.google.com/maps/place/?q=place_id:abc", lead.MapsURL)
	assert.NotEmpty(t, lead.CreatedAt)
	_, err := time.Parse(time.RFC3339, lead.CreatedAt)
	assert.NoError(t, err)
}

func TestTransform_NeverFailsOnEmptyRecord(t *testing.T) {
	t.Parallel()

	lead := Transform(model.RawRecord{}, "")
	assert.Equal(t, model.StatusNotContacted, lead.Status)
	assert.Equal(t, "", lead.City)
	assert.Equal(t, "", lead.MapsURL)
	assert.Len(t, lead.Row(), len(model.LeadColumns))
}

func TestTransform_CityFromQuery(t *testing.T) {
	t.Parallel()

	lead := Transform(model.RawRecord{Title: "Spa", Address: "Sheikh Zayed Road"}, "spa in Dubai, UAE")
	assert.Equal(t, "Dubai", lead.City)
	assert.Equal(t, "UAE", lead.Country)

	lead = Transform(model.RawRecord{Title: "Spa"}, "luxury spa in Paris")
	assert.Equal(t, "Paris", lead.City)
	assert.Equal(t, "", lead.Country)
}

func TestParseAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr string
		want Location
	}{
		{"123 Main St, Springfield, IL 62701, USA", Location{City: "Springfield", State: "IL", Country: "USA"}},
		{"123 Wall Street, New York, USA", Location{City: "New York", Country: "USA"}},
		{"New York, USA", Location{City: "New York", Country: "USA"}},
		{"Springfield, IL 62701", Location{City: "Springfield", State: "IL"}},
		{"1 George St, Sydney, NSW 2000, Australia", Location{City: "Sydney", State: "NSW", Country: "Australia"}},
		{"Unit 4, 9 High St, Bristol, UK", Location{City: "Bristol", Country: "UK"}},
		{"12 Rua Augusta, Lisbon, Lisboa, Portugal", Location{City: "Lisbon", State: "Lisboa", Country: "Portugal"}},
		{"Suite 200, 1 King St W, Toronto, Ontario, Canada", Location{City: "Toronto", State: "Ontario", Country: "Canada"}},
		{" , ,London,, ", Location{}},
		{"", Location{}},
		{"just a street", Location{}},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseAddress(tt.addr))
		})
	}
}

func TestDeduplicator_RegistryAndInRun(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(registry.NewSet("X"))

	assert.False(t, d.Check(model.RawRecord{PlaceID: "X"}))
	assert.False(t, d.Check(model.RawRecord{PlaceID: "X"}))

	assert.True(t, d.Check(model.RawRecord{PlaceID: "Y"}), "first Y is accepted")
	assert.False(t, d.Check(model.RawRecord{PlaceID: "Y"}), "second Y is an in-run duplicate")

	assert.Equal(t, []string{"Y"}, d.Accepted().Sorted())
}

func TestDeduplicator_DuplicateDoesNotReserve(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(registry.NewSet("X"))
	assert.True(t, d.Duplicate(model.RawRecord{PlaceID: "X"}))
	assert.False(t, d.Duplicate(model.RawRecord{PlaceID: "Y"}))
	assert.False(t, d.Duplicate(model.RawRecord{PlaceID: "Y"}))
	assert.False(t, d.Duplicate(model.RawRecord{}))
	assert.Equal(t, 0, d.Accepted().Len())

	require.True(t, d.Check(model.RawRecord{PlaceID: "Y"}))
	assert.True(t, d.Duplicate(model.RawRecord{PlaceID: "Y"}))
}

func TestDeduplicator_EmptyIDPassesThrough(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil)
	assert.True(t, d.Check(model.RawRecord{Title: "a"}))
	assert.True(t, d.Check(model.RawRecord{Title: "a"}))
	assert.Equal(t, 0, d.Accepted().Len())
}

func TestDeduplicator_AcceptedIsACopy(t *testing.T) {
	t.Parallel()

	d := NewDeduplicator(nil)
	d.Check(model.RawRecord{PlaceID: "a"})
	acc := d.Accepted()
	acc.Add("b")
	assert.Equal(t, 1, d.Accepted().Len())
}

func TestKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pid", Key(model.RawRecord{PlaceID: "pid", Title: "ignored"}))
	assert.Equal(t, "cafe creme|12 rue de l eglise paris",
		Key(model.RawRecord{Title: "Café Crème!", Address: "12 Rue de l'Église,  Paris"}))
	assert.Equal(t, "", Key(model.RawRecord{}))
}

func TestDedupeByKey(t *testing.T) {
	t.Parallel()

	in := []model.RawRecord{
		{Title: "One", PlaceID: "1"},
		{Title: "Café", Address: "Main St"},
		{Title: "One again", PlaceID: "1"},
		{Title: "CAFE", Address: "main st."},
		{},
		{},
	}
	out := DedupeByKey(in)
	require.Len(t, out, 4)
	assert.Equal(t, "One", out[0].Title)
	assert.Equal(t, "Café", out[1].Title)
}
