package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/google"
	"github.com/sells-group/leadgen-cli/pkg/google/mocks"
	"github.com/sells-group/leadgen-cli/pkg/serper"
)

func places(ids ...string) []google.Place {
	out := make([]google.Place, len(ids))
	for i, id := range ids {
		out[i] = google.Place{ID: id, DisplayName: google.LocalizedText{Text: "Biz " + id}}
	}
	return out
}

func TestGooglePlaces_FollowsPageTokens(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, google.TextSearchRequest{TextQuery: "spa in Paris", PageSize: 20}).
		Return(&google.TextSearchResponse{Places: places("a", "b"), NextPageToken: "t2"}, nil).Once()
	client.On("TextSearch", mock.Anything, google.TextSearchRequest{TextQuery: "spa in Paris", PageSize: 18, PageToken: "t2"}).
		Return(&google.TextSearchResponse{Places: places("c")}, nil).Once()

	recs, err := NewGooglePlaces(client, 20).Search(context.Background(), "spa in Paris")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "c", recs[2].PlaceID)
}

func TestGooglePlaces_StopsAtMaxResults(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).
		Return(&google.TextSearchResponse{Places: places("a", "b", "c"), NextPageToken: "more"}, nil).Once()

	recs, err := NewGooglePlaces(client, 2).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestGooglePlaces_Error(t *testing.T) {
	client := mocks.NewMockClient(t)
	client.On("TextSearch", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

	_, err := NewGooglePlaces(client, 0).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google text search")
}

func TestPlaceToRecord(t *testing.T) {
	t.Parallel()

	r := placeToRecord(google.Place{
		ID:                  "pid",
		DisplayName:         google.LocalizedText{Text: "Acme"},
		Types:               []string{"dentist", "health"},
		Rating:              model.Float(4.2),
		UserRatingCount:     model.Int(33),
		FormattedAddress:    "1 Main St, Austin, TX 78701, USA",
		NationalPhoneNumber: "(512) 555-0100",
		GoogleMapsURI:       "https://maps.google.com/?cid=9",
	})
	assert.Equal(t, "Acme", r.Title)
	assert.Equal(t, "dentist", r.Category)
	assert.Equal(t, "(512) 555-0100", r.PhoneValue())
	assert.Nil(t, r.Website)
	assert.Equal(t, 33, r.ReviewsValue())
	assert.Equal(t, "pid", r.PlaceID)
}

type fakeSerper struct {
	pages map[int][]serper.Place
	calls []serper.MapsRequest
}

func (f *fakeSerper) Maps(_ context.Context, req serper.MapsRequest) (*serper.MapsResponse, error) {
	f.calls = append(f.calls, req)
	return &serper.MapsResponse{Places: f.pages[req.Page]}, nil
}

func serperPage(n int, prefix string) []serper.Place {
	out := make([]serper.Place, n)
	for i := range out {
		out[i] = serper.Place{Title: prefix, CID: prefix + string(rune('a'+i))}
	}
	return out
}

func TestSerper_PaginatesUntilShortPage(t *testing.T) {
	t.Parallel()

	fc := &fakeSerper{pages: map[int][]serper.Place{1: serperPage(20, "p1"), 2: serperPage(5, "p2")}}
	recs, err := NewSerper(fc, 60, "us", "en").Search(context.Background(), "spa in Austin")
	require.NoError(t, err)
	assert.Len(t, recs, 25)
	require.Len(t, fc.calls, 2)
	assert.Equal(t, "us", fc.calls[0].Country)
	assert.Equal(t, 2, fc.calls[1].Page)
}

func TestSerperToRecord(t *testing.T) {
	t.Parallel()

	r := serperToRecord(serper.Place{Title: "Spa", Type: "Day spa", CID: "42", Website: "https://spa.test", Rating: model.Float(4.9)})
	assert.Equal(t, "cid:42", r.PlaceID)
	assert.Equal(t, "https://maps.google.com/?cid=42", r.MapsURL)
	assert.True(t, r.HasWebsite())
	assert.Equal(t, "Day spa", r.Category)

	r = serperToRecord(serper.Place{PlaceID: "ChIJ", CID: "42"})
	assert.Equal(t, "ChIJ", r.PlaceID)
}

type fakeProvider struct {
	name  string
	errs  []error
	recs  []model.RawRecord
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, _ string) ([]model.RawRecord, error) {
	f.calls++
	if f.calls <= len(f.errs) && f.errs[f.calls-1] != nil {
		return nil, f.errs[f.calls-1]
	}
	return f.recs, nil
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestRetrying_RetriesAnyError(t *testing.T) {
	t.Parallel()

	fp := &fakeProvider{
		name: "fake",
		errs: []error{errors.New("HTTP 400"), errors.New("timeout")},
		recs: []model.RawRecord{{PlaceID: "a"}},
	}
	recs, err := WithRetry(fp, fastRetry(3)).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, 3, fp.calls)
}

func TestRetrying_Exhausted(t *testing.T) {
	t.Parallel()

	boom := errors.New("down")
	fp := &fakeProvider{name: "fake", errs: []error{boom, boom, boom}}
	r := WithRetry(fp, fastRetry(3))

	_, err := r.Search(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, fp.calls)
	assert.Equal(t, "fake", r.Name())
}

func TestChain_FallsBack(t *testing.T) {
	t.Parallel()

	primary := &fakeProvider{name: "google", errs: []error{errors.New("quota")}}
	secondary := &fakeProvider{name: "serper", recs: []model.RawRecord{{PlaceID: "s"}}}
	c := NewChain(resilience.CircuitBreakerConfig{FailureThreshold: 5, ResetTimeout: time.Minute}, primary, secondary)

	recs, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "s", recs[0].PlaceID)
	assert.Equal(t, "chain:google:serper", c.Name())
}

func TestChain_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	down := errors.New("down")
	primary := &fakeProvider{name: "google", errs: []error{down, down, down, down}}
	secondary := &fakeProvider{name: "serper", recs: []model.RawRecord{{PlaceID: "s"}}}
	c := NewChain(resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour}, primary, secondary)

	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), "q")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, primary.calls, "open breaker skips the primary")
	assert.Equal(t, 3, secondary.calls)
}

func TestChain_AllFail(t *testing.T) {
	t.Parallel()

	c := NewChain(resilience.CircuitBreakerConfig{},
		&fakeProvider{name: "a", errs: []error{errors.New("a down")}},
		&fakeProvider{name: "b", errs: []error{errors.New("b down")}},
	)
	_, err := c.Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")

	_, err = NewChain(resilience.CircuitBreakerConfig{}).Search(context.Background(), "q")
	assert.Error(t, err)
}
