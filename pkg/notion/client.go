// Package notion is a throttled facade over jomei/notionapi, limited to the
// database and page calls the lead sink makes.
package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// DefaultRateLimit is Notion's average allowance per integration, in
// requests per second.
const DefaultRateLimit = 3

// Client is the page and database surface the lead sink needs.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// ClientOption configures NewClient.
type ClientOption func(*throttled)

// WithRateLimit sets the request rate. Zero or less turns throttling off.
func WithRateLimit(rps float64) ClientOption {
	return func(t *throttled) { t.limiter = newLimiter(rps) }
}

type throttled struct {
	api     *notionapi.Client
	limiter *rate.Limiter
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
}

// NewClient returns a Client for an integration token, throttled to
// DefaultRateLimit unless overridden.
func NewClient(token string, opts ...ClientOption) Client {
	t := &throttled{
		api:     notionapi.NewClient(notionapi.Token(token)),
		limiter: newLimiter(DefaultRateLimit),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// call waits for a rate slot, runs fn and tags any error with op.
func call[T any](ctx context.Context, t *throttled, op string, fn func() (T, error)) (T, error) {
	var zero T
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return zero, eris.Wrapf(err, "notion: %s: rate limit", op)
		}
	}
	v, err := fn()
	if err != nil {
		return zero, eris.Wrapf(err, "notion: %s", op)
	}
	return v, nil
}

func (t *throttled) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	return call(ctx, t, "query database "+dbID, func() (*notionapi.DatabaseQueryResponse, error) {
		return t.api.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
}

func (t *throttled) CreatePage(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	return call(ctx, t, "create page", func() (*notionapi.Page, error) {
		return t.api.Page.Create(ctx, req)
	})
}

func (t *throttled) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	return call(ctx, t, "update page "+pageID, func() (*notionapi.Page, error) {
		return t.api.Page.Update(ctx, notionapi.PageID(pageID), req)
	})
}
