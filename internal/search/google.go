package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/google"
)

// GooglePlaces searches with the Places Text Search API, following page
// tokens until MaxResults records are collected.
type GooglePlaces struct {
	client     google.Client
	maxResults int
}

// NewGooglePlaces wraps a Places client. maxResults <= 0 uses
// DefaultMaxResults.
func NewGooglePlaces(client google.Client, maxResults int) *GooglePlaces {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &GooglePlaces{client: client, maxResults: maxResults}
}

// Name implements Provider.
func (g *GooglePlaces) Name() string { return "google" }

// Search implements Provider.
func (g *GooglePlaces) Search(ctx context.Context, query string) ([]model.RawRecord, error) {
	var out []model.RawRecord
	token := ""
	for len(out) < g.maxResults {
		req := google.TextSearchRequest{
			TextQuery: query,
			PageSize:  min(google.MaxPageSize, g.maxResults-len(out)),
			PageToken: token,
		}
		resp, err := g.client.TextSearch(ctx, req)
		if err != nil {
			return nil, eris.Wrapf(err, "search: google text search %q", query)
		}
		for _, p := range resp.Places {
			out = append(out, placeToRecord(p))
		}
		if resp.NextPageToken == "" || len(resp.Places) == 0 {
			break
		}
		token = resp.NextPageToken
	}
	if len(out) > g.maxResults {
		out = out[:g.maxResults]
	}
	return out, nil
}

func placeToRecord(p google.Place) model.RawRecord {
	category := p.PrimaryTypeDisplayName.Text
	if category == "" && len(p.Types) > 0 {
		category = p.Types[0]
	}
	phone := p.InternationalPhoneNumber
	if phone == "" {
		phone = p.NationalPhoneNumber
	}
	return model.RawRecord{
		Title:    p.DisplayName.Text,
		Category: category,
		Rating:   p.Rating,
		Reviews:  p.UserRatingCount,
		Address:  p.FormattedAddress,
		Phone:    optString(phone),
		Website:  optString(p.WebsiteURI),
		PlaceID:  p.ID,
		MapsURL:  p.GoogleMapsURI,
	}
}
