package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/pkg/serper"
)

const serperPageSize = 20

// Serper searches Google Maps through the Serper API.
type Serper struct {
	client     serper.Client
	maxResults int
	country    string
	language   string
}

// NewSerper wraps a Serper client. country and language are passed as the
// gl and hl parameters when set.
func NewSerper(client serper.Client, maxResults int, country, language string) *Serper {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &Serper{client: client, maxResults: maxResults, country: country, language: language}
}

// Name implements Provider.
func (s *Serper) Name() string { return "serper" }

// Search implements Provider.
func (s *Serper) Search(ctx context.Context, query string) ([]model.RawRecord, error) {
	var out []model.RawRecord
	for page := 1; len(out) < s.maxResults; page++ {
		resp, err := s.client.Maps(ctx, serper.MapsRequest{
			Query:    query,
			Country:  s.country,
			Language: s.language,
			Page:     page,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "search: serper maps %q page %d", query, page)
		}
		for _, p := range resp.Places {
			out = append(out, serperToRecord(p))
		}
		if len(resp.Places) < serperPageSize {
			break
		}
	}
	if len(out) > s.maxResults {
		out = out[:s.maxResults]
	}
	return out, nil
}

func serperToRecord(p serper.Place) model.RawRecord {
	id := p.PlaceID
	if id == "" && p.CID != "" {
		id = "cid:" + p.CID
	}
	mapsURL := ""
	if p.CID != "" {
		mapsURL = "https://maps.google.com/?cid=" + p.CID
	}
	return model.RawRecord{
		Title:    p.Title,
		Category: p.Type,
		Rating:   p.Rating,
		Reviews:  p.RatingCount,
		Address:  p.Address,
		Phone:    optString(p.PhoneNumber),
		Website:  optString(p.Website),
		PlaceID:  id,
		MapsURL:  mapsURL,
	}
}
