// Package search adapts external place-search APIs to raw lead records.
package search

import (
	"context"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Provider runs one text query against a place-search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]model.RawRecord, error)
}

// DefaultMaxResults bounds the records collected per query.
const DefaultMaxResults = 20

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
