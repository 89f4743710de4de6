// Package qualify decides which raw search results become leads: the
// pass/fail filter, the record transformer and the deduplicator.
package qualify

import (
	"github.com/sells-group/leadgen-cli/internal/model"
)

// Default qualification thresholds.
const (
	DefaultMinRating  = 4.0
	DefaultMinReviews = 20
)

// Rejection reasons reported by Thresholds.Reason.
const (
	ReasonMissingRating  = "missing_rating"
	ReasonLowRating      = "low_rating"
	ReasonMissingReviews = "missing_reviews"
	ReasonLowReviews     = "low_reviews"
	ReasonHasWebsite     = "has_website"
)

// Thresholds are the configurable cut-offs of the filter.
type Thresholds struct {
	MinRating  float64
	MinReviews int
}

// DefaultThresholds returns 4.0 stars and 20 reviews.
func DefaultThresholds() Thresholds {
	return Thresholds{MinRating: DefaultMinRating, MinReviews: DefaultMinReviews}
}

// IsQualified applies the default thresholds.
func IsQualified(r model.RawRecord) bool {
	return DefaultThresholds().IsQualified(r)
}

// IsQualified reports whether r has a known rating and review count at or
// above the thresholds and no website. Unknown values never qualify.
func (t Thresholds) IsQualified(r model.RawRecord) bool {
	return t.Reason(r) == ""
}

// Reason returns the first failing condition, or "" when r qualifies.
func (t Thresholds) Reason(r model.RawRecord) string {
	switch {
	case r.Rating == nil:
		return ReasonMissingRating
	case !(*r.Rating >= t.MinRating): // NaN compares false
		return ReasonLowRating
	case r.Reviews == nil:
		return ReasonMissingReviews
	case *r.Reviews < t.MinReviews:
		return ReasonLowReviews
	case r.HasWebsite():
		return ReasonHasWebsite
	default:
		return ""
	}
}
