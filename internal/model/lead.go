package model

import (
	"strconv"
	"time"
)

// Lead statuses. The pipeline only ever writes StatusNotContacted; the
// outreach tooling moves a lead forward.
const (
	StatusNotContacted = "Not Contacted"
	StatusContacted    = "Contacted"
	StatusReplied      = "Replied"
	StatusNotInterest  = "Not Interested"
)

// LeadColumns is the fixed column order used by every tabular sink.
var LeadColumns = []string{
	"business_name", "category", "city", "state", "country",
	"rating", "reviews_count", "phone", "website_url", "has_website",
	"maps_url", "place_id", "created_at", "source_query", "status",
}

// Lead is a normalized, qualified business record ready for outreach.
type Lead struct {
	BusinessName    string     `json:"business_name" db:"business_name"`
	Category        string     `json:"category" db:"category"`
	City            string     `json:"city" db:"city"`
	State           string     `json:"state" db:"state"`
	Country         string     `json:"country" db:"country"`
	Rating          float64    `json:"rating" db:"rating"`
	ReviewsCount    int        `json:"reviews_count" db:"reviews_count"`
	Phone           string     `json:"phone" db:"phone"`
	WebsiteURL      *string    `json:"website_url" db:"website_url"`
	HasWebsite      bool       `json:"has_website" db:"has_website"`
	MapsURL         string     `json:"maps_url" db:"maps_url"`
	PlaceID         string     `json:"place_id" db:"place_id"`
	CreatedAt       string     `json:"created_at" db:"created_at"`
	SourceQuery     string     `json:"source_query" db:"source_query"`
	Status          string     `json:"status" db:"status"`
	QualityScore    *float64   `json:"quality_score,omitempty" db:"quality_score"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty" db:"last_contacted_at"`
}

// Website returns the website URL, or "" when absent.
func (l Lead) Website() string {
	if l.WebsiteURL == nil {
		return ""
	}
	return *l.WebsiteURL
}

// Score returns the quality score, or 0 when unscored.
func (l Lead) Score() float64 {
	if l.QualityScore == nil {
		return 0
	}
	return *l.QualityScore
}

// Row renders the lead in LeadColumns order.
func (l Lead) Row() []string {
	return []string{
		l.BusinessName,
		l.Category,
		l.City,
		l.State,
		l.Country,
		strconv.FormatFloat(l.Rating, 'f', -1, 64),
		strconv.Itoa(l.ReviewsCount),
		l.Phone,
		l.Website(),
		strconv.FormatBool(l.HasWebsite),
		l.MapsURL,
		l.PlaceID,
		l.CreatedAt,
		l.SourceQuery,
		l.Status,
	}
}
