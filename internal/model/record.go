// Package model defines the records that flow through the lead pipeline.
package model

import (
	"strings"
)

// RawRecord is a single business returned by a search provider.
// Optional fields are pointers so that "absent" and "zero" stay distinct.
type RawRecord struct {
	Title    string   `json:"title"`
	Category string   `json:"type,omitempty"`
	Rating   *float64 `json:"rating,omitempty"`
	Reviews  *int     `json:"reviews,omitempty"`
	Address  string   `json:"address,omitempty"`
	Phone    *string  `json:"phone,omitempty"`
	Website  *string  `json:"website,omitempty"`
	PlaceID  string   `json:"place_id,omitempty"`
	MapsURL  string   `json:"maps_url,omitempty"`

	// QualityScore is attached by the scorer; nil until scored.
	QualityScore *float64 `json:"quality_score,omitempty"`
}

// RatingValue returns the rating, or 0 when absent.
func (r RawRecord) RatingValue() float64 {
	if r.Rating == nil {
		return 0
	}
	return *r.Rating
}

// ReviewsValue returns the review count, or 0 when absent.
func (r RawRecord) ReviewsValue() int {
	if r.Reviews == nil {
		return 0
	}
	return *r.Reviews
}

// WebsiteValue returns the trimmed website, or "" when absent.
func (r RawRecord) WebsiteValue() string {
	if r.Website == nil {
		return ""
	}
	return strings.TrimSpace(*r.Website)
}

// PhoneValue returns the trimmed phone number, or "" when absent.
func (r RawRecord) PhoneValue() string {
	if r.Phone == nil {
		return ""
	}
	return strings.TrimSpace(*r.Phone)
}

// HasWebsite reports whether a non-empty website is present.
func (r RawRecord) HasWebsite() bool {
	return r.WebsiteValue() != ""
}

// HasPhone reports whether a non-empty phone number is present.
func (r RawRecord) HasPhone() bool {
	return r.PhoneValue() != ""
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
