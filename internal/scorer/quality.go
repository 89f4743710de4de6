// Package scorer implements the lead quality heuristic and score ranking.
package scorer

import (
	"math"
	"slices"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Score weights.
const (
	Baseline = 50.0

	highValuePerMatch = 5.0
	highValueCap      = 20.0
	lowValuePerMatch  = 10.0
	lowValueCap       = 20.0
	budgetCategory    = 15.0

	websitePresent = 10.0
	websiteAbsent  = 5.0
	phonePresent   = 5.0
)

// DefaultMinScore is the premium-lead threshold.
const DefaultMinScore = 60.0

// Components breaks a score into its signal contributions.
type Components struct {
	Baseline   float64             `json:"baseline"`
	HighValue  float64             `json:"high_value"`
	LowValue   float64             `json:"low_value"`
	HighBudget float64             `json:"high_budget"`
	LowBudget  float64             `json:"low_budget"`
	Rating     float64             `json:"rating"`
	Reviews    float64             `json:"reviews"`
	Website    float64             `json:"website"`
	Phone      float64             `json:"phone"`
	Total      float64             `json:"total"`
	Matched    map[string][]string `json:"matched,omitempty"`
}

// Score returns the quality of r on a 0-100 scale. Absent fields fall into
// their neutral branch.
func Score(r model.RawRecord) float64 {
	return Breakdown(r).Total
}

// Breakdown computes the score and reports every contribution.
func Breakdown(r model.RawRecord) Components {
	c := Components{Baseline: Baseline}
	matched := make(map[string][]string)

	text := []string{r.Title, r.Category}

	if hits := matchKeywords(HighValueKeywords, text...); len(hits) > 0 {
		matched["high_value"] = hits
		c.HighValue = math.Min(float64(len(hits))*highValuePerMatch, highValueCap)
	}
	if hits := matchKeywords(LowValueKeywords, text...); len(hits) > 0 {
		matched["low_value"] = hits
		c.LowValue = -math.Min(float64(len(hits))*lowValuePerMatch, lowValueCap)
	}
	if hits := matchKeywords(HighBudgetCategories, text...); len(hits) > 0 {
		matched["high_budget"] = hits
		c.HighBudget = budgetCategory
	}
	if hits := matchKeywords(LowBudgetCategories, text...); len(hits) > 0 {
		matched["low_budget"] = hits
		c.LowBudget = -budgetCategory
	}

	c.Rating = ratingBonus(r.RatingValue())
	c.Reviews = reviewBonus(r.ReviewsValue())

	if r.HasWebsite() {
		c.Website = websitePresent
	} else {
		c.Website = websiteAbsent
	}
	if r.HasPhone() {
		c.Phone = phonePresent
	}

	total := c.Baseline + c.HighValue + c.LowValue + c.HighBudget + c.LowBudget +
		c.Rating + c.Reviews + c.Website + c.Phone
	c.Total = math.Max(0, math.Min(100, total))

	if len(matched) > 0 {
		c.Matched = matched
	}
	return c
}

func ratingBonus(rating float64) float64 {
	switch {
	case rating >= 4.5:
		return 10
	case rating >= 4.0:
		return 5
	case rating > 0 && rating < 3.0:
		return -10
	default:
		return 0
	}
}

func reviewBonus(reviews int) float64 {
	switch {
	case reviews >= 500:
		return 15
	case reviews >= 200:
		return 10
	case reviews >= 100:
		return 5
	case reviews >= 50:
		return 2
	default:
		return 0
	}
}

// matchKeywords returns the keywords found in any of texts.
func matchKeywords(keywords []string, texts ...string) []string {
	var combined string
	for _, t := range texts {
		if t != "" {
			combined += " " + strings.ToLower(t)
		}
	}
	if combined == "" {
		return nil
	}

	var matched []string
	for _, kw := range keywords {
		if strings.Contains(combined, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// IsHighQuality scores r, stores the score on r and reports whether it
// reaches minScore.
func IsHighQuality(r *model.RawRecord, minScore float64) bool {
	s := Score(*r)
	r.QualityScore = &s
	return s >= minScore
}

// RankByScore returns a copy of records sorted by descending score. Records
// without a score are scored first. Ties keep their input order.
func RankByScore(records []model.RawRecord) []model.RawRecord {
	out := slices.Clone(records)
	for i := range out {
		if out[i].QualityScore == nil {
			s := Score(out[i])
			out[i].QualityScore = &s
		}
	}
	slices.SortStableFunc(out, func(a, b model.RawRecord) int {
		return compareDesc(*a.QualityScore, *b.QualityScore)
	})
	return out
}

// RankLeads returns a copy of leads sorted by descending quality score.
// Unscored leads sort as zero. Ties keep their input order.
func RankLeads(leads []model.Lead) []model.Lead {
	out := slices.Clone(leads)
	slices.SortStableFunc(out, func(a, b model.Lead) int {
		return compareDesc(a.Score(), b.Score())
	})
	return out
}

func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
