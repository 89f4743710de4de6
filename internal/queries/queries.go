// Package queries builds the "<category> in <city>" search queries a run
// issues.
package queries

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Vocabulary is the set of cities and categories queries are built from.
type Vocabulary struct {
	Cities     []string `yaml:"cities"`
	Categories []string `yaml:"categories"`
}

// Generate returns one query per (city, category) pair, cities outer.
// Blank entries are skipped and repeated queries are dropped, keeping the
// first occurrence.
func Generate(categories, cities []string) []string {
	seen := make(map[string]struct{}, len(categories)*len(cities))
	out := make([]string, 0, len(categories)*len(cities))
	for _, city := range cities {
		city = strings.TrimSpace(city)
		if city == "" {
			continue
		}
		for _, cat := range categories {
			cat = strings.TrimSpace(cat)
			if cat == "" {
				continue
			}
			q := cat + " in " + city
			if _, dup := seen[q]; dup {
				continue
			}
			seen[q] = struct{}{}
			out = append(out, q)
		}
	}
	return out
}

// FilterCities keeps the cities whose name mentions one of the target
// countries, case-insensitively. An empty country list keeps everything.
func FilterCities(cities, countries []string) []string {
	var targets []string
	for _, c := range countries {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return cities
	}

	var out []string
	for _, city := range cities {
		lc := strings.ToLower(city)
		for _, t := range targets {
			if strings.Contains(lc, t) {
				out = append(out, city)
				break
			}
		}
	}
	return out
}

// Limit truncates qs to at most n queries. n <= 0 means no limit.
func Limit(qs []string, n int) []string {
	if n <= 0 || len(qs) <= n {
		return qs
	}
	return qs[:n]
}

// LoadVocabulary reads a YAML file with "cities" and "categories" lists.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, eris.Wrapf(err, "queries: read vocabulary %s", path)
	}
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, eris.Wrapf(err, "queries: parse vocabulary %s", path)
	}
	return v, nil
}

// Resolve picks the vocabulary for a run: explicit lists win, then the
// vocabulary file, then the built-in defaults.
func Resolve(cities, categories []string, path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if path != "" {
		fv, err := LoadVocabulary(path)
		if err != nil {
			return Vocabulary{}, err
		}
		if len(fv.Cities) > 0 {
			v.Cities = fv.Cities
		}
		if len(fv.Categories) > 0 {
			v.Categories = fv.Categories
		}
	}
	if len(cities) > 0 {
		v.Cities = cities
	}
	if len(categories) > 0 {
		v.Categories = categories
	}
	return v, nil
}

// DefaultVocabulary returns the built-in cities and categories.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Cities: []string{
			"New York, USA", "Los Angeles, USA", "Chicago, USA", "Houston, USA", "Miami, USA",
			"London, UK", "Manchester, UK", "Birmingham, UK", "Edinburgh, UK",
			"Dubai, UAE", "Abu Dhabi, UAE", "Sharjah, UAE",
			"Toronto, Canada", "Vancouver, Canada", "Montreal, Canada",
			"Sydney, Australia", "Melbourne, Australia", "Brisbane, Australia",
			"Mumbai, India", "Delhi, India", "Bangalore, India",
			"Singapore",
			"Berlin, Germany", "Munich, Germany", "Frankfurt, Germany",
			"Paris, France", "Lyon, France",
			"Amsterdam, Netherlands", "Rotterdam, Netherlands",
			"Riyadh, Saudi Arabia", "Jeddah, Saudi Arabia",
		},
		Categories: []string{
			"dental clinic", "law firm", "accounting firm", "real estate agency",
			"software company", "consulting firm", "medical clinic", "cosmetic surgery",
			"investment firm", "architecture firm",
			"restaurant", "hotel", "cafe", "gym", "spa",
			"marketing agency", "photography studio", "event planning", "interior design",
		},
	}
}
