package qualify

import (
	"net/url"
	"strings"
	"time"

	"github.com/sells-group/leadgen-cli/internal/model"
)

const mapsPlaceURL = "https://www.google.com/maps/place/?q=place_id:"

// Transform maps a raw record and the query that produced it onto a Lead,
// stamped with the current time.
func Transform(r model.RawRecord, sourceQuery string) model.Lead {
	return TransformAt(r, sourceQuery, time.Now())
}

// TransformAt is Transform with an explicit timestamp. It never fails:
// fields it cannot derive are left empty.
func TransformAt(r model.RawRecord, sourceQuery string, now time.Time) model.Lead {
	loc := ParseAddress(r.Address)
	if loc.City == "" {
		qloc := locationFromQuery(sourceQuery)
		loc.City = qloc.City
		if loc.Country == "" {
			loc.Country = qloc.Country
		}
	}

	lead := model.Lead{
		BusinessName: strings.TrimSpace(r.Title),
		Category:     strings.TrimSpace(r.Category),
		City:         loc.City,
		State:        loc.State,
		Country:      loc.Country,
		Rating:       r.RatingValue(),
		ReviewsCount: r.ReviewsValue(),
		Phone:        r.PhoneValue(),
		HasWebsite:   r.HasWebsite(),
		MapsURL:      mapsURL(r),
		PlaceID:      r.PlaceID,
		CreatedAt:    now.UTC().Truncate(time.Second).Format(time.RFC3339),
		SourceQuery:  sourceQuery,
		Status:       model.StatusNotContacted,
		QualityScore: r.QualityScore,
	}
	if lead.HasWebsite {
		w := r.WebsiteValue()
		lead.WebsiteURL = &w
	}
	return lead
}

func mapsURL(r model.RawRecord) string {
	if u := strings.TrimSpace(r.MapsURL); u != "" {
		return u
	}
	if r.PlaceID == "" {
		return ""
	}
	return mapsPlaceURL + url.QueryEscape(r.PlaceID)
}

// Location is the best-effort split of a free-text address.
type Location struct {
	City    string
	State   string
	Country string
}

// ParseAddress splits an address like "123 Main St, Springfield, IL 62701, USA"
// into city, state and country. With three or more comma segments the last
// one is the country. A "ST 12345" style segment supplies the state and the
// segment before it the city. Without one, four or more segments read as
// "street, city, state, country" unless the would-be city carries a digit,
// in which case it is still street detail and the segment before the
// country is the city. Two segments are read as "city, country".
func ParseAddress(addr string) Location {
	parts := splitAddress(addr)

	switch len(parts) {
	case 0, 1:
		return Location{}
	case 2:
		if state, _ := parseStateZip(parts[1]); state != "" {
			return Location{City: parts[0], State: state}
		}
		return Location{City: parts[0], Country: parts[1]}
	}

	loc := Location{Country: parts[len(parts)-1]}
	rest := parts[:len(parts)-1]

	for i := len(rest) - 1; i > 0; i-- {
		if state, _ := parseStateZip(rest[i]); state != "" {
			loc.State = state
			loc.City = rest[i-1]
			return loc
		}
	}

	if n := len(rest); n >= 3 && !hasDigit(rest[n-2]) {
		loc.City = rest[n-2]
		loc.State = rest[n-1]
		return loc
	}

	loc.City = rest[len(rest)-1]
	return loc
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// locationFromQuery reads the location out of a "<category> in <city>"
// query.
func locationFromQuery(q string) Location {
	idx := strings.LastIndex(strings.ToLower(q), " in ")
	if idx < 0 {
		return Location{}
	}
	parts := splitAddress(q[idx+len(" in "):])
	switch len(parts) {
	case 0:
		return Location{}
	case 1:
		return Location{City: parts[0]}
	default:
		return Location{City: parts[0], Country: parts[len(parts)-1]}
	}
}

func splitAddress(addr string) []string {
	var parts []string
	for _, p := range strings.Split(addr, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// parseStateZip recognizes "IL 62701" or "NSW 2000": a two or three letter
// uppercase region code followed by a postal code.
func parseStateZip(s string) (state, zip string) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return "", ""
	}
	code := fields[0]
	if len(code) < 2 || len(code) > 3 {
		return "", ""
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", ""
		}
	}
	if !isPostalCode(fields[1]) {
		return "", ""
	}
	return code, fields[1]
}

func isPostalCode(s string) bool {
	if len(s) < 4 || len(s) > 10 {
		return false
	}
	for _, c := range s {
		if c != '-' && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
