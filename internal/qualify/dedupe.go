package qualify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/registry"
)

// Deduplicator rejects records whose place ID was delivered by an earlier
// run or already accepted in this one.
type Deduplicator struct {
	seen     registry.Set
	accepted registry.Set
}

// NewDeduplicator starts a run against the historical seen set. A nil set
// is treated as empty.
func NewDeduplicator(seen registry.Set) *Deduplicator {
	if seen == nil {
		seen = registry.NewSet()
	}
	return &Deduplicator{seen: seen, accepted: registry.NewSet()}
}

// Check accepts r and reserves its ID, or reports false for a duplicate.
// Records without a place ID always pass.
func (d *Deduplicator) Check(r model.RawRecord) bool {
	id := r.PlaceID
	if id == "" {
		return true
	}
	if d.seen.Has(id) || d.accepted.Has(id) {
		return false
	}
	d.accepted.Add(id)
	return true
}

// Duplicate reports whether Check would reject r, without reserving its ID.
func (d *Deduplicator) Duplicate(r model.RawRecord) bool {
	return r.PlaceID != "" && (d.seen.Has(r.PlaceID) || d.accepted.Has(r.PlaceID))
}

// Accepted returns the IDs reserved during this run.
func (d *Deduplicator) Accepted() registry.Set {
	return d.accepted.Union(nil)
}

// Key is the identity used for in-batch de-duplication: the place ID, or a
// normalized "name|address" when the provider gave none. Returns "" when
// neither is available.
func Key(r model.RawRecord) string {
	if r.PlaceID != "" {
		return r.PlaceID
	}
	name := normalizeKeyPart(r.Title)
	addr := normalizeKeyPart(r.Address)
	if name == "" && addr == "" {
		return ""
	}
	return name + "|" + addr
}

// DedupeByKey keeps the first record for each Key, preserving order.
// Records with an empty key are kept.
func DedupeByKey(records []model.RawRecord) []model.RawRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.RawRecord, 0, len(records))
	for _, r := range records {
		k := Key(r)
		if k != "" {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// normalizeKeyPart lowercases, strips accents and punctuation, and collapses
// whitespace.
func normalizeKeyPart(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
