// Package registry persists the set of place IDs already delivered by
// earlier runs so that a business is never emitted twice.
package registry

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
)

// Storage errors. Wrapped errors returned by a Registry match these with
// errors.Is.
var (
	ErrStorageRead  = eris.New("registry: storage read failed")
	ErrStorageWrite = eris.New("registry: storage write failed")
)

// Registry loads and extends the seen place-ID set. Save is additive:
// IDs already stored stay stored.
type Registry interface {
	Load(ctx context.Context) (Set, error)
	Save(ctx context.Context, ids Set) error
}

// Set is an unordered collection of place IDs.
type Set map[string]struct{}

// NewSet builds a Set from ids, skipping empty strings.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id unless it is empty.
func (s Set) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of IDs.
func (s Set) Len() int { return len(s) }

// Union returns a new set with the members of s and other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Difference returns the members of s not present in other.
func (s Set) Difference(other Set) Set {
	out := make(Set)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the IDs in lexical order.
func (s Set) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
