// Package catalog holds the place browse pipeline: the filter predicate, the
// sort comparator and the pagination window. Every function here is pure and
// leaves its inputs untouched, so the HTTP service, the server-side fallback
// and the API client share one implementation.
package catalog

import (
	"slices"
	"strings"

	"github.com/FACorreiaa/easytrip-api/internal/types"
)

// Criteria are the raw filter inputs of a place search. An empty field
// imposes no constraint; active fields compose with AND.
type Criteria struct {
	SearchTerm string   `json:"searchTerm,omitempty"`
	Location   string   `json:"location,omitempty"`
	District   string   `json:"district,omitempty"`
	State      string   `json:"state,omitempty"`
	Themes     []string `json:"themes,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	MinRating  float64  `json:"minRating,omitempty"`
	Season     string   `json:"season,omitempty"`
}

// Normalize trims and lower-cases every field, drops blank labels and
// clears an unknown season. Matching always works on normalized criteria.
func (c Criteria) Normalize() Criteria {
	out := Criteria{
		SearchTerm: strings.ToLower(strings.TrimSpace(c.SearchTerm)),
		Location:   strings.ToLower(strings.TrimSpace(c.Location)),
		District:   strings.ToLower(strings.TrimSpace(c.District)),
		State:      strings.ToLower(strings.TrimSpace(c.State)),
		Themes:     lowerLabels(c.Themes),
		Tags:       lowerLabels(c.Tags),
		MinRating:  c.MinRating,
		Season:     strings.ToLower(strings.TrimSpace(c.Season)),
	}
	if out.MinRating < 0 {
		out.MinRating = 0
	}
	if _, ok := SeasonMonths(out.Season); !ok {
		out.Season = ""
	}
	return out
}

// IsActive reports whether any field constrains the result.
func (c Criteria) IsActive() bool {
	n := c.Normalize()
	return n.SearchTerm != "" ||
		n.Location != "" ||
		n.District != "" ||
		n.State != "" ||
		len(n.Themes) > 0 ||
		len(n.Tags) > 0 ||
		n.MinRating > 0 ||
		n.Season != ""
}

// Equal compares two criteria after normalization.
func (c Criteria) Equal(o Criteria) bool {
	a, b := c.Normalize(), o.Normalize()
	return a.SearchTerm == b.SearchTerm &&
		a.Location == b.Location &&
		a.District == b.District &&
		a.State == b.State &&
		slices.Equal(a.Themes, b.Themes) &&
		slices.Equal(a.Tags, b.Tags) &&
		a.MinRating == b.MinRating &&
		a.Season == b.Season
}

// Matches evaluates the filter predicate for a single place.
func Matches(p types.Place, c Criteria) bool {
	return matches(p, c.Normalize())
}

// Filter returns the places that match c, in input order. The result never
// aliases the input.
func Filter(places []types.Place, c Criteria) []types.Place {
	n := c.Normalize()
	out := make([]types.Place, 0, len(places))
	for _, p := range places {
		if matches(p, n) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p types.Place, c Criteria) bool {
	if c.SearchTerm != "" &&
		!strings.Contains(strings.ToLower(p.Name), c.SearchTerm) &&
		!strings.Contains(strings.ToLower(p.Description), c.SearchTerm) {
		return false
	}
	if !equalFold(p.Location, c.Location) ||
		!equalFold(p.District, c.District) ||
		!equalFold(p.State, c.State) {
		return false
	}
	if len(c.Themes) > 0 && !intersects(p.Themes, c.Themes) {
		return false
	}
	if len(c.Tags) > 0 && !intersects(p.Tags, c.Tags) {
		return false
	}
	if c.MinRating > 0 && types.RatingValue(p.RatingSum, p.RatingCount) < c.MinRating {
		return false
	}
	if c.Season != "" && !inSeason(p, c.Season) {
		return false
	}
	return true
}

// equalFold treats an empty want as no constraint.
func equalFold(have, want string) bool {
	if want == "" {
		return true
	}
	return strings.ToLower(strings.TrimSpace(have)) == want
}

func intersects(have, want []string) bool {
	for _, h := range have {
		if slices.Contains(want, strings.ToLower(strings.TrimSpace(h))) {
			return true
		}
	}
	return false
}

func lowerLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || slices.Contains(out, l) {
			continue
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
