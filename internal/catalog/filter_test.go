package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/easytrip-api/internal/types"
)

func samplePlaces() []types.Place {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return []types.Place{
		{
			ID: 1, Name: "Varkala Cliff", Description: "Red laterite cliffs above the Arabian Sea",
			Location: "Varkala", District: "Thiruvananthapuram", State: "Kerala",
			Themes: []string{"beach", "spiritual"}, Tags: []string{"beach", "family"},
			CustomKeys: types.CustomKeys{{Key: types.BestTimeToVisitKey, Value: "October to March"}},
			RatingSum:  18, RatingCount: 4, CreatedAt: base,
		},
		{
			ID: 2, Name: "Munnar", Description: "Tea gardens and misty hills",
			Location: "Munnar", District: "Idukki", State: "Kerala",
			Themes: []string{"hill station", "nature"}, Tags: []string{"mountain"},
			CustomKeys: types.CustomKeys{{Key: types.BestTimeToVisitKey, Value: "September to May"}},
			RatingSum:  6, RatingCount: 3, CreatedAt: base.AddDate(1, 0, 0),
		},
		{
			ID: 3, Name: "Hampi", Description: "Ruins of the Vijayanagara empire",
			Location: "Hampi", District: "Vijayanagara", State: "Karnataka",
			Themes: []string{"heritage"}, Tags: []string{},
			CreatedAt: base.AddDate(-1, 0, 0),
		},
	}
}

func ids(places []types.Place) []int64 {
	out := make([]int64, 0, len(places))
	for _, p := range places {
		out = append(out, p.ID)
	}
	return out
}

func TestMatches(t *testing.T) {
	places := samplePlaces()

	t.Run("empty criteria match every place", func(t *testing.T) {
		for _, p := range places {
			assert.True(t, Matches(p, Criteria{}), "place %d", p.ID)
		}
		assert.True(t, Matches(types.Place{}, Criteria{SearchTerm: "   ", Tags: []string{" "}}))
	})

	t.Run("min rating", func(t *testing.T) {
		got := Filter(places, Criteria{MinRating: 4})
		assert.Equal(t, []int64{1}, ids(got))
	})

	t.Run("unrated place fails any positive min rating", func(t *testing.T) {
		assert.False(t, Matches(places[2], Criteria{MinRating: 0.1}))
		assert.True(t, Matches(places[2], Criteria{MinRating: 0}))
	})

	t.Run("tags intersect case-insensitively", func(t *testing.T) {
		assert.Equal(t, []int64{1}, ids(Filter(places, Criteria{Tags: []string{"beach"}})))
		assert.Equal(t, []int64{1, 2}, ids(Filter(places, Criteria{Tags: []string{"BEACH", "Mountain"}})))
	})

	t.Run("themes and tags compose with AND", func(t *testing.T) {
		got := Filter(places, Criteria{Themes: []string{"nature"}, Tags: []string{"beach"}})
		assert.Empty(t, got)
	})

	t.Run("search term hits name or description", func(t *testing.T) {
		assert.Equal(t, []int64{2}, ids(Filter(places, Criteria{SearchTerm: "  TEA "})))
		assert.Equal(t, []int64{3}, ids(Filter(places, Criteria{SearchTerm: "hampi"})))
	})

	t.Run("location facets are exact", func(t *testing.T) {
		assert.Equal(t, []int64{1, 2}, ids(Filter(places, Criteria{State: " kerala "})))
		assert.Empty(t, Filter(places, Criteria{State: "Ker"}))
		assert.Equal(t, []int64{2}, ids(Filter(places, Criteria{State: "Kerala", District: "idukki"})))
	})

	t.Run("season reads best time to visit", func(t *testing.T) {
		assert.Equal(t, []int64{1, 3}, ids(Filter(places, Criteria{Season: "Winter"})))
		assert.Equal(t, []int64{2, 3}, ids(Filter(places, Criteria{Season: "monsoon"})))
	})

	t.Run("unknown season imposes nothing", func(t *testing.T) {
		assert.Len(t, Filter(places, Criteria{Season: "autumn"}), len(places))
		assert.False(t, Criteria{Season: "autumn"}.IsActive())
	})
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	places := samplePlaces()
	before := ids(places)

	got := Filter(places, Criteria{State: "kerala"})
	require.Len(t, got, 2)
	got[0].Name = "changed"

	assert.Equal(t, before, ids(places))
	assert.Equal(t, "Varkala Cliff", places[0].Name)
}

func TestCriteriaEqual(t *testing.T) {
	a := Criteria{SearchTerm: " Beach", Tags: []string{"Family", "", "family"}}
	b := Criteria{SearchTerm: "beach", Tags: []string{"family"}}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(Criteria{SearchTerm: "beach"}))
}

func TestSeasonMonths(t *testing.T) {
	months, ok := SeasonMonths("SUMMER")
	require.True(t, ok)
	assert.Equal(t, []string{"april", "may", "june"}, months)

	months[0] = "changed"
	again, _ := SeasonMonths(SeasonSummer)
	assert.Equal(t, "april", again[0])

	_, ok = SeasonMonths("")
	assert.False(t, ok)
}
