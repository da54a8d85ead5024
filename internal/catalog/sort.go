package catalog

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/FACorreiaa/easytrip-api/internal/types"
)

// SortKey selects the comparator.
type SortKey string

const (
	SortNewest  SortKey = "newest"
	SortRating  SortKey = "rating"
	SortName    SortKey = "name"
	SortPopular SortKey = "popular"
)

// ParseSortKey maps user input to a key. Unknown or empty input is newest.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNewest, SortRating, SortName, SortPopular:
		return k
	default:
		return SortNewest
	}
}

// collate.Collator keeps scratch buffers and is not safe for concurrent use.
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.Und, collate.IgnoreCase)
	},
}

// Compare orders a before b (-1), after b (1) or reports a tie (0). Every
// key falls back to ascending id, so the order is total.
func Compare(a, b types.Place, key SortKey) int {
	col := collators.Get().(*collate.Collator)
	defer collators.Put(col)
	return compareWith(col, a, b, ParseSortKey(string(key)))
}

// Sort returns a sorted copy of places.
func Sort(places []types.Place, key SortKey) []types.Place {
	out := slices.Clone(places)
	key = ParseSortKey(string(key))

	col := collators.Get().(*collate.Collator)
	defer collators.Put(col)

	slices.SortStableFunc(out, func(a, b types.Place) int {
		return compareWith(col, a, b, key)
	})
	return out
}

func compareWith(col *collate.Collator, a, b types.Place, key SortKey) int {
	var c int
	switch key {
	case SortRating:
		c = cmp.Compare(
			types.RatingValue(b.RatingSum, b.RatingCount),
			types.RatingValue(a.RatingSum, a.RatingCount),
		)
		if c == 0 {
			c = cmp.Compare(b.RatingCount, a.RatingCount)
		}
	case SortName:
		c = col.CompareString(a.Name, b.Name)
	case SortPopular:
		// No view counter is recorded, every place ranks equal.
		c = 0
	default:
		c = b.CreatedAt.Compare(a.CreatedAt)
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
