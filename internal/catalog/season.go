package catalog

import (
	"strings"

	"github.com/FACorreiaa/easytrip-api/internal/types"
)

// Seasons of the Indian travel calendar.
const (
	SeasonSpring  = "spring"
	SeasonSummer  = "summer"
	SeasonMonsoon = "monsoon"
	SeasonWinter  = "winter"
)

var seasonMonths = map[string][]string{
	SeasonSpring:  {"february", "march"},
	SeasonSummer:  {"april", "may", "june"},
	SeasonMonsoon: {"july", "august", "september"},
	SeasonWinter:  {"october", "november", "december", "january"},
}

// Seasons lists the known season names in calendar order.
func Seasons() []string {
	return []string{SeasonSpring, SeasonSummer, SeasonMonsoon, SeasonWinter}
}

// SeasonMonths returns the lower-case month names of a season.
func SeasonMonths(season string) ([]string, bool) {
	months, ok := seasonMonths[strings.ToLower(strings.TrimSpace(season))]
	if !ok {
		return nil, false
	}
	return append([]string(nil), months...), true
}

// inSeason checks the free-text "Best Time to Visit" value. Places without
// the key match every season.
func inSeason(p types.Place, season string) bool {
	value, ok := p.CustomKeys.Get(types.BestTimeToVisitKey)
	if !ok {
		return true
	}
	value = strings.ToLower(value)
	for _, month := range seasonMonths[season] {
		if strings.Contains(value, month) {
			return true
		}
	}
	return false
}
