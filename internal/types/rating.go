package types

// AverageRating derives the displayed rating from the cumulative counters.
// It returns nil when nothing has been rated yet. The value is rounded half
// up to one decimal using integer arithmetic so it agrees with Postgres
// ROUND(rating_sum::numeric / rating_count, 1).
func AverageRating(ratingSum, ratingCount int) *float64 {
	if ratingCount <= 0 {
		return nil
	}
	tenths := (20*ratingSum + ratingCount) / (2 * ratingCount)
	avg := float64(tenths) / 10
	return &avg
}

// RatingValue is AverageRating with "no rating" collapsed to 0, the value
// used for ordering and minimum-rating checks.
func RatingValue(ratingSum, ratingCount int) float64 {
	if avg := AverageRating(ratingSum, ratingCount); avg != nil {
		return *avg
	}
	return 0
}
