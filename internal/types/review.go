package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// PlaceReview is one user's rating of a place. UserName is captured at
// submission time and is not kept in sync with later profile changes.
type PlaceReview struct {
	ID        uuid.UUID `json:"id"`
	PlaceID   int64     `json:"place_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating" example:"5"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateReviewParams is the body of a review submission.
type CreateReviewParams struct {
	Rating  int    `json:"rating" example:"4"`
	Comment string `json:"comment,omitempty" example:"Great sunsets"`
}

func (p *CreateReviewParams) Validate() error {
	p.Comment = strings.TrimSpace(p.Comment)
	if p.Rating < MinReviewRating || p.Rating > MaxReviewRating {
		return fmt.Errorf("%w: rating must be an integer between %d and %d", ErrValidation, MinReviewRating, MaxReviewRating)
	}
	return nil
}

// RatingAggregate is the place counter state after a review was recorded.
type RatingAggregate struct {
	PlaceID     int64 `json:"place_id"`
	RatingCount int   `json:"rating_count"`
	RatingSum   int   `json:"rating_sum"`
}

// ReviewSubmission is returned after a review is stored.
type ReviewSubmission struct {
	Review        PlaceReview     `json:"review"`
	Aggregate     RatingAggregate `json:"aggregate"`
	AverageRating *float64        `json:"average_rating"`
}
