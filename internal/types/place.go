package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ThemeVocabulary is the curated theme list offered by the UI. The API does
// not reject themes outside of it.
var ThemeVocabulary = []string{
	"adventure",
	"backwaters",
	"beach",
	"city",
	"desert",
	"heritage",
	"hill station",
	"nature",
	"spiritual",
	"wildlife",
}

// Place is a travel destination.
type Place struct {
	ID              int64        `json:"id" example:"42"`
	Name            string       `json:"name" example:"Varkala Cliff"`
	Description     string       `json:"description,omitempty"`
	Location        string       `json:"location" example:"Varkala"`
	District        string       `json:"district,omitempty" example:"Thiruvananthapuram"`
	State           string       `json:"state,omitempty" example:"Kerala"`
	Locality        string       `json:"locality,omitempty"`
	PinCode         string       `json:"pin_code,omitempty"`
	Latitude        *float64     `json:"latitude,omitempty"`
	Longitude       *float64     `json:"longitude,omitempty"`
	Themes          []string     `json:"themes"`
	Tags            []string     `json:"tags"`
	CustomKeys      CustomKeys   `json:"custom_keys"`
	PrimaryImageURL *string      `json:"primary_image_url"`
	Images          []PlaceImage `json:"images,omitempty"`
	RatingCount     int          `json:"rating_count"`
	RatingSum       int          `json:"rating_sum"`
	CreatedBy       string       `json:"created_by,omitempty"`
	UpdatedBy       string       `json:"updated_by,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// MarshalJSON adds the derived average rating and hides reserved custom keys.
func (p Place) MarshalJSON() ([]byte, error) {
	type place Place
	return json.Marshal(struct {
		place
		CustomKeys    CustomKeys `json:"custom_keys"`
		AverageRating *float64   `json:"average_rating"`
	}{
		place:         place(p),
		CustomKeys:    p.CustomKeys.Visible(),
		AverageRating: AverageRating(p.RatingSum, p.RatingCount),
	})
}

// PlaceImage is a secondary image of a place.
type PlaceImage struct {
	ID           int64     `json:"id"`
	PlaceID      int64     `json:"place_id"`
	ImageURL     string    `json:"image_url"`
	Caption      string    `json:"caption,omitempty"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreatePlaceParams holds the fields accepted when an admin creates a place.
type CreatePlaceParams struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	District    string     `json:"district"`
	State       string     `json:"state"`
	Locality    string     `json:"locality"`
	PinCode     string     `json:"pin_code"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	Themes      []string   `json:"themes"`
	Tags        []string   `json:"tags"`
	CustomKeys  CustomKeys `json:"custom_keys"`
	CreatedBy   string     `json:"-"`
}

// Normalize trims text fields and cleans the collections.
func (p *CreatePlaceParams) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Location = strings.TrimSpace(p.Location)
	p.District = strings.TrimSpace(p.District)
	p.State = strings.TrimSpace(p.State)
	p.Locality = strings.TrimSpace(p.Locality)
	p.PinCode = strings.TrimSpace(p.PinCode)
	p.Themes = CleanLabels(p.Themes)
	p.Tags = CleanLabels(p.Tags)
	p.CustomKeys = p.CustomKeys.Sanitize()
}

// Validate checks the mandatory fields. Call Normalize first.
func (p CreatePlaceParams) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if p.Location == "" {
		return fmt.Errorf("%w: location is required", ErrValidation)
	}
	return validateCoordinates(p.Latitude, p.Longitude)
}

// UpdatePlaceParams is a partial update: nil fields keep their stored value.
type UpdatePlaceParams struct {
	Name        *string     `json:"name,omitempty"`
	Description *string     `json:"description,omitempty"`
	Location    *string     `json:"location,omitempty"`
	District    *string     `json:"district,omitempty"`
	State       *string     `json:"state,omitempty"`
	Locality    *string     `json:"locality,omitempty"`
	PinCode     *string     `json:"pin_code,omitempty"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`
	Themes      *[]string   `json:"themes,omitempty"`
	Tags        *[]string   `json:"tags,omitempty"`
	CustomKeys  *CustomKeys `json:"custom_keys,omitempty"`
	UpdatedBy   string      `json:"-"`
}

// Empty reports whether no field was supplied.
func (p UpdatePlaceParams) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Location == nil &&
		p.District == nil && p.State == nil && p.Locality == nil && p.PinCode == nil &&
		p.Latitude == nil && p.Longitude == nil && p.Themes == nil && p.Tags == nil &&
		p.CustomKeys == nil
}

// Normalize trims the supplied fields.
func (p *UpdatePlaceParams) Normalize() {
	for _, s := range []*string{p.Name, p.Description, p.Location, p.District, p.State, p.Locality, p.PinCode} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
	if p.Themes != nil {
		cleaned := CleanLabels(*p.Themes)
		p.Themes = &cleaned
	}
	if p.Tags != nil {
		cleaned := CleanLabels(*p.Tags)
		p.Tags = &cleaned
	}
	if p.CustomKeys != nil {
		cleaned := p.CustomKeys.Sanitize()
		p.CustomKeys = &cleaned
	}
}

// Validate rejects updates that would blank a required field.
func (p UpdatePlaceParams) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return fmt.Errorf("%w: name must not be empty", ErrValidation)
	}
	if p.Location != nil && *p.Location == "" {
		return fmt.Errorf("%w: location must not be empty", ErrValidation)
	}
	return validateCoordinates(p.Latitude, p.Longitude)
}

func validateCoordinates(lat, lon *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrValidation)
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrValidation)
	}
	return nil
}

// CleanLabels trims labels, drops blanks and removes case-insensitive
// duplicates while keeping the first spelling.
func CleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
