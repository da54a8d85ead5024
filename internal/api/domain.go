package api

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success   bool   `json:"success" example:"false"`
	Error     string `json:"error" example:"place not found"`
	RequestID string `json:"request_id,omitempty" example:"host/abc123-000001"`
}

// ThemesResponse lists the curated theme vocabulary and the known seasons.
type ThemesResponse struct {
	Themes  []string `json:"themes"`
	Seasons []string `json:"seasons"`
}
