package place

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/FACorreiaa/easytrip-api/internal/catalog"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

const imageField = "image"

// criteriaFromQuery reads the search inputs of a request. Label lists accept
// both repeated parameters and comma separated values.
func criteriaFromQuery(r *http.Request) (catalog.Criteria, catalog.SortKey, error) {
	q := r.URL.Query()
	c := catalog.Criteria{
		SearchTerm: q.Get("searchTerm"),
		Location:   q.Get("location"),
		District:   q.Get("district"),
		State:      q.Get("state"),
		Themes:     splitList(q["themes"]),
		Tags:       splitList(q["tags"]),
		Season:     q.Get("season"),
	}
	if raw := strings.TrimSpace(q.Get("minRating")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return catalog.Criteria{}, "", fmt.Errorf("%w: minRating must be a number", types.ErrValidation)
		}
		c.MinRating = v
	}
	return c, catalog.ParseSortKey(q.Get("sort")), nil
}

// pageFromQuery returns pageSize and page, leaving defaults to the windower.
func pageFromQuery(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	size, err := optionalInt(q.Get("pageSize"), "pageSize")
	if err != nil {
		return 0, 0, err
	}
	page, err := optionalInt(q.Get("page"), "page")
	if err != nil {
		return 0, 0, err
	}
	return size, page, nil
}

func optionalInt(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", types.ErrValidation, name)
	}
	return v, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// createParamsFromForm reads a multipart place creation form.
func createParamsFromForm(form *multipart.Form) (types.CreatePlaceParams, error) {
	get := func(name string) string {
		if v := form.Value[name]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	p := types.CreatePlaceParams{
		Name:        get("name"),
		Description: get("description"),
		Location:    get("location"),
		District:    get("district"),
		State:       get("state"),
		Locality:    get("locality"),
		PinCode:     get("pin_code"),
		Themes:      splitList(form.Value["themes"]),
		Tags:        splitList(form.Value["tags"]),
	}

	var err error
	if p.Latitude, err = optionalFloat(get("latitude"), "latitude"); err != nil {
		return p, err
	}
	if p.Longitude, err = optionalFloat(get("longitude"), "longitude"); err != nil {
		return p, err
	}
	if raw := strings.TrimSpace(get("custom_keys")); raw != "" {
		if err = json.Unmarshal([]byte(raw), &p.CustomKeys); err != nil {
			return p, fmt.Errorf("%w: custom_keys must be a JSON object of strings", types.ErrValidation)
		}
	}
	return p, nil
}

func optionalFloat(raw, name string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", types.ErrValidation, name)
	}
	return &v, nil
}

// parseMultipart bounds the body and parses the form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body must not be larger than %d bytes", types.ErrValidation, maxBytes)
		}
		return fmt.Errorf("%w: invalid multipart form", types.ErrValidation)
	}
	return nil
}

// imageFromForm opens the image part. ok is false when none was sent.
func imageFromForm(form *multipart.Form) (multipart.File, ImageUpload, bool, error) {
	headers := form.File[imageField]
	if len(headers) == 0 {
		return nil, ImageUpload{}, false, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, ImageUpload{}, false, fmt.Errorf("opening uploaded image: %w", err)
	}
	caption := ""
	if v := form.Value["caption"]; len(v) > 0 {
		caption = strings.TrimSpace(v[0])
	}
	return f, ImageUpload{File: f, Filename: fh.Filename, Caption: caption}, true, nil
}
