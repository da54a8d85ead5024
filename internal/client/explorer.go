// Package client is a Go client of the place browse API. It runs the same
// catalog pipeline as the server and falls back to it locally when the
// search endpoint is unavailable.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/FACorreiaa/easytrip-api/internal/catalog"
	"github.com/FACorreiaa/easytrip-api/internal/types"
)

// ErrUnavailable marks failures that trigger the local fallback: transport
// errors and 5xx responses.
var ErrUnavailable = errors.New("search service unavailable")

// StatusError is a non-2xx API response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

// Explorer browses places with "load more" pagination.
type Explorer struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.RWMutex
	lastAll []types.Place
	pager   catalog.Pager
}

func NewExplorer(baseURL string, timeout time.Duration, logger *slog.Logger) *Explorer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Explorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// ListPlaces fetches every place and keeps the result for the fallback.
func (e *Explorer) ListPlaces(ctx context.Context) ([]types.Place, error) {
	var places []types.Place
	if err := e.get(ctx, "/api/v1/places", nil, &places); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.lastAll = places
	e.mu.Unlock()
	return places, nil
}

// Search asks the server first. On ErrUnavailable it filters the last full
// listing locally; fromFallback reports which path answered.
func (e *Explorer) Search(ctx context.Context, c catalog.Criteria, key catalog.SortKey) (places []types.Place, fromFallback bool, err error) {
	var remote []types.Place
	err = e.get(ctx, "/api/v1/places/search", searchQuery(c, key), &remote)
	if err == nil {
		return catalog.Sort(remote, key), false, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, false, err
	}

	e.logger.WarnContext(ctx, "Search endpoint unavailable, filtering locally", slog.Any("error", err))
	all, lerr := e.snapshot(ctx)
	if lerr != nil {
		return nil, true, fmt.Errorf("search failed (%v) and no local listing: %w", err, lerr)
	}
	return catalog.Sort(catalog.Filter(all, c), key), true, nil
}

func (e *Explorer) snapshot(ctx context.Context) ([]types.Place, error) {
	e.mu.RLock()
	all := e.lastAll
	e.mu.RUnlock()
	if all != nil {
		return all, nil
	}
	return e.ListPlaces(ctx)
}

// Explore renders the current window for c and key. A change of either
// starts again from the first page.
func (e *Explorer) Explore(ctx context.Context, c catalog.Criteria, key catalog.SortKey, pageSize int) (catalog.Result, error) {
	ordered, _, err := e.Search(ctx, c, key)
	if err != nil {
		return catalog.Result{}, err
	}
	return catalog.Paginate(ordered, pageSize, e.pager.Current(c, key)), nil
}

// LoadMore grows the window by one page.
func (e *Explorer) LoadMore(ctx context.Context, c catalog.Criteria, key catalog.SortKey, pageSize int) (catalog.Result, error) {
	ordered, _, err := e.Search(ctx, c, key)
	if err != nil {
		return catalog.Result{}, err
	}
	return catalog.Paginate(ordered, pageSize, e.pager.LoadMore(c, key)), nil
}

func searchQuery(c catalog.Criteria, key catalog.SortKey) url.Values {
	q := url.Values{}
	set := func(name, value string) {
		if v := strings.TrimSpace(value); v != "" {
			q.Set(name, v)
		}
	}
	set("searchTerm", c.SearchTerm)
	set("location", c.Location)
	set("district", c.District)
	set("state", c.State)
	set("themes", strings.Join(c.Themes, ","))
	set("tags", strings.Join(c.Tags, ","))
	set("season", c.Season)
	if c.MinRating > 0 {
		q.Set("minRating", strconv.FormatFloat(c.MinRating, 'f', -1, 64))
	}
	set("sort", string(key))
	return q
}

func (e *Explorer) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := e.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", ErrUnavailable, readStatusError(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}
	if err = json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func readStatusError(resp *http.Response) *StatusError {
	var body struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	return &StatusError{Status: resp.StatusCode, Message: body.Error}
}
