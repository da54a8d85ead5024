package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/FACorreiaa/easytrip-api/internal/catalog"
	"github.com/FACorreiaa/easytrip-api/internal/client"
)

type ExploreCmd struct {
	BaseURL   string   `help:"API base URL, defaults to client.baseURL"`
	Search    string   `help:"Search term" short:"q"`
	Location  string   `help:"Exact location"`
	District  string   `help:"Exact district"`
	State     string   `help:"Exact state"`
	Themes    []string `help:"Themes, any match"`
	Tags      []string `help:"Tags, any match"`
	MinRating float64  `help:"Minimum average rating"`
	Season    string   `help:"spring, summer, monsoon or winter"`
	Sort      string   `default:"newest" enum:"newest,rating,name,popular" help:"Sort key"`
	PageSize  int      `default:"12" help:"Places per page"`
	Pages     int      `default:"1" help:"Number of pages to load"`
}

func (e *ExploreCmd) Run(c *Context) error {
	baseURL := e.BaseURL
	if baseURL == "" {
		baseURL = c.Config.Client.BaseURL
	}
	explorer := client.NewExplorer(baseURL, c.Config.Client.Timeout, c.Logger)

	criteria := catalog.Criteria{
		SearchTerm: e.Search,
		Location:   e.Location,
		District:   e.District,
		State:      e.State,
		Themes:     e.Themes,
		Tags:       e.Tags,
		MinRating:  e.MinRating,
		Season:     strings.ToLower(e.Season),
	}
	key := catalog.ParseSortKey(e.Sort)

	ctx := context.Background()
	// Prime the local listing so a failing search can still be answered.
	if _, err := explorer.ListPlaces(ctx); err != nil {
		c.Logger.WarnContext(ctx, "Could not fetch the full listing", slog.Any("error", err))
	}

	res, err := explorer.Explore(ctx, criteria, key, e.PageSize)
	for i := 1; err == nil && i < e.Pages && res.HasMore; i++ {
		res, err = explorer.LoadMore(ctx, criteria, key, e.PageSize)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
