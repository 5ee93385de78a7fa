// Package serp seeds lands from search-engine result pages. The client
// speaks the SerpAPI JSON shape; Bing and DuckDuckGo run behind
// SerpAPI-compatible endpoints selected through the provider engine.
package serp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/markusmobius/go-dateparser"

	"github.com/landseer/landseer/internal/config"
	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/store"
)

const defaultBaseURL = "https://serpapi.com"

// resultsPerPage matches the provider default page size.
const resultsPerPage = 10

// Result is one organic search hit. Only link, title and date are
// consumed; position is kept for logging.
type Result struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Date     string `json:"date"`
}

type searchResponse struct {
	OrganicResults []Result `json:"organic_results"`
}

// Client queries a search provider.
type Client struct {
	baseURL string
	apiKey  string
	engine  string
	http    *http.Client
}

// NewClient builds a search client from configuration.
func NewClient(cfg config.SerpConfig, timeout time.Duration) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("search provider API key required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	engine := "google"
	switch cfg.Provider {
	case "bing":
		engine = "bing"
	case "duckduckgo":
		engine = "duckduckgo"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		engine:  engine,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Search runs the query over the requested number of result pages and
// returns the accumulated organic hits. A failing page logs and stops
// pagination, keeping what was already fetched.
func (c *Client) Search(ctx context.Context, query string, pages int) ([]Result, error) {
	if pages < 1 {
		pages = 1
	}

	var results []Result
	for page := 0; page < pages; page++ {
		hits, err := c.searchPage(ctx, query, page*resultsPerPage)
		if err != nil {
			if len(results) > 0 {
				logger.Warn("search pagination stopped", "page", page, "error", err)
				break
			}
			return nil, err
		}
		if len(hits) == 0 {
			break
		}
		results = append(results, hits...)
	}
	return results, nil
}

func (c *Client) searchPage(ctx context.Context, query string, start int) ([]Result, error) {
	q := url.Values{}
	q.Set("engine", c.engine)
	q.Set("q", query)
	q.Set("api_key", c.apiKey)
	q.Set("output", "json")
	if start > 0 {
		q.Set("start", strconv.Itoa(start))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("search read: %w", err)
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("search decode: %w", err)
	}
	return decoded.OrganicResults, nil
}

// ParseResultDate reads the date formats search providers emit:
// absolute dates in many notations plus relative English phrases like
// "2 days ago". Returns nil when nothing parses.
func ParseResultDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		t = t.UTC()
		return &t
	}
	date, err := dateparser.Parse(nil, s)
	if err != nil || date.Time.IsZero() {
		return nil
	}
	t := date.Time.UTC()
	return &t
}

// Ingest inserts the search hits as depth-0 expressions of the land,
// carrying over the result title and parsed date for new rows. Returns
// the number of newly created expressions.
func Ingest(ctx context.Context, s *store.Store, landID int64, results []Result) (int, error) {
	created := 0
	for _, r := range results {
		if r.Link == "" {
			continue
		}
		expr, err := s.EnsureExpression(ctx, landID, r.Link, 0)
		if err != nil {
			return created, err
		}
		if expr == nil {
			continue
		}
		// Only virgin rows take the SERP metadata; fetched pages know
		// their own title and date better.
		if expr.FetchedAt != nil || expr.Title != nil {
			continue
		}
		changed := false
		if r.Title != "" {
			title := r.Title
			expr.Title = &title
			changed = true
		}
		if published := ParseResultDate(r.Date); published != nil {
			expr.PublishedAt = published
			changed = true
		}
		if changed {
			if err := s.SaveExpression(ctx, expr); err != nil {
				return created, err
			}
		}
		created++
	}
	return created, nil
}
