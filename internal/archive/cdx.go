// Package archive queries the Wayback Machine CDX index to recover
// snapshots of pages that fail to fetch live.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/landseer/landseer/internal/logger"
)

// DefaultBaseURL is the public Wayback Machine endpoint.
const DefaultBaseURL = "https://web.archive.org"

// ErrNoSnapshot is returned when the CDX index has no capture for a URL.
var ErrNoSnapshot = errors.New("no archive snapshot")

// Snapshot is a single CDX capture.
type Snapshot struct {
	Timestamp string // YYYYMMDDhhmmss
	Original  string // originally captured URL
	baseURL   string
}

// URL returns the replayable snapshot URL.
func (s Snapshot) URL() string {
	base := s.baseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return fmt.Sprintf("%s/web/%s/%s", base, s.Timestamp, s.Original)
}

// Time parses the capture timestamp.
func (s Snapshot) Time() (time.Time, error) {
	return time.Parse("20060102150405", s.Timestamp)
}

// Order selects which capture a lookup returns.
type Order string

const (
	// Earliest asks for the oldest capture, used by the readable
	// reprocessor which prefers the page as first published.
	Earliest Order = "earliest"
	// Latest asks for the newest capture, used by crawl-time fallback.
	Latest Order = "latest"
)

// Client queries a CDX index.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an archive client. An empty baseURL selects the public
// Wayback Machine.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// Lookup finds a capture of target in the index. Returns ErrNoSnapshot
// when the index replies with an empty result set.
func (c *Client) Lookup(ctx context.Context, target string, order Order) (*Snapshot, error) {
	q := url.Values{}
	q.Set("url", target)
	q.Set("output", "json")
	q.Set("limit", "1")
	if order == Latest {
		// Negative limit returns captures from the tail of the index.
		q.Set("limit", "-1")
	}

	endpoint := c.baseURL + "/cdx/search/cdx?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("cdx request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cdx query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cdx status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("cdx read: %w", err)
	}

	// The first row is a header; data rows are [urlkey, timestamp,
	// original, ...].
	var rows [][]string
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("cdx decode: %w", err)
	}
	if len(rows) < 2 {
		return nil, ErrNoSnapshot
	}
	row := rows[1]
	if len(row) < 3 {
		return nil, fmt.Errorf("cdx row too short: %v", row)
	}

	snap := &Snapshot{Timestamp: row[1], Original: row[2], baseURL: c.baseURL}
	logger.Debug("archive snapshot found", "url", target, "timestamp", snap.Timestamp)
	return snap, nil
}
