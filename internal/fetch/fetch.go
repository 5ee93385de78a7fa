// Package fetch performs direct HTTP fetches for the crawl pipeline and
// defines the stored status vocabulary.
package fetch

import (
	"context"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/landseer/landseer/internal/logger"
)

// Result is the outcome of a direct fetch. HTML is populated only for 200
// responses whose content type mentions html.
type Result struct {
	Status      Status
	ContentType string
	HTML        string
}

// Client fetches pages with a fixed user agent and timeout. A fresh colly
// collector backs every request, so the client is safe for concurrent use.
type Client struct {
	userAgent string
	timeout   time.Duration
}

// NewClient creates a fetch client.
func NewClient(userAgent string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{userAgent: userAgent, timeout: timeout}
}

// Fetch GETs a URL and classifies the outcome. Network-level failures map
// to status "000", anything else unexpected to "ERR"; both are returned in
// Result rather than as an error so callers can persist them directly.
func (c *Client) Fetch(ctx context.Context, targetURL string) Result {
	result := Result{Status: StatusError}

	select {
	case <-ctx.Done():
		result.Status = StatusNetworkError
		return result
	default:
	}

	collector := colly.NewCollector(
		colly.UserAgent(c.userAgent),
	)
	collector.SetRequestTimeout(c.timeout)

	collector.OnResponse(func(r *colly.Response) {
		result.Status = FromCode(r.StatusCode)
		result.ContentType = strings.ToLower(r.Headers.Get("Content-Type"))
		if r.StatusCode == 200 && strings.Contains(result.ContentType, "html") {
			result.HTML = string(r.Body)
		}
		logger.Debug("fetch response",
			"url", targetURL,
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", len(r.Body))
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			result.Status = FromCode(r.StatusCode)
			result.ContentType = strings.ToLower(r.Headers.Get("Content-Type"))
		} else {
			result.Status = StatusNetworkError
		}
		logger.Debug("fetch error", "url", targetURL, "status", result.Status.String(), "error", err)
	})

	if err := collector.Visit(targetURL); err != nil {
		// Visit errors before any response means the request never left.
		if result.Status == StatusError {
			result.Status = StatusNetworkError
		}
		logger.Debug("fetch visit failed", "url", targetURL, "error", err)
		return result
	}
	collector.Wait()

	return result
}
