// Package harvest fills in domain metadata. Each domain root page is
// fetched through a three-stage ladder: clean extraction, web-archive
// snapshot, plain HTTP; the first stage producing HTML wins.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/sync/errgroup"

	"github.com/landseer/landseer/internal/archive"
	"github.com/landseer/landseer/internal/extract"
	"github.com/landseer/landseer/internal/fetch"
	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/store"
)

// Options bounds one harvest run.
type Options struct {
	// Limit caps how many domains are attempted. Zero means all.
	Limit int
	// HTTPStatus re-harvests domains whose stored status matches
	// instead of the unfetched default.
	HTTPStatus string
}

// Stats is the outcome of a run.
type Stats struct {
	Attempted int
	Harvested int
}

func (s Stats) Errors() int {
	return s.Attempted - s.Harvested
}

// Harvester fetches domain root pages and persists their metadata.
type Harvester struct {
	store     *store.Store
	archive   *archive.Client
	http      *http.Client
	userAgent string
	parallel  int
}

// New builds a harvester. The archive client may be nil, which skips
// the snapshot stage.
func New(s *store.Store, arc *archive.Client, userAgent string, timeout time.Duration, parallel int) *Harvester {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if parallel < 1 {
		parallel = 1
	}
	return &Harvester{
		store:     s,
		archive:   arc,
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
		parallel:  parallel,
	}
}

// Run harvests matching domains in bounded concurrent batches.
func (h *Harvester) Run(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	domains, err := h.store.DomainsToFetch(ctx, opts.Limit, opts.HTTPStatus)
	if err != nil {
		return stats, err
	}
	if len(domains) == 0 {
		return stats, nil
	}

	logger.Info("domain harvest starting", "domains", len(domains), "parallel", h.parallel)

	var mu sync.Mutex
	for start := 0; start < len(domains); start += h.parallel {
		end := start + h.parallel
		if end > len(domains) {
			end = len(domains)
		}
		batch := domains[start:end]
		stats.Attempted += len(batch)

		g, gctx := errgroup.WithContext(ctx)
		for i := range batch {
			dom := batch[i]
			g.Go(func() error {
				if h.harvest(gctx, &dom) {
					mu.Lock()
					stats.Harvested++
					mu.Unlock()
				}
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}

	logger.Info("domain harvest finished",
		"attempted", stats.Attempted,
		"harvested", stats.Harvested,
		"errors", stats.Errors())
	return stats, nil
}

// harvest runs the stage ladder for one domain and persists the result.
// A failing stage records its sentinel and hands over to the next; only
// the last failure's sentinel survives on a fully failed domain.
func (h *Harvester) harvest(ctx context.Context, dom *store.Domain) bool {
	now := time.Now().UTC()
	dom.FetchedAt = &now

	html, status := h.cleanStage(ctx, dom.Name)
	if html == "" {
		html, status = h.archiveStage(ctx, dom.Name)
	}
	if html == "" {
		html, status = h.directStage(ctx, dom.Name)
	}

	statusStr := string(status)
	dom.HTTPStatus = &statusStr

	harvested := html != ""
	if harvested {
		applyMetadata(dom, html)
	}

	if err := h.store.SaveDomain(ctx, dom); err != nil {
		logger.Error("domain save failed", "domain", dom.Name, "error", err)
		return false
	}

	logger.Debug("domain harvested", "domain", dom.Name, "status", statusStr, "ok", harvested)
	return harvested
}

// cleanStage fetches the root page and keeps it only when readability
// can pull an article out of it, https then http. The raw document is
// returned, not the extracted body, so the metadata pass still sees
// the head section.
func (h *Harvester) cleanStage(ctx context.Context, name string) (string, fetch.Status) {
	for _, scheme := range []string{"https", "http"} {
		rawURL := fmt.Sprintf("%s://%s", scheme, name)
		html, _ := h.get(ctx, rawURL)
		if html == "" {
			continue
		}
		pageURL, err := url.Parse(rawURL)
		if err != nil {
			continue
		}
		article, err := readability.FromReader(strings.NewReader(html), pageURL)
		if err != nil || strings.TrimSpace(article.Content) == "" {
			continue
		}
		return html, fetch.FromCode(http.StatusOK)
	}
	return "", fetch.StatusErrTrafi
}

// archiveStage recovers the root page from the newest archive snapshot.
func (h *Harvester) archiveStage(ctx context.Context, name string) (string, fetch.Status) {
	if h.archive == nil {
		return "", fetch.StatusErrArchive
	}

	snap, err := h.archive.Lookup(ctx, "https://"+name, archive.Latest)
	switch {
	case errors.Is(err, archive.ErrNoSnapshot):
		return "", fetch.StatusErrArchiveNF
	case errors.Is(err, context.DeadlineExceeded):
		return "", fetch.StatusErrArchiveTO
	case err != nil:
		return "", fetch.StatusErrArchiveReq
	}

	html, status := h.get(ctx, snap.URL())
	if html == "" {
		if status == fetch.StatusReqNoHTML {
			return "", status
		}
		return "", fetch.StatusErrArchive
	}
	return html, fetch.FromCode(http.StatusOK)
}

// directStage is the last resort: a plain GET with redirects allowed,
// accepting only 2xx HTML responses.
func (h *Harvester) directStage(ctx context.Context, name string) (string, fetch.Status) {
	status := fetch.StatusErrAllFailed
	for _, scheme := range []string{"https", "http"} {
		var html string
		html, status = h.get(ctx, fmt.Sprintf("%s://%s", scheme, name))
		if html != "" {
			return html, status
		}
	}
	return "", status
}

// get fetches one URL and returns its HTML when the response is a 2xx
// with an html content type; otherwise an empty body and the status.
func (h *Harvester) get(ctx context.Context, url string) (string, fetch.Status) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fetch.StatusErrUnknown
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.http.Do(req)
	if err != nil {
		return "", fetch.StatusNetworkError
	}
	defer resp.Body.Close()

	status := fetch.FromCode(resp.StatusCode)
	if !status.OK() {
		return "", status
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return "", fetch.StatusReqNoHTML
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fetch.StatusErrProcess
	}
	return string(body), status
}

func applyMetadata(dom *store.Domain, html string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return
	}
	meta := extract.CombineMetadata(doc)
	if v := strings.TrimSpace(meta.Title); v != "" {
		dom.Title = &v
	}
	if v := strings.TrimSpace(meta.Description); v != "" {
		dom.Description = &v
	}
	if v := strings.TrimSpace(meta.Keywords); v != "" {
		dom.Keywords = &v
	}
}
