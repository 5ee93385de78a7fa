// Package crawler runs the breadth-first crawl over a land's expression
// graph: depth by depth, in bounded concurrent batches, fetching and
// scoring each expression exactly once.
package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/landseer/landseer/internal/config"
	"github.com/landseer/landseer/internal/extract"
	"github.com/landseer/landseer/internal/gate"
	"github.com/landseer/landseer/internal/lexicon"
	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/media"
	"github.com/landseer/landseer/internal/store"
)

// maxLinkDepth is the depth at which link discovery stops; pages at this
// depth are still fetched and scored but contribute no children.
const maxLinkDepth = 3

// Extractor produces the page content for one URL. Satisfied by
// extract.Pipeline; tests substitute a canned implementation.
type Extractor interface {
	Extract(ctx context.Context, url string) extract.Result
}

// DynamicCollector is the optional headless-browser media pass.
// Satisfied by media.Browser.
type DynamicCollector interface {
	Collect(ctx context.Context, url string) []media.Ref
}

// Options selects and bounds the candidate set for one run.
type Options struct {
	// Limit caps attempts, not successes. Zero means unbounded.
	Limit int
	// HTTPStatus switches to re-crawl mode: instead of unfetched
	// expressions, select those whose stored status matches.
	HTTPStatus string
	// Depth restricts the run to a single depth.
	Depth *int
}

// Stats is the outcome of a run.
type Stats struct {
	Attempted int
	Processed int
}

// Errors is the number of attempts that yielded no readable text.
func (s Stats) Errors() int {
	return s.Attempted - s.Processed
}

// Crawler is the orchestrator. Safe for a single run at a time.
type Crawler struct {
	store     *store.Store
	extractor Extractor
	lex       *lexicon.Lexicon
	gate      gate.Gate
	dynamic   DynamicCollector
	parallel  int
	rawDir    string
}

// New builds a crawler. A nil gate disables the LLM veto; a nil dynamic
// collector skips the secondary media pass.
func New(s *store.Store, extractor Extractor, lex *lexicon.Lexicon, g gate.Gate, dynamic DynamicCollector, parallel int) *Crawler {
	if parallel < 1 {
		parallel = 1
	}
	if g == nil {
		g, _ = gate.New(config.LLMConfig{})
	}
	return &Crawler{
		store:     s,
		extractor: extractor,
		lex:       lex,
		gate:      g,
		dynamic:   dynamic,
		parallel:  parallel,
	}
}

// ArchiveRawTo stores each fetched page's raw HTML as <id>.html under
// dir, the land's blob directory.
func (c *Crawler) ArchiveRawTo(dir string) {
	c.rawDir = dir
}

// Crawl fetches the land's candidate expressions depth by depth. The
// candidate set is snapshotted at the start of the run, so children
// discovered while processing depth D are fetched on a later run, never
// this one.
func (c *Crawler) Crawl(ctx context.Context, land *store.Land, opts Options) (Stats, error) {
	var stats Stats

	candidates, err := c.store.CrawlCandidates(ctx, land.ID, opts.HTTPStatus, opts.Depth)
	if err != nil {
		return stats, err
	}
	if len(candidates) == 0 {
		return stats, nil
	}

	gateLand, err := c.gateLand(ctx, land)
	if err != nil {
		return stats, err
	}

	byDepth := map[int][]store.Expression{}
	for _, e := range candidates {
		byDepth[e.Depth] = append(byDepth[e.Depth], e)
	}
	depths := make([]int, 0, len(byDepth))
	for d := range byDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	logger.Info("crawl starting",
		"land", land.Name,
		"candidates", len(candidates),
		"depths", len(depths),
		"parallel", c.parallel)

	var mu sync.Mutex
	for _, depth := range depths {
		queue := byDepth[depth]
		for len(queue) > 0 {
			if opts.Limit > 0 && stats.Attempted >= opts.Limit {
				return stats, nil
			}

			size := c.parallel
			if opts.Limit > 0 && opts.Limit-stats.Attempted < size {
				size = opts.Limit - stats.Attempted
			}
			if size > len(queue) {
				size = len(queue)
			}
			batch := queue[:size]
			queue = queue[size:]
			stats.Attempted += len(batch)

			g, gctx := errgroup.WithContext(ctx)
			for i := range batch {
				expr := batch[i]
				g.Go(func() error {
					if c.process(gctx, gateLand, &expr) {
						mu.Lock()
						stats.Processed++
						mu.Unlock()
					}
					return gctx.Err()
				})
			}
			if err := g.Wait(); err != nil {
				return stats, err
			}
		}
	}

	logger.Info("crawl finished",
		"land", land.Name,
		"attempted", stats.Attempted,
		"processed", stats.Processed,
		"errors", stats.Errors())
	return stats, nil
}

func (c *Crawler) gateLand(ctx context.Context, land *store.Land) (gate.Land, error) {
	gl := gate.Land{Name: land.Name, Description: land.Description}
	if !c.gate.Enabled() {
		return gl, nil
	}
	lemmas, err := c.store.LandLemmas(ctx, land.ID)
	if err != nil {
		return gl, err
	}
	gl.Terms = lemmas
	return gl, nil
}

// process runs the per-expression pipeline and reports whether readable
// extraction succeeded. Failures are recorded on the row, never
// propagated; a terminal status without readable text still counts as
// fetched so the default selection will not retry it.
func (c *Crawler) process(ctx context.Context, gl gate.Land, expr *store.Expression) bool {
	now := time.Now().UTC()
	expr.FetchedAt = &now

	result := c.extractor.Extract(ctx, expr.URL)

	status := string(result.Status)
	expr.HTTPStatus = &status
	if result.Raw != "" {
		expr.Raw = &result.Raw
		c.archiveRaw(expr.ID, result.Raw)
	}
	if result.Readable != "" {
		expr.Readable = &result.Readable
	}
	applyMetadata(expr, result.Meta)

	relevance := c.lex.Score(expr.TitleValue(), expr.ReadableValue())
	if relevance > 0 && c.gate.Enabled() {
		relevance = c.applyGate(ctx, gl, expr, relevance)
	}
	expr.Relevance = &relevance

	if relevance > 0 {
		expr.ApprovedAt = &now
		if expr.Depth < maxLinkDepth {
			for _, u := range result.Links {
				if err := c.store.Link(ctx, expr, u); err != nil {
					logger.Warn("link discovery failed", "url", u, "error", err)
				}
			}
		}
	}

	items := make([]store.MediaItem, 0, len(result.Media))
	for _, m := range result.Media {
		items = append(items, store.MediaItem{URL: m.URL, Kind: string(m.Kind)})
	}
	if err := c.store.ReplaceMedia(ctx, expr, items); err != nil {
		logger.Warn("media replacement failed", "url", expr.URL, "error", err)
	}

	if relevance > 0 && c.dynamic != nil {
		for _, ref := range c.dynamic.Collect(ctx, expr.URL) {
			if err := c.store.RecordMedia(ctx, expr, ref.URL, ref.Kind); err != nil {
				logger.Warn("dynamic media record failed", "url", ref.URL, "error", err)
			}
		}
	}

	if err := c.store.SaveExpression(ctx, expr); err != nil {
		logger.Error("expression save failed", "url", expr.URL, "error", err)
		return false
	}

	logger.Debug("expression processed",
		"url", expr.URL,
		"status", status,
		"relevance", relevance,
		"links", len(result.Links),
		"media", len(items))
	return expr.Readable != nil
}

func (c *Crawler) archiveRaw(id int64, raw string) {
	if c.rawDir == "" {
		return
	}
	path := filepath.Join(c.rawDir, fmt.Sprintf("%d.html", id))
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		logger.Warn("raw archive write failed", "path", path, "error", err)
	}
}

// applyGate consults the LLM and applies its veto. Unknown verdicts,
// including provider errors, leave the lexicon score untouched.
func (c *Crawler) applyGate(ctx context.Context, gl gate.Land, expr *store.Expression, relevance int) int {
	verdict, model, err := c.gate.Judge(ctx, gl, gate.Page{
		URL:      expr.URL,
		Title:    expr.TitleValue(),
		Readable: expr.ReadableValue(),
	})
	if err != nil {
		logger.Warn("relevance gate failed", "url", expr.URL, "error", err)
		return relevance
	}

	switch verdict {
	case gate.NotRelevant:
		no := "non"
		expr.ValidLLM = &no
		expr.ValidModel = &model
		return 0
	case gate.Relevant:
		yes := "oui"
		expr.ValidLLM = &yes
		expr.ValidModel = &model
	}
	return relevance
}

func applyMetadata(expr *store.Expression, meta extract.Metadata) {
	if v := strings.TrimSpace(meta.Title); v != "" {
		expr.Title = &v
	}
	if v := strings.TrimSpace(meta.Description); v != "" {
		expr.Description = &v
	}
	if v := strings.TrimSpace(meta.Keywords); v != "" {
		expr.Keywords = &v
	}
	if v := strings.TrimSpace(meta.Lang); v != "" {
		expr.Lang = &v
	}
}
