// Package consolidate rebuilds the link and media graph of a land
// offline, treating the stored readable text as the source of truth.
// Nothing is fetched and the LLM gate is never consulted.
package consolidate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/landseer/landseer/internal/extract"
	"github.com/landseer/landseer/internal/lexicon"
	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/store"
	"github.com/landseer/landseer/internal/urlnorm"
)

// Options bounds one consolidation pass.
type Options struct {
	Limit        int
	Depth        *int
	MinRelevance *int
}

// Stats is the outcome of a pass.
type Stats struct {
	Processed int
}

// Consolidator rebuilds expressions from their stored readable.
type Consolidator struct {
	store    *store.Store
	lex      *lexicon.Lexicon
	parallel int
}

func New(s *store.Store, lex *lexicon.Lexicon, parallel int) *Consolidator {
	if parallel < 1 {
		parallel = 1
	}
	return &Consolidator{store: s, lex: lex, parallel: parallel}
}

// Run consolidates the land's fetched expressions in bounded concurrent
// batches, then sweeps the approval invariant over the whole land.
func (c *Consolidator) Run(ctx context.Context, land *store.Land, opts Options) (Stats, error) {
	var stats Stats

	candidates, err := c.store.ConsolidateCandidates(ctx, land.ID, opts.Limit, opts.Depth, opts.MinRelevance)
	if err != nil {
		return stats, err
	}

	logger.Info("consolidation starting",
		"land", land.Name,
		"candidates", len(candidates),
		"parallel", c.parallel)

	var mu sync.Mutex
	for start := 0; start < len(candidates); start += c.parallel {
		end := start + c.parallel
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		g, gctx := errgroup.WithContext(ctx)
		for i := range batch {
			expr := batch[i]
			g.Go(func() error {
				if err := c.process(gctx, &expr); err != nil {
					logger.Warn("consolidation failed", "url", expr.URL, "error", err)
					return gctx.Err()
				}
				mu.Lock()
				stats.Processed++
				mu.Unlock()
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}

	if err := c.store.EnforceApproval(ctx, land.ID); err != nil {
		return stats, err
	}

	logger.Info("consolidation finished", "land", land.Name, "processed", stats.Processed)
	return stats, nil
}

// process rescores one expression and rebuilds its outgoing links and
// media from the stored readable text.
func (c *Consolidator) process(ctx context.Context, expr *store.Expression) error {
	readable := expr.ReadableValue()

	relevance := c.lex.Score(expr.TitleValue(), readable)
	expr.Relevance = &relevance
	if relevance > 0 {
		if expr.ApprovedAt == nil {
			now := time.Now().UTC()
			expr.ApprovedAt = &now
		}
	} else {
		expr.ApprovedAt = nil
	}

	links, media := parseReadable(expr.URL, readable)
	if err := c.store.ReplaceLinks(ctx, expr, links); err != nil {
		return err
	}
	if err := c.store.ReplaceMedia(ctx, expr, media); err != nil {
		return err
	}
	return c.store.SaveExpression(ctx, expr)
}

// parseReadable extracts outbound links and media from readable text,
// reading it both as markdown and as HTML since stored content can be
// either depending on which extraction stage produced it.
func parseReadable(baseURL, readable string) ([]string, []store.MediaItem) {
	var links []string
	seen := map[string]struct{}{}
	add := func(raw string) {
		abs := urlnorm.Resolve(baseURL, raw)
		if abs == "" || !urlnorm.IsCrawlable(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	}

	for _, u := range extract.MarkdownLinks(readable) {
		add(u)
	}

	var media []store.MediaItem
	for _, ref := range extract.MarkdownMedia(readable) {
		media = append(media, store.MediaItem{URL: ref.URL, Kind: string(ref.Kind)})
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(readable)); err == nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				add(href)
			}
		})
		for _, ref := range extract.CollectMediaRefs(doc) {
			media = append(media, store.MediaItem{URL: ref.URL, Kind: string(ref.Kind)})
		}
	}

	return links, media
}
