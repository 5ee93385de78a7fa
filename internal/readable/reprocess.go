package readable

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/landseer/landseer/internal/archive"
	"github.com/landseer/landseer/internal/extract"
	"github.com/landseer/landseer/internal/gate"
	"github.com/landseer/landseer/internal/lexicon"
	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/store"
	"github.com/landseer/landseer/internal/urlnorm"
)

// Options bounds one reprocessing run.
type Options struct {
	Limit    int
	Depth    *int
	Strategy Strategy
}

// Stats is the outcome of a run. Every attempted expression gets a
// readable_at marker; Failed counts those where extraction yielded
// nothing to merge.
type Stats struct {
	Attempted int
	Updated   int
	Failed    int
}

// Reprocessor pipes fetched expressions through the clean extractor.
type Reprocessor struct {
	store     *store.Store
	extractor CleanExtractor
	archive   *archive.Client
	lex       *lexicon.Lexicon
	gate      gate.Gate
	parallel  int
}

// New builds a reprocessor. The archive client may be nil, which
// disables the snapshot fallback.
func New(s *store.Store, extractor CleanExtractor, arc *archive.Client, lex *lexicon.Lexicon, g gate.Gate, parallel int) *Reprocessor {
	if parallel < 1 {
		parallel = 1
	}
	return &Reprocessor{
		store:     s,
		extractor: extractor,
		archive:   arc,
		lex:       lex,
		gate:      g,
		parallel:  parallel,
	}
}

// Run reprocesses the land's candidates in bounded concurrent batches,
// ordered by fetch time then depth.
func (r *Reprocessor) Run(ctx context.Context, land *store.Land, opts Options) (Stats, error) {
	var stats Stats

	candidates, err := r.store.ReadableCandidates(ctx, land.ID, opts.Limit, opts.Depth)
	if err != nil {
		return stats, err
	}
	if len(candidates) == 0 {
		return stats, nil
	}

	gl := gate.Land{Name: land.Name, Description: land.Description}
	if r.gate != nil && r.gate.Enabled() {
		if gl.Terms, err = r.store.LandLemmas(ctx, land.ID); err != nil {
			return stats, err
		}
	}

	logger.Info("readable pass starting",
		"land", land.Name,
		"candidates", len(candidates),
		"strategy", string(opts.Strategy),
		"parallel", r.parallel)

	var mu sync.Mutex
	for start := 0; start < len(candidates); start += r.parallel {
		end := start + r.parallel
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		stats.Attempted += len(batch)

		g, gctx := errgroup.WithContext(ctx)
		for i := range batch {
			expr := batch[i]
			g.Go(func() error {
				updated := r.process(gctx, gl, &expr, opts.Strategy)
				mu.Lock()
				if updated {
					stats.Updated++
				} else {
					stats.Failed++
				}
				mu.Unlock()
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}
	}

	logger.Info("readable pass finished",
		"land", land.Name,
		"attempted", stats.Attempted,
		"updated", stats.Updated,
		"failed", stats.Failed)
	return stats, nil
}

// process extracts, merges and persists one expression. It always
// stamps readable_at so a failing page is not retried forever.
func (r *Reprocessor) process(ctx context.Context, gl gate.Land, expr *store.Expression, strategy Strategy) bool {
	now := time.Now().UTC()
	expr.ReadableAt = &now

	doc := r.extract(ctx, expr.URL)
	if doc.Empty() {
		if err := r.store.SaveExpression(ctx, expr); err != nil {
			logger.Error("expression save failed", "url", expr.URL, "error", err)
		}
		return false
	}

	readableChanged := Merge(expr, doc, strategy)

	if readableChanged {
		relevance := r.lex.Score(expr.TitleValue(), expr.ReadableValue())
		if relevance > 0 && r.gate != nil && r.gate.Enabled() {
			relevance = r.applyGate(ctx, gl, expr, relevance)
		}
		expr.Relevance = &relevance
		if relevance > 0 {
			expr.ApprovedAt = &now
		} else {
			expr.ApprovedAt = nil
		}
	}

	media, links := refsFromDocument(expr.URL, expr.ReadableValue(), doc)
	if err := r.store.ReplaceMedia(ctx, expr, media); err != nil {
		logger.Warn("media replacement failed", "url", expr.URL, "error", err)
	}
	if err := r.store.ReplaceLinks(ctx, expr, links); err != nil {
		logger.Warn("link replacement failed", "url", expr.URL, "error", err)
	}

	if err := r.store.SaveExpression(ctx, expr); err != nil {
		logger.Error("expression save failed", "url", expr.URL, "error", err)
		return false
	}

	logger.Debug("expression reprocessed",
		"url", expr.URL,
		"archive", doc.ArchiveSourced,
		"links", len(links),
		"media", len(media))
	return true
}

// extract runs the clean extractor against the live URL, then against
// the earliest archive snapshot when the live page fails.
func (r *Reprocessor) extract(ctx context.Context, url string) *Document {
	doc, err := r.extractor.Extract(ctx, url)
	if err == nil && !doc.Empty() {
		return doc
	}
	if err != nil {
		logger.Debug("clean extraction failed", "url", url, "error", err)
	}

	if r.archive == nil {
		return nil
	}
	snap, lookupErr := r.archive.Lookup(ctx, url, archive.Earliest)
	if lookupErr != nil {
		return nil
	}
	doc, err = r.extractor.Extract(ctx, snap.URL())
	if err != nil || doc.Empty() {
		return nil
	}
	doc.ArchiveSourced = true
	return doc
}

func (r *Reprocessor) applyGate(ctx context.Context, gl gate.Land, expr *store.Expression, relevance int) int {
	verdict, model, err := r.gate.Judge(ctx, gl, gate.Page{
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

// refsFromDocument rebuilds the media and link sets from the merged
// readable markdown, supplemented by the extractor's own lists.
func refsFromDocument(baseURL, readable string, doc *Document) ([]store.MediaItem, []string) {
	var media []store.MediaItem
	for _, ref := range extract.MarkdownMedia(readable) {
		media = append(media, store.MediaItem{URL: ref.URL, Kind: string(ref.Kind)})
	}
	for _, u := range doc.Images {
		media = append(media, store.MediaItem{URL: u, Kind: string(extract.MediaImage)})
	}
	for _, u := range doc.Videos {
		media = append(media, store.MediaItem{URL: u, Kind: string(extract.MediaVideo)})
	}

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
	for _, u := range doc.Links {
		add(u)
	}
	return media, links
}
