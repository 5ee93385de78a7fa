// Package extract turns a URL into readable text, metadata, outbound links
// and media references through a layered pipeline: direct fetch, clean
// extraction, a naive DOM reader, and finally a web-archive snapshot.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/markusmobius/go-trafilatura"
	nurl "net/url"

	"golang.org/x/net/html"

	"github.com/landseer/landseer/internal/archive"
	"github.com/landseer/landseer/internal/fetch"
	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/urlnorm"
)

// MinReadableLength is the shortest extraction considered usable; stages
// producing less hand over to the next fallback.
const MinReadableLength = 100

// Result is the full outcome of the extraction pipeline. Any field may be
// zero on failure; Status always reflects the direct fetch.
type Result struct {
	Status         fetch.Status
	Raw            string
	Readable       string
	Meta           Metadata
	Links          []string
	Media          []MediaRef
	ArchiveSourced bool
}

// stageOutput is what a single extraction stage yields.
type stageOutput struct {
	readable string
	links    []string
	media    []MediaRef
}

func (o stageOutput) usable() bool {
	return len(o.readable) > MinReadableLength
}

// Pipeline runs the layered extraction.
type Pipeline struct {
	fetcher *fetch.Client
	archive *archive.Client
}

// NewPipeline creates an extraction pipeline. The archive client may be
// nil, which disables the snapshot fallback.
func NewPipeline(fetcher *fetch.Client, archiveClient *archive.Client) *Pipeline {
	return &Pipeline{fetcher: fetcher, archive: archiveClient}
}

// Extract fetches a URL and runs the stages in order, stopping at the
// first one that yields usable readable text. It never returns an error:
// failures are encoded in the Result status and empty fields.
func (p *Pipeline) Extract(ctx context.Context, targetURL string) Result {
	result := Result{Status: fetch.StatusError}

	fetched := p.fetcher.Fetch(ctx, targetURL)
	result.Status = fetched.Status
	result.Raw = fetched.HTML

	if result.Raw != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Raw)); err == nil {
			result.Meta = CombineMetadata(doc)
		}

		out, err := cleanStage(targetURL, result.Raw)
		if err != nil {
			logger.Debug("clean extraction failed", "url", targetURL, "error", err)
		} else if out.usable() {
			result.apply(out)
			return result
		}

		out, err = naiveStage(targetURL, result.Raw)
		if err != nil {
			logger.Debug("naive extraction failed", "url", targetURL, "error", err)
		} else if out.usable() {
			result.apply(out)
			return result
		}
	}

	p.archiveStage(ctx, targetURL, &result)
	return result
}

func (r *Result) apply(out stageOutput) {
	r.Readable = out.readable
	r.Links = out.links
	r.Media = out.media
}

// archiveStage recovers content from the most recent Wayback snapshot.
func (p *Pipeline) archiveStage(ctx context.Context, targetURL string, result *Result) {
	if p.archive == nil {
		return
	}

	snap, err := p.archive.Lookup(ctx, targetURL, archive.Latest)
	if err != nil {
		if !errors.Is(err, archive.ErrNoSnapshot) {
			logger.Debug("archive lookup failed", "url", targetURL, "error", err)
		}
		return
	}

	fetched := p.fetcher.Fetch(ctx, snap.URL())
	if fetched.HTML == "" {
		logger.Debug("archive snapshot unreachable", "url", targetURL, "snapshot", snap.URL())
		return
	}

	if result.Meta == (Metadata{}) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(fetched.HTML)); err == nil {
			result.Meta = CombineMetadata(doc)
		}
	}

	out, err := cleanStage(targetURL, fetched.HTML)
	if err != nil || !out.usable() {
		// The snapshot markup is often partial; the naive reader is the
		// last resort here too.
		out, err = naiveStage(targetURL, fetched.HTML)
		if err != nil || !out.usable() {
			return
		}
	}

	result.ArchiveSourced = true
	result.apply(out)
}

// cleanStage extracts structural content with trafilatura, converts it to
// markdown, appends inline media markers and discovers links.
func cleanStage(targetURL, rawHTML string) (stageOutput, error) {
	opts := trafilatura.Options{
		IncludeImages:  true,
		IncludeLinks:   true,
		EnableFallback: true,
	}
	if u, err := nurl.Parse(targetURL); err == nil {
		opts.OriginalURL = u
	}

	extracted, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil {
		return stageOutput{}, fmt.Errorf("trafilatura: %w", err)
	}
	if extracted == nil || extracted.ContentNode == nil {
		return stageOutput{}, errors.New("trafilatura: no content")
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, extracted.ContentNode); err != nil {
		return stageOutput{}, fmt.Errorf("render content: %w", err)
	}
	contentHTML := buf.String()

	markdown, err := htmltomarkdown.ConvertString(contentHTML)
	if err != nil {
		return stageOutput{}, fmt.Errorf("markdown conversion: %w", err)
	}

	var refs []MediaRef
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(contentHTML)); err == nil {
		refs = CollectMediaRefs(doc)
	}

	markdown = strings.TrimSpace(AppendMediaMarkers(markdown, refs))

	return stageOutput{
		readable: markdown,
		links:    ParenURLs(markdown),
		media:    refs,
	}, nil
}

// naiveStage is the DOM fallback: strip chrome subtrees, swap media
// elements for markers, keep non-empty text lines.
func naiveStage(targetURL, rawHTML string) (stageOutput, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return stageOutput{}, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, iframe, form, footer, nav, .menu, .social, .modal").Remove()

	refs := CollectMediaRefs(doc)
	doc.Find("img[src], video[src], audio[src]").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		kind := MediaImage
		switch goquery.NodeName(s) {
		case "video":
			kind = MediaVideo
		case "audio":
			kind = MediaAudio
		}
		s.ReplaceWithHtml(MediaMarker(MediaRef{URL: src, Kind: kind}))
	})

	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs := urlnorm.Resolve(targetURL, href)
		if abs != "" && urlnorm.IsCrawlable(abs) {
			links = append(links, abs)
		}
	})

	return stageOutput{
		readable: strings.Join(lines, "\n"),
		links:    dedup(links),
		media:    refs,
	}, nil
}
