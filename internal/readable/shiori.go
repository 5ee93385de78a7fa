package readable

import (
	"context"
	"fmt"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/markusmobius/go-htmldate"

	"github.com/landseer/landseer/internal/extract"
	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/urlnorm"
)

// ShioriExtractor is the built-in clean extractor: readability for the
// article body, html-to-markdown for the readable text, htmldate as the
// publication-date fallback.
type ShioriExtractor struct {
	timeout time.Duration
}

func NewShioriExtractor(timeout time.Duration) *ShioriExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShioriExtractor{timeout: timeout}
}

func (e *ShioriExtractor) Extract(ctx context.Context, url string) (*Document, error) {
	article, err := readability.FromURL(url, e.timeout)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}
	if strings.TrimSpace(article.Content) == "" {
		return nil, fmt.Errorf("readability: no content for %s", url)
	}

	markdown, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		logger.Debug("markdown conversion failed", "url", url, "error", err)
		markdown = article.TextContent
	}

	doc := &Document{
		Title:     strings.TrimSpace(article.Title),
		Content:   article.Content,
		Markdown:  strings.TrimSpace(markdown),
		Excerpt:   strings.TrimSpace(article.Excerpt),
		Direction: article.Language,
		WordCount: len(strings.Fields(article.TextContent)),
	}

	if article.PublishedTime != nil {
		doc.DatePublished = article.PublishedTime.UTC().Format(time.RFC3339)
	} else if published := e.dateFromContent(url, article.Content); !published.IsZero() {
		doc.DatePublished = published.UTC().Format(time.RFC3339)
	}

	e.collectRefs(url, article.Content, doc)
	return doc, nil
}

// dateFromContent scans the article markup for a publication date.
func (e *ShioriExtractor) dateFromContent(url, content string) time.Time {
	res, err := htmldate.FromReader(strings.NewReader(content), htmldate.Options{
		URL:             url,
		UseOriginalDate: true,
	})
	if err != nil {
		return time.Time{}
	}
	return res.DateTime
}

func (e *ShioriExtractor) collectRefs(url, content string, doc *Document) {
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return
	}

	for _, ref := range extract.CollectMediaRefs(gq) {
		abs := urlnorm.Resolve(url, ref.URL)
		if abs == "" {
			continue
		}
		switch ref.Kind {
		case extract.MediaVideo:
			doc.Videos = append(doc.Videos, abs)
		case extract.MediaAudio:
			// The document contract has no audio slot; audio travels
			// with videos, both end up as media rows.
			doc.Videos = append(doc.Videos, abs)
		default:
			doc.Images = append(doc.Images, abs)
		}
	}

	seen := map[string]struct{}{}
	gq.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		abs := urlnorm.Resolve(url, href)
		if abs == "" || !urlnorm.IsCrawlable(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		doc.Links = append(doc.Links, abs)
	})
}
