package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is page-level metadata assembled from several tag vocabularies.
type Metadata struct {
	Title       string
	Description string
	Keywords    string
	Lang        string
}

// metaSources lists attribute selectors per field in priority order:
// OpenGraph, then Twitter Card, then schema.org itemprop, then the plain
// HTML fallbacks.
var metaSources = map[string][]string{
	"title": {
		`meta[property="og:title"]`,
		`meta[name="twitter:title"]`,
		`meta[itemprop="name"]`,
	},
	"description": {
		`meta[property="og:description"]`,
		`meta[name="twitter:description"]`,
		`meta[itemprop="description"]`,
		`meta[name="description"]`,
	},
	"keywords": {
		`meta[property="og:keywords"]`,
		`meta[name="twitter:keywords"]`,
		`meta[itemprop="keywords"]`,
		`meta[name="keywords"]`,
	},
}

// CombineMetadata extracts page metadata from a parsed document, taking
// the first non-empty candidate per field. Language comes from the <html
// lang> attribute, empty when absent.
func CombineMetadata(doc *goquery.Document) Metadata {
	meta := Metadata{
		Title:       firstMeta(doc, metaSources["title"]),
		Description: firstMeta(doc, metaSources["description"]),
		Keywords:    firstMeta(doc, metaSources["keywords"]),
	}

	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if lang, ok := doc.Find("html").First().Attr("lang"); ok {
		meta.Lang = strings.TrimSpace(lang)
	}

	return meta
}

func firstMeta(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		content, ok := doc.Find(sel).First().Attr("content")
		if ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}
