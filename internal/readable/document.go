// Package readable re-extracts fetched expressions through a clean
// extractor and merges the result into the stored rows under a
// configurable strategy.
package readable

import "context"

// Document is the clean extractor's output for one URL. The JSON field
// names follow the mercury-parser contract so an external CLI can be
// swapped in for the built-in extractor.
type Document struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	Markdown      string   `json:"markdown"`
	Excerpt       string   `json:"excerpt"`
	DatePublished string   `json:"date_published"`
	Direction     string   `json:"direction"`
	WordCount     int      `json:"word_count"`
	Images        []string `json:"images"`
	Videos        []string `json:"videos"`
	Links         []string `json:"links"`

	// ArchiveSourced marks documents recovered through a web-archive
	// snapshot rather than the live page.
	ArchiveSourced bool `json:"-"`
}

// Empty reports whether extraction produced nothing worth merging.
func (d *Document) Empty() bool {
	return d == nil || (d.Markdown == "" && d.Content == "" && d.Title == "")
}

// CleanExtractor produces a Document for a URL. Implementations: the
// built-in readability extractor and the external CLI client.
type CleanExtractor interface {
	Extract(ctx context.Context, url string) (*Document, error)
}
