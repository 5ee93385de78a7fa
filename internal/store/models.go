package store

import (
	"strings"
	"time"
)

// Land is a research project scoping a corpus of expressions.
type Land struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Lang        string    `db:"lang" json:"lang"` // comma-separated BCP-47 codes, first is primary
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Languages returns the land's language codes.
func (l *Land) Languages() []string {
	var langs []string
	for _, part := range strings.Split(l.Lang, ",") {
		if p := strings.TrimSpace(part); p != "" {
			langs = append(langs, p)
		}
	}
	return langs
}

// PrimaryLang returns the first language code, defaulting to "fr".
func (l *Land) PrimaryLang() string {
	langs := l.Languages()
	if len(langs) == 0 {
		return "fr"
	}
	return langs[0]
}

// Word is a (term, lemma) pair shared across lands.
type Word struct {
	ID    int64  `db:"id"`
	Term  string `db:"term"`
	Lemma string `db:"lemma"`
}

// Domain is a unique-per-host record.
type Domain struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	HTTPStatus  *string    `db:"http_status" json:"http_status,omitempty"`
	Title       *string    `db:"title" json:"title,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	Keywords    *string    `db:"keywords" json:"keywords,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	FetchedAt   *time.Time `db:"fetched_at" json:"fetched_at,omitempty"`
}

// Expression is a single URL within a land.
type Expression struct {
	ID          int64      `db:"id" json:"id"`
	LandID      int64      `db:"land_id" json:"land_id"`
	DomainID    int64      `db:"domain_id" json:"domain_id"`
	URL         string     `db:"url" json:"url"`
	Depth       int        `db:"depth" json:"depth"`
	HTTPStatus  *string    `db:"http_status" json:"http_status,omitempty"`
	Lang        *string    `db:"lang" json:"lang,omitempty"`
	Title       *string    `db:"title" json:"title,omitempty"`
	Description *string    `db:"description" json:"description,omitempty"`
	Keywords    *string    `db:"keywords" json:"keywords,omitempty"`
	Readable    *string    `db:"readable" json:"-"`
	Raw         *string    `db:"raw" json:"-"`
	Relevance   *int       `db:"relevance" json:"relevance,omitempty"`
	ValidLLM    *string    `db:"validllm" json:"validllm,omitempty"`
	ValidModel  *string    `db:"validmodel" json:"validmodel,omitempty"`
	SeoRank     *string    `db:"seorank" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	FetchedAt   *time.Time `db:"fetched_at" json:"fetched_at,omitempty"`
	ApprovedAt  *time.Time `db:"approved_at" json:"approved_at,omitempty"`
	ReadableAt  *time.Time `db:"readable_at" json:"readable_at,omitempty"`
	PublishedAt *time.Time `db:"published_at" json:"published_at,omitempty"`
}

// RelevanceValue returns the stored relevance, 0 when unset.
func (e *Expression) RelevanceValue() int {
	if e.Relevance == nil {
		return 0
	}
	return *e.Relevance
}

// TitleValue returns the stored title, "" when unset.
func (e *Expression) TitleValue() string {
	if e.Title == nil {
		return ""
	}
	return *e.Title
}

// ReadableValue returns the stored readable text, "" when unset.
func (e *Expression) ReadableValue() string {
	if e.Readable == nil {
		return ""
	}
	return *e.Readable
}

// Link is a directed edge between two expressions of the same land.
type Link struct {
	SourceID int64 `db:"source_id"`
	TargetID int64 `db:"target_id"`
}

// Media is an embedded resource reference on an expression.
type Media struct {
	ID           int64  `db:"id"`
	ExpressionID int64  `db:"expression_id"`
	URL          string `db:"url"`
	Kind         string `db:"type"`
}
