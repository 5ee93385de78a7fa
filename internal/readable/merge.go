package readable

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/landseer/landseer/internal/store"
)

// Strategy selects how clean-extractor values merge into stored rows.
type Strategy string

const (
	// MercuryPriority lets every non-empty clean value replace the
	// stored one.
	MercuryPriority Strategy = "mercury_priority"
	// PreserveExisting keeps any non-empty stored value.
	PreserveExisting Strategy = "preserve_existing"
	// SmartMerge decides per field: earlier date, longer title and
	// description, clean readable.
	SmartMerge Strategy = "smart_merge"
)

// ParseStrategy validates a strategy name, defaulting to SmartMerge.
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(s) {
	case MercuryPriority, PreserveExisting, SmartMerge:
		return Strategy(s), true
	case "":
		return SmartMerge, true
	default:
		return SmartMerge, false
	}
}

// Merge folds the document into the expression and reports whether the
// readable text changed. readable_at bookkeeping is the caller's job.
func Merge(expr *store.Expression, doc *Document, strategy Strategy) (readableChanged bool) {
	if v := mergeString(strategy, deref(expr.Title), doc.Title, true); v != nil {
		expr.Title = v
	}
	if v := mergeString(strategy, deref(expr.Description), doc.Excerpt, true); v != nil {
		expr.Description = v
	}

	if doc.Markdown != "" {
		keep := strategy == PreserveExisting && expr.ReadableValue() != ""
		if !keep && expr.ReadableValue() != doc.Markdown {
			md := doc.Markdown
			expr.Readable = &md
			readableChanged = true
		}
	}

	// Direction is a weaker language signal than the fetched markup;
	// only the unconditional strategy takes it.
	if strategy == MercuryPriority && doc.Direction != "" {
		dir := doc.Direction
		expr.Lang = &dir
	}

	if published := ParseDate(doc.DatePublished); published != nil {
		switch strategy {
		case MercuryPriority:
			expr.PublishedAt = published
		case PreserveExisting:
			if expr.PublishedAt == nil {
				expr.PublishedAt = published
			}
		case SmartMerge:
			if expr.PublishedAt == nil || published.Before(*expr.PublishedAt) {
				expr.PublishedAt = published
			}
		}
	}

	return readableChanged
}

// mergeString resolves one string field; nil means keep the current
// value. longerWins applies only to SmartMerge.
func mergeString(strategy Strategy, current, clean string, longerWins bool) *string {
	clean = strings.TrimSpace(clean)
	if clean == "" || clean == current {
		return nil
	}
	switch strategy {
	case PreserveExisting:
		if current != "" {
			return nil
		}
	case SmartMerge:
		if longerWins && len(current) >= len(clean) {
			return nil
		}
	}
	return &clean
}

// ParseDate accepts the publication-date formats the clean extractors
// emit: ISO-8601 with or without milliseconds and zone, and plain dates.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
