// Package urlnorm normalizes URLs and decides which of them are worth
// crawling. All functions tolerate malformed input: they return empty
// strings or false instead of failing.
package urlnorm

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// Extensions that never carry crawlable HTML. Matched case-insensitively
// against the end of the URL path.
var skippedExtensions = []string{
	".jpg", ".jpeg", ".png", ".bmp", ".webp",
	".pdf", ".txt", ".csv", ".xls", ".xlsx", ".doc", ".docx",
}

// RemoveAnchor strips the fragment from a URL, returning everything before
// the first '#'. URLs without a fragment come back unchanged.
func RemoveAnchor(rawURL string) string {
	if i := strings.Index(rawURL, "#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// IsCrawlable reports whether a URL is worth fetching: it must parse, use
// http or https, and not point at a known binary or data-file extension.
func IsCrawlable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	return true
}

// Heuristic rewrites the extracted host for URLs whose real "domain" is a
// path component, e.g. collapsing twitter.com/<handle> into per-handle
// logical domains.
type Heuristic struct {
	Suffix  string
	Pattern *regexp.Regexp
}

// Heuristics is a compiled suffix-keyed heuristic table. Lookup picks the
// longest suffix matching the host.
type Heuristics struct {
	rules []Heuristic
}

// CompileHeuristics builds a heuristic table from a suffix->regex map.
// Invalid patterns are reported, not skipped silently.
func CompileHeuristics(raw map[string]string) (*Heuristics, error) {
	h := &Heuristics{}
	for suffix, pattern := range raw {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		h.rules = append(h.rules, Heuristic{Suffix: suffix, Pattern: re})
	}
	// Longest suffix wins, so order rules by descending suffix length.
	sort.Slice(h.rules, func(i, j int) bool {
		return len(h.rules[i].Suffix) > len(h.rules[j].Suffix)
	})
	return h, nil
}

// DomainOf extracts the logical domain of a URL: the host, unless a
// heuristic rule matches, in which case the first captured group of the
// rule's pattern (run against the full URL) replaces it.
func (h *Heuristics) DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		return ""
	}
	if h == nil {
		return host
	}
	for _, rule := range h.rules {
		if !strings.HasSuffix(host, rule.Suffix) {
			continue
		}
		m := rule.Pattern.FindStringSubmatch(rawURL)
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return host
}

// Resolve joins a possibly relative reference against a base URL and
// returns the absolute form, or "" when either side fails to parse.
func Resolve(baseURL, ref string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return base.ResolveReference(r).String()
}
