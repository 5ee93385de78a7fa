package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MediaKind classifies embedded media references.
type MediaKind string

const (
	MediaImage MediaKind = "img"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// MediaRef is a media reference discovered on a page. URL may be relative;
// the graph writer resolves it against the owning expression.
type MediaRef struct {
	URL  string
	Kind MediaKind
}

var (
	// [text](http://...) plain markdown links; the crawlability filter
	// downstream weeds out image and document targets.
	markdownLinkPattern = regexp.MustCompile(`\[[^\]]*\]\((https?://[^)\s]+)(?:\s+"[^"]*")?\)`)

	// ![alt](url "title")
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)

	// [VIDEO: url] / [AUDIO: url] markers appended by the extractor.
	markerPattern = regexp.MustCompile(`\[(VIDEO|AUDIO): ([^\]\s]+)\]`)

	// Any parenthesized absolute URL; stage 2 discovery uses this wider
	// net and lets IsCrawlable discard non-page targets.
	parenURLPattern = regexp.MustCompile(`\((https?://[^)\s]+)\)`)
)

// MediaMarker renders the inline marker for a media reference.
func MediaMarker(ref MediaRef) string {
	switch ref.Kind {
	case MediaImage:
		return fmt.Sprintf("![IMAGE](%s)", ref.URL)
	case MediaVideo:
		return fmt.Sprintf("[VIDEO: %s]", ref.URL)
	case MediaAudio:
		return fmt.Sprintf("[AUDIO: %s]", ref.URL)
	}
	return ""
}

// CollectMediaRefs finds <img>, <video> and <audio> src attributes in a
// parsed document.
func CollectMediaRefs(doc *goquery.Document) []MediaRef {
	var refs []MediaRef
	appendSrc := func(kind MediaKind) func(int, *goquery.Selection) {
		return func(_ int, s *goquery.Selection) {
			src, ok := s.Attr("src")
			if !ok || strings.TrimSpace(src) == "" {
				return
			}
			refs = append(refs, MediaRef{URL: strings.TrimSpace(src), Kind: kind})
		}
	}
	doc.Find("img[src]").Each(appendSrc(MediaImage))
	doc.Find("video[src], video source[src]").Each(appendSrc(MediaVideo))
	doc.Find("audio[src], audio source[src]").Each(appendSrc(MediaAudio))
	return refs
}

// AppendMediaMarkers appends one marker line per media reference to a
// markdown body.
func AppendMediaMarkers(markdown string, refs []MediaRef) string {
	if len(refs) == 0 {
		return markdown
	}
	var sb strings.Builder
	sb.WriteString(markdown)
	for _, ref := range refs {
		marker := MediaMarker(ref)
		if marker == "" {
			continue
		}
		sb.WriteString("\n")
		sb.WriteString(marker)
	}
	return sb.String()
}

// ParenURLs extracts every parenthesized absolute URL from markdown text,
// deduplicated in encounter order.
func ParenURLs(markdown string) []string {
	return dedup(matchGroup(parenURLPattern, markdown, 1))
}

// MarkdownLinks extracts [text](url) targets, skipping image syntax,
// deduplicated in encounter order.
func MarkdownLinks(markdown string) []string {
	var urls []string
	for _, m := range markdownLinkPattern.FindAllStringSubmatchIndex(markdown, -1) {
		// Reject when the opening bracket is image syntax.
		if m[0] > 0 && markdown[m[0]-1] == '!' {
			continue
		}
		urls = append(urls, markdown[m[2]:m[3]])
	}
	return dedup(urls)
}

// MarkdownMedia extracts media references from markdown: image syntax plus
// the bracketed VIDEO/AUDIO markers.
func MarkdownMedia(markdown string) []MediaRef {
	var refs []MediaRef
	for _, u := range matchGroup(markdownImagePattern, markdown, 1) {
		refs = append(refs, MediaRef{URL: u, Kind: MediaImage})
	}
	for _, m := range markerPattern.FindAllStringSubmatch(markdown, -1) {
		kind := MediaVideo
		if m[1] == "AUDIO" {
			kind = MediaAudio
		}
		refs = append(refs, MediaRef{URL: m[2], Kind: kind})
	}
	return refs
}

func matchGroup(re *regexp.Regexp, text string, group int) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[group])
	}
	return out
}

func dedup(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	var out []string
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
