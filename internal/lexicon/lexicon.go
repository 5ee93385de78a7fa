// Package lexicon turns land terms into lemmas and scores expressions
// against a land's lexicon.
//
// Stemming uses the Snowball family keyed by the land's primary language.
// Languages without a Snowball stemmer fall back to a no-op stemmer, so
// scoring degrades to exact whole-word matching.
package lexicon

import (
	"regexp"
	"strings"

	"github.com/kljensen/snowball"
)

// snowballLanguages maps BCP-47 primary subtags to Snowball language names.
var snowballLanguages = map[string]string{
	"en": "english",
	"fr": "french",
	"es": "spanish",
	"ru": "russian",
	"sv": "swedish",
	"no": "norwegian",
	"hu": "hungarian",
}

// wordPattern extracts maximal runs of letters, including Latin-1
// diacritics. It is the tokenizer for both terms and page text.
var wordPattern = regexp.MustCompile(`[a-zA-ZÀ-ÖØ-öø-ÿ]+`)

// Stemmer stems tokens for a single language.
type Stemmer struct {
	language string // Snowball name, "" for the no-op fallback
}

// NewStemmer returns a stemmer for a BCP-47 language code ("fr",
// "fr-FR", ...). Unsupported languages get a no-op stemmer.
func NewStemmer(lang string) *Stemmer {
	code := strings.ToLower(lang)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return &Stemmer{language: snowballLanguages[code]}
}

// Stem returns the stem of a single lowercase token.
func (s *Stemmer) Stem(token string) string {
	token = strings.ToLower(token)
	if s.language == "" {
		return token
	}
	stemmed, err := snowball.Stem(token, s.language, false)
	if err != nil {
		return token
	}
	return stemmed
}

// Lemmatize stems every whitespace-separated token of a term and joins the
// stems with single spaces. This is the lemma stored next to each term.
func (s *Stemmer) Lemmatize(term string) string {
	fields := strings.Fields(term)
	stems := make([]string, 0, len(fields))
	for _, f := range fields {
		stems = append(stems, s.Stem(f))
	}
	return strings.Join(stems, " ")
}

// Tokenize extracts lowercase word tokens from free text.
func Tokenize(text string) []string {
	tokens := wordPattern.FindAllString(text, -1)
	for i, tok := range tokens {
		tokens[i] = strings.ToLower(tok)
	}
	return tokens
}

// SplitTerms splits a comma-separated term list, trimming whitespace and
// dropping empties.
func SplitTerms(csv string) []string {
	var terms []string
	for _, part := range strings.Split(csv, ",") {
		if t := strings.TrimSpace(part); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// Lexicon is a compiled set of lemmas ready for scoring. Safe for
// concurrent use once built.
type Lexicon struct {
	stemmer *Stemmer
	lemmas  []string
}

// New compiles a lexicon from stored lemmas for the given language.
func New(lemmas []string, lang string) *Lexicon {
	lx := &Lexicon{stemmer: NewStemmer(lang)}
	for _, lemma := range lemmas {
		lemma = strings.TrimSpace(strings.ToLower(lemma))
		if lemma == "" {
			continue
		}
		lx.lemmas = append(lx.lemmas, lemma)
	}
	return lx
}

// stemText tokenizes free text, stems every token and joins the stems with
// single spaces, producing the text lemma matches run against.
func (lx *Lexicon) stemText(text string) string {
	tokens := Tokenize(text)
	for i, tok := range tokens {
		tokens[i] = lx.stemmer.Stem(tok)
	}
	return strings.Join(tokens, " ")
}

// Title and body hit weights.
const (
	titleWeight = 10
	bodyWeight  = 1
)

// Score counts weighted whole-lemma hits in the title and readable body:
// 10 per title hit, 1 per body hit. An empty lexicon scores 0.
func (lx *Lexicon) Score(title, readable string) int {
	if len(lx.lemmas) == 0 {
		return 0
	}

	stemmedTitle := lx.stemText(title)
	stemmedBody := lx.stemText(readable)

	score := 0
	for _, lemma := range lx.lemmas {
		score += titleWeight * countHits(stemmedTitle, lemma)
		score += bodyWeight * countHits(stemmedBody, lemma)
	}
	return score
}

// countHits counts whole-word occurrences of a (possibly multi-word) lemma
// in a space-joined stem stream. RE2's \b is ASCII-only, so word boundaries
// are made explicit by padding with spaces; adjacent hits share their
// delimiting space.
func countHits(stemmed, lemma string) int {
	if stemmed == "" {
		return 0
	}
	padded := " " + stemmed + " "
	needle := " " + lemma + " "

	count := 0
	for i := 0; ; {
		j := strings.Index(padded[i:], needle)
		if j < 0 {
			break
		}
		count++
		// Land on the trailing space so it can open the next match.
		i += j + len(needle) - 1
	}
	return count
}

// Size returns the number of lemmas in the lexicon.
func (lx *Lexicon) Size() int {
	return len(lx.lemmas)
}
