// Package prescreen decides, from a search hit alone, whether the page is
// worth a full fetch and a model extraction. It performs no I/O.
package prescreen

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/linkedin"
	"github.com/spigell/sourcing-agent/internal/search"
)

// Reason names the rule that admitted (or rejected) a hit.
type Reason string

const (
	ProfileURLMatch Reason = "profile_url"
	VocabularyMatch Reason = "vocabulary"
	KeywordMatch    Reason = "keyword"
	None            Reason = "none"
)

// shortKeyword is the length below which keywords only match as a token prefix.
const shortKeyword = 3

// Decision is the outcome of screening one hit.
type Decision struct {
	Hit         *search.Hit
	ShouldFetch bool
	Reason      Reason
	// Matched is the term that triggered the decision. Diagnostics only.
	Matched string
}

// Screener applies the prescreen rules in priority order. It is safe for concurrent use.
type Screener struct {
	terms      []string
	termIndex  *ahocorasick.Matcher
	qualifiers []string
	qualIndex  *ahocorasick.Matcher
}

// New builds a screener. Empty vocabulary lists fall back to DefaultVocabulary.
func New(vocab Vocabulary) *Screener {
	vocab = vocab.withDefaults()

	s := &Screener{
		terms:      normalizeTerms(vocab.ProfessionalTerms),
		qualifiers: normalizeTerms(vocab.Qualifiers),
	}
	if len(s.terms) > 0 {
		s.termIndex = ahocorasick.NewStringMatcher(s.terms)
	}
	if len(s.qualifiers) > 0 {
		s.qualIndex = ahocorasick.NewStringMatcher(s.qualifiers)
	}
	return s
}

// Screen classifies a hit. The first matching rule wins.
func (s *Screener) Screen(hit *search.Hit, set keywords.Set) Decision {
	d := Decision{Hit: hit, Reason: None}
	if hit == nil {
		return d
	}

	if linkedin.IsProfileURL(hit.URL) {
		d.ShouldFetch, d.Reason, d.Matched = true, ProfileURLMatch, hit.URL
		return d
	}

	text := strings.ToLower(hit.Title + "\n\n" + hit.Snippet)

	if term, ok := firstWord(s.termIndex, s.terms, text); ok {
		d.ShouldFetch, d.Reason, d.Matched = true, VocabularyMatch, term
		return d
	}

	if term, ok := firstWord(s.qualIndex, s.qualifiers, text); ok {
		d.ShouldFetch, d.Reason, d.Matched = true, KeywordMatch, term
		return d
	}

	if kw, ok := matchKeyword(text, set.Positive()); ok {
		d.ShouldFetch, d.Reason, d.Matched = true, KeywordMatch, kw
		return d
	}

	return d
}

// firstWord returns the earliest dictionary term, in dictionary order, that
// occurs in text on word boundaries.
func firstWord(index *ahocorasick.Matcher, dict []string, text string) (string, bool) {
	if index == nil {
		return "", false
	}

	hits := index.MatchThreadSafe([]byte(text))
	sort.Ints(hits)
	for _, idx := range hits {
		if idx < len(dict) && containsWord(text, dict[idx]) {
			return dict[idx], true
		}
	}
	return "", false
}

// containsWord reports whether term occurs in text with no letter or digit
// directly before or after it.
func containsWord(text, term string) bool {
	for offset := 0; offset <= len(text)-len(term); {
		idx := strings.Index(text[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)
		if !isWordRune(lastRune(text[:start])) && !isWordRune(firstRune(text[end:])) {
			return true
		}
		offset = start + 1
	}
	return false
}

func matchKeyword(text string, kws []string) (string, bool) {
	tokens := strings.Fields(text)
	for _, kw := range kws {
		if len(kw) >= shortKeyword && strings.Contains(text, kw) {
			return kw, true
		}
		for _, token := range tokens {
			if !strings.HasPrefix(token, kw) {
				continue
			}
			if !unicode.IsLetter(firstRune(token[len(kw):])) {
				return kw, true
			}
		}
	}
	return "", false
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}
