package search

import (
	"fmt"
	"strings"

	"github.com/spigell/sourcing-agent/internal/keywords"
)

var (
	// DefaultProfileTerms are OR-ed together to bias results towards people pages.
	DefaultProfileTerms = []string{"resume", "CV", "profile", "work experience", "LinkedIn"}
	// DefaultNegativeTerms filter out job postings.
	DefaultNegativeTerms = []string{"job", "jobs"}
)

// QueryOptions tunes the fixed parts of the query. Empty fields fall back to defaults.
type QueryOptions struct {
	ProfileTerms  []string `mapstructure:"profile-terms"`
	NegativeTerms []string `mapstructure:"negative-terms"`
}

func (o QueryOptions) profileTerms() []string {
	if len(o.ProfileTerms) == 0 {
		return DefaultProfileTerms
	}
	return o.ProfileTerms
}

func (o QueryOptions) negativeTerms() []string {
	if len(o.NegativeTerms) == 0 {
		return DefaultNegativeTerms
	}
	return o.NegativeTerms
}

// BuildQuery turns a keyword set into a boolean search-engine query.
// Optional terms are included only for the expanded variant.
func BuildQuery(set keywords.Set, location string, expanded bool, opts QueryOptions) string {
	parts := make([]string, 0, len(set.Required)+len(set.Optional)+len(set.Excluded)+4)

	for _, kw := range set.Required {
		parts = append(parts, quote(kw))
	}

	if location = strings.TrimSpace(location); location != "" {
		parts = append(parts, quote(location))
	}

	if expanded {
		for _, kw := range set.Optional {
			parts = append(parts, quote(kw))
		}
	}

	for _, kw := range set.Excluded {
		parts = append(parts, "-"+quote(kw))
	}

	profile := make([]string, 0, len(opts.profileTerms()))
	for _, term := range opts.profileTerms() {
		profile = append(profile, quote(term))
	}
	parts = append(parts, fmt.Sprintf("(%s)", strings.Join(profile, " OR ")))

	for _, term := range opts.negativeTerms() {
		parts = append(parts, "-"+quote(term))
	}

	return strings.Join(parts, " ")
}

func quote(term string) string {
	term = strings.TrimSpace(term)
	term = strings.ReplaceAll(term, `"`, "")
	return `"` + term + `"`
}
