// Package keywords holds the required/optional/excluded term triple that
// drives query construction, prescreening and scoring.
package keywords

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Clear, given as the only term of a list, empties that list on refinement.
const Clear = "-"

var (
	// ErrRequiredMissing is returned when a set has no required terms.
	ErrRequiredMissing = errors.New("required keywords are missing")
	// ErrEmpty is returned when a set has no terms at all.
	ErrEmpty = errors.New("keywords must include at least one of required, optional or excluded")
)

// Set is immutable for the duration of one sourcing round.
type Set struct {
	Required []string `json:"required" yaml:"required" mapstructure:"required"`
	Optional []string `json:"optional,omitempty" yaml:"optional" mapstructure:"optional"`
	Excluded []string `json:"excluded,omitempty" yaml:"excluded" mapstructure:"excluded"`
}

// Validate checks the set invariants. It does not modify the set.
func (s Set) Validate() error {
	required := clean(s.Required)
	if len(required) == 0 && len(clean(s.Optional)) == 0 && len(clean(s.Excluded)) == 0 {
		return ErrEmpty
	}
	if len(required) == 0 {
		return ErrRequiredMissing
	}
	return nil
}

// Normalize returns a copy with blank entries dropped and case-insensitive
// duplicates removed. The first spelling of a term is kept.
func (s Set) Normalize() Set {
	return Set{
		Required: clean(s.Required),
		Optional: clean(s.Optional),
		Excluded: clean(s.Excluded),
	}
}

// Positive returns required terms followed by optional ones, lowercased.
func (s Set) Positive() []string {
	out := make([]string, 0, len(s.Required)+len(s.Optional))
	for _, kw := range clean(append(append([]string{}, s.Required...), s.Optional...)) {
		out = append(out, strings.ToLower(kw))
	}
	return out
}

// Equal reports whether two sets carry the same terms in the same order.
func (s Set) Equal(other Set) bool {
	return equal(s.Required, other.Required) &&
		equal(s.Optional, other.Optional) &&
		equal(s.Excluded, other.Excluded)
}

func (s Set) String() string {
	return fmt.Sprintf("required=[%s] optional=[%s] excluded=[%s]",
		strings.Join(s.Required, ", "),
		strings.Join(s.Optional, ", "),
		strings.Join(s.Excluded, ", "),
	)
}

// IsClear reports whether terms is the single Clear marker.
func IsClear(terms []string) bool {
	return len(terms) == 1 && strings.TrimSpace(terms[0]) == Clear
}

// Split parses a comma separated list as typed by an operator.
func Split(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return clean(strings.Split(raw, ","))
}

// FromFile reads a set from a YAML document with required/optional/excluded keys.
func FromFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("reading keywords file %q: %w", path, err)
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return Set{}, fmt.Errorf("parsing keywords file %q: %w", path, err)
	}

	return set.Normalize(), nil
}

func clean(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, term)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
