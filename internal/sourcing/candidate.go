package sourcing

import (
	"strings"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/linkedin"
	"github.com/spigell/sourcing-agent/internal/match"
	"github.com/spigell/sourcing-agent/internal/prescreen"
	"github.com/spigell/sourcing-agent/internal/search"
)

const accessErrorMessage = "Could not access full profile"

// Candidate is one scored record in the round output.
type Candidate struct {
	ai.ExtractedFields

	MatchedRequired []string         `json:"matched_must_have"`
	MatchedOptional []string         `json:"matched_should_have"`
	MatchScore      float64          `json:"match_score"`
	Degraded        bool             `json:"degraded,omitempty"`
	AccessError     string           `json:"access_error,omitempty"`
	PrescreenReason prescreen.Reason `json:"prescreen_reason,omitempty"`
}

// Apply lowercases the candidate skills and scores them against set.
func (c *Candidate) Apply(set keywords.Set) {
	c.Skills = match.Normalize(c.Skills)
	if c.Skills == nil {
		c.Skills = []string{}
	}

	res := match.Score(c.Skills, set)
	c.MatchedRequired = res.Required
	c.MatchedOptional = res.Optional
	c.MatchScore = res.Score
}

// MatchedSkills returns required matches followed by optional ones.
func (c *Candidate) MatchedSkills() []string {
	out := make([]string, 0, len(c.MatchedRequired)+len(c.MatchedOptional))
	out = append(out, c.MatchedRequired...)
	return append(out, c.MatchedOptional...)
}

// Name returns the display name or "Unknown".
func (c *Candidate) Name() string {
	if c.HasName() {
		return c.FullName
	}
	return "Unknown"
}

// fillFromHit fills a missing name and missing skills of a profile network
// record from the search hit itself.
func fillFromHit(fields *ai.ExtractedFields, hit *search.Hit, set keywords.Set) {
	if !fields.HasName() {
		if name := linkedin.NameFromTitle(hit.Title); name != "" {
			fields.FullName = name
		}
	}
	if !fields.HasSkills() {
		if skills := keywordsIn(hit, set); len(skills) > 0 {
			fields.Skills = skills
		}
	}
}

// keywordsIn returns the positive keywords literally present in the hit title or snippet.
func keywordsIn(hit *search.Hit, set keywords.Set) []string {
	snippet := strings.ToLower(hit.Snippet)
	title := strings.ToLower(hit.Title)

	var found []string
	for _, kw := range set.Positive() {
		if strings.Contains(snippet, kw) || strings.Contains(title, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// minimalProfile is recorded for a profile URL that produced no text at all.
func minimalProfile(hit *search.Hit, set keywords.Set) *Candidate {
	fields := ai.Empty()
	fields.SourceURL = hit.URL
	fields.Snippet = hit.Snippet
	fillFromHit(fields, hit, set)

	return &Candidate{
		ExtractedFields: *fields,
		Degraded:        true,
		AccessError:     accessErrorMessage,
	}
}
