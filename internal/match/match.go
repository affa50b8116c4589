// Package match scores extracted skills against a keyword set.
package match

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/sourcing-agent/internal/keywords"
)

const notFound = "not found"

// Result holds the keywords a candidate matched and the derived score.
type Result struct {
	Required []string
	Optional []string
	Score    float64
}

// Normalize turns whatever a model returned for skills into a clean lowercase
// list. It accepts string slices, generic slices, JSON array strings and comma
// separated strings. Blank entries and the "Not found" sentinel are dropped.
func Normalize(skills any) []string {
	switch v := skills.(type) {
	case nil:
		return nil
	case []string:
		return clean(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case nil:
			case string:
				out = append(out, s)
			case map[string]any:
				if name, ok := s["name"].(string); ok {
					out = append(out, name)
				}
			default:
				out = append(out, fmt.Sprint(s))
			}
		}
		return clean(out)
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, notFound) {
			return nil
		}
		if strings.HasPrefix(s, "[") {
			var list []any
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				return Normalize(list)
			}
		}
		return clean(strings.Split(s, ","))
	default:
		return clean([]string{fmt.Sprint(v)})
	}
}

// Score counts required and optional keywords contained, case-insensitively,
// in any of the skills. Each required match is worth 1 and each optional 0.5.
// Matched keywords are returned lowercased in the order of the set.
func Score(skills []string, set keywords.Set) Result {
	lowered := make([]string, 0, len(skills))
	for _, skill := range skills {
		lowered = append(lowered, strings.ToLower(skill))
	}

	set = set.Normalize()
	res := Result{
		Required: matched(lowered, set.Required),
		Optional: matched(lowered, set.Optional),
	}
	res.Score = float64(len(res.Required)) + 0.5*float64(len(res.Optional))
	return res
}

func matched(skills, kws []string) []string {
	out := []string{}
	for _, kw := range kws {
		kw = strings.ToLower(kw)
		for _, skill := range skills {
			if strings.Contains(skill, kw) {
				out = append(out, kw)
				break
			}
		}
	}
	return out
}

func clean(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" || item == notFound {
			continue
		}
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
