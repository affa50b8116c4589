package ai

import (
	"strings"
	"unicode/utf8"
)

const (
	// CharsPerToken is the rough character count of one model token.
	CharsPerToken = 3
	// TruncatedMarker is appended to content cut to fit a budget.
	TruncatedMarker = "[Content truncated]"

	sectionTail = 5
)

var skillHeadings = []string{
	"skills", "technical skills", "technologies", "programming languages",
	"certifications", "qualifications", "expertise", "competencies",
}

// Truncate fits content into tokens*CharsPerToken characters. Lines
// mentioning a skills heading, and the five lines after each, are kept first
// in their original order; other lines fill the remaining budget from the top.
func Truncate(content string, tokens int) string {
	limit := tokens * CharsPerToken
	if limit <= 0 || utf8.RuneCountInString(content) <= limit {
		return content
	}

	lines := strings.Split(content, "\n")
	priority := make([]bool, len(lines))
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, heading := range skillHeadings {
			if strings.Contains(lower, heading) {
				for j := i; j <= i+sectionTail && j < len(lines); j++ {
					priority[j] = true
				}
				break
			}
		}
	}

	var kept, rest []string
	for i, line := range lines {
		if priority[i] {
			kept = append(kept, line)
		} else {
			rest = append(rest, line)
		}
	}

	prioritized := strings.Join(kept, "\n")
	remaining := limit - utf8.RuneCountInString(prioritized)

	var result string
	switch {
	case remaining <= 0:
		result = cutRunes(prioritized, limit)
	case prioritized == "":
		result = cutRunes(strings.Join(rest, "\n"), limit)
	default:
		result = prioritized + "\n\n" + cutRunes(strings.Join(rest, "\n"), remaining)
	}

	return result + "\n\n" + TruncatedMarker
}

func cutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
