package ai

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spigell/sourcing-agent/internal/utils"
)

const excerptLimit = 200

var errNoJSON = errors.New("failed to extract valid JSON response")

// ParseError is returned when a model response holds no usable JSON object.
type ParseError struct {
	Err     error
	Excerpt string
}

func (e *ParseError) Error() string {
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseResponse extracts the first balanced JSON object from a model response
// and decodes it into fields.
func ParseResponse(response string) (*ExtractedFields, error) {
	span, ok := jsonSpan(response)
	if !ok {
		return nil, &ParseError{Err: errNoJSON, Excerpt: excerpt(response)}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(span), &data); err != nil {
		return nil, &ParseError{Err: fmt.Errorf("invalid JSON in response: %w", err), Excerpt: excerpt(span)}
	}

	return DecodeFields(data)
}

// jsonSpan finds the first '{' and the brace that closes it, skipping braces
// inside string literals.
func jsonSpan(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func excerpt(s string) string {
	out := utils.Excerpt(s, excerptLimit)
	if len(out) < len(s) {
		out += "..."
	}
	return out
}
