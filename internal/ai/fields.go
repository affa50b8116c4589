package ai

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/sourcing-agent/internal/match"
)

// NotFound marks a field the model could not find in the content.
const NotFound = "Not found"

// ExtractedFields is the structured result of one extraction.
type ExtractedFields struct {
	FullName          string   `json:"full_name" mapstructure:"full_name"`
	Email             string   `json:"email" mapstructure:"email"`
	Phone             string   `json:"phone" mapstructure:"phone"`
	ProfileURL        string   `json:"profile_url" mapstructure:"profile_url"`
	Skills            []string `json:"skills" mapstructure:"skills"`
	CurrentCompany    string   `json:"current_company" mapstructure:"current_company"`
	CurrentRole       string   `json:"current_role" mapstructure:"current_role"`
	YearsOfExperience string   `json:"years_of_experience" mapstructure:"years_of_experience"`
	Education         string   `json:"education" mapstructure:"education"`

	SourceURL   string `json:"source_url" mapstructure:"-"`
	Snippet     string `json:"snippet" mapstructure:"-"`
	Error       string `json:"error,omitempty" mapstructure:"-"`
	RawResponse string `json:"raw_response,omitempty" mapstructure:"-"`
	Provider    string `json:"provider,omitempty" mapstructure:"-"`
}

// HasName reports whether a real name was extracted.
func (f *ExtractedFields) HasName() bool {
	return found(f.FullName)
}

// HasSkills reports whether at least one skill was extracted.
func (f *ExtractedFields) HasSkills() bool {
	return len(f.Skills) > 0
}

// Failed reports whether the extraction produced an error instead of fields.
func (f *ExtractedFields) Failed() bool {
	return f.Error != ""
}

// fillNotFound replaces blank scalar fields with NotFound and nil skills with an empty list.
func (f *ExtractedFields) fillNotFound() {
	for _, field := range []*string{
		&f.FullName, &f.Email, &f.Phone, &f.ProfileURL,
		&f.CurrentCompany, &f.CurrentRole, &f.YearsOfExperience, &f.Education,
	} {
		if !found(*field) {
			*field = NotFound
		} else {
			*field = strings.TrimSpace(*field)
		}
	}
	if f.Skills == nil {
		f.Skills = []string{}
	}
}

func found(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, NotFound)
}

// Empty returns a record with every field set to NotFound.
func Empty() *ExtractedFields {
	f := &ExtractedFields{}
	f.fillNotFound()
	return f
}

// Failure builds an error record with every field set to NotFound.
func Failure(provider, message, raw string) *ExtractedFields {
	f := &ExtractedFields{Provider: provider, Error: message, RawResponse: raw}
	f.fillNotFound()
	return f
}

// DecodeFields turns a decoded JSON object into ExtractedFields. Numbers and
// booleans become strings, lists become comma separated strings and skills go
// through match.Normalize.
func DecodeFields(data map[string]any) (*ExtractedFields, error) {
	var fields ExtractedFields

	cfg := &mapstructure.DecoderConfig{
		Result:           &fields,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			skillsHook,
			stringHook,
		),
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode extracted fields: %w", err)
	}

	fields.fillNotFound()
	return &fields, nil
}

var stringSliceType = reflect.TypeOf([]string{})

func skillsHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != stringSliceType {
		return data, nil
	}
	return match.Normalize(data), nil
}

func stringHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.String {
		return data, nil
	}

	switch v := data.(type) {
	case nil:
		return "", nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := scalarString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), nil
	case map[string]any:
		return scalarString(v), nil
	default:
		return data, nil
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64, bool, int:
		return fmt.Sprint(val)
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(raw)
	}
}
