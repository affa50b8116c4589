package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSpan(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "plain object", input: `{"a":1}`, want: `{"a":1}`, wantOK: true},
		{name: "surrounding prose", input: "Sure! Here it is:\n{\"a\":1}\nThanks", want: `{"a":1}`, wantOK: true},
		{name: "nested", input: `x {"a":{"b":2}} {"c":3}`, want: `{"a":{"b":2}}`, wantOK: true},
		{name: "brace in string", input: `{"a":"}{"}`, want: `{"a":"}{"}`, wantOK: true},
		{name: "escaped quote", input: `{"a":"say \"}\" now"} tail`, want: `{"a":"say \"}\" now"}`, wantOK: true},
		{name: "markdown fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`, wantOK: true},
		{name: "no object", input: "I cannot help with that.", wantOK: false},
		{name: "unbalanced", input: `{"a":1`, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := jsonSpan(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("weak types and skills", func(t *testing.T) {
		resp := `Result: {"full_name":"Jane Doe","email":"","phone":null,` +
			`"skills":"Python, AWS, Not found","years_of_experience":7,` +
			`"education":["BSc CS","MSc AI"],"current_role":"Engineer"}`

		fields, err := ParseResponse(resp)
		require.NoError(t, err)

		assert.Equal(t, "Jane Doe", fields.FullName)
		assert.Equal(t, NotFound, fields.Email)
		assert.Equal(t, NotFound, fields.Phone)
		assert.Equal(t, []string{"python", "aws"}, fields.Skills)
		assert.Equal(t, "7", fields.YearsOfExperience)
		assert.Equal(t, "BSc CS, MSc AI", fields.Education)
		assert.Equal(t, NotFound, fields.CurrentCompany)
		assert.True(t, fields.HasName())
		assert.True(t, fields.HasSkills())
		assert.False(t, fields.Failed())
	})

	t.Run("skills as objects", func(t *testing.T) {
		fields, err := ParseResponse(`{"skills":[{"name":"Go"},"Docker"]}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"go", "docker"}, fields.Skills)
		assert.False(t, fields.HasName())
	})

	t.Run("no skills key", func(t *testing.T) {
		fields, err := ParseResponse(`{"full_name":"Not found"}`)
		require.NoError(t, err)
		assert.NotNil(t, fields.Skills)
		assert.Empty(t, fields.Skills)
		assert.False(t, fields.HasSkills())
	})

	t.Run("no json", func(t *testing.T) {
		long := strings.Repeat("a", 300)
		_, err := ParseResponse(long)

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "failed to extract valid JSON response", err.Error())
		assert.Equal(t, strings.Repeat("a", 200)+"...", perr.Excerpt)
	})

	t.Run("short response excerpt has no ellipsis", func(t *testing.T) {
		_, err := ParseResponse("nope")

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "nope", perr.Excerpt)
	})

	t.Run("invalid json inside span", func(t *testing.T) {
		_, err := ParseResponse(`{"full_name": Jane}`)

		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Contains(t, err.Error(), "invalid JSON")
		assert.Equal(t, `{"full_name": Jane}`, perr.Excerpt)
	})
}
