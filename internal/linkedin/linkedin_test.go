package linkedin

import "testing"

func TestIsProfileURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://www.linkedin.com/in/jane-doe", true},
		{"https://de.linkedin.com/in/jane-doe/", true},
		{"https://linkedin.com/pub/john-smith/1/2/3", true},
		{"https://www.linkedin.com/company/acme", false},
		{"https://notlinkedin.com/in/jane", false},
		{"https://example.com/in/jane", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			if got := IsProfileURL(tt.url); got != tt.want {
				t.Fatalf("IsProfileURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseProfileURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		username string
		region   string
	}{
		{"https://de.linkedin.com/in/jane-doe?trk=abc", "jane-doe", "de"},
		{"https://www.linkedin.com/in/john-smith/", "john-smith", GlobalRegion},
		{"https://linkedin.com/pub/someone", "someone", GlobalRegion},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			p := ParseProfileURL(tt.url)
			if p.Username != tt.username {
				t.Fatalf("username: got %q, want %q", p.Username, tt.username)
			}
			if p.Region != tt.region {
				t.Fatalf("region: got %q, want %q", p.Region, tt.region)
			}
		})
	}
}

func TestNameFromTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  string
	}{
		{"Jane Doe - Senior Engineer - Acme | LinkedIn", "Jane Doe"},
		{"John Smith | Data Scientist", "John Smith"},
		{"Max Mustermann|LinkedIn", "Max Mustermann"},
		{"Plain Name", "Plain Name"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			t.Parallel()
			if got := NameFromTitle(tt.title); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}
