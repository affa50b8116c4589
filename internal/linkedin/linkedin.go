// Package linkedin knows the URL and title conventions of the profile network.
package linkedin

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// GlobalRegion is used when the host carries no country label.
	GlobalRegion = "Global"
	host         = "linkedin.com"
)

var profilePattern = regexp.MustCompile(`(^|[./])linkedin\.com/(in|pub)/`)

// IsProfileURL reports whether the URL points at a member profile page.
func IsProfileURL(raw string) bool {
	return profilePattern.MatchString(strings.ToLower(raw))
}

// IsNetworkURL reports whether the URL belongs to the profile network at all.
func IsNetworkURL(raw string) bool {
	return strings.Contains(strings.ToLower(raw), host)
}

// Profile is the structural information recoverable from a profile URL.
type Profile struct {
	URL      string
	Username string
	Region   string
}

// ParseProfileURL extracts the username and country/region from the URL.
// The username is the segment after /in/ or, failing that, the last path segment.
func ParseProfileURL(raw string) Profile {
	p := Profile{URL: raw, Region: GlobalRegion}

	withoutQuery := raw
	if idx := strings.IndexAny(withoutQuery, "?#"); idx >= 0 {
		withoutQuery = withoutQuery[:idx]
	}

	if idx := strings.Index(withoutQuery, "/in/"); idx >= 0 {
		rest := withoutQuery[idx+len("/in/"):]
		p.Username = strings.SplitN(rest, "/", 2)[0]
	} else {
		segments := strings.Split(strings.TrimRight(withoutQuery, "/"), "/")
		p.Username = segments[len(segments)-1]
	}

	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		label := strings.ToLower(strings.SplitN(u.Hostname(), ".", 2)[0])
		if label != "" && label != "www" && label != "linkedin" {
			p.Region = label
		}
	}

	return p
}

// NameFromTitle derives a display name from a search result title such as
// "Jane Doe - Senior Engineer - Acme | LinkedIn".
func NameFromTitle(title string) string {
	name := strings.TrimSpace(title)
	name, _, _ = strings.Cut(name, " - ")
	name, _, _ = strings.Cut(name, " | ")

	if strings.Contains(strings.ToLower(name), "linkedin") {
		name = strings.SplitN(name, "|", 2)[0]
	}

	return strings.TrimSpace(name)
}
