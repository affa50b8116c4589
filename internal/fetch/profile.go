package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/linkedin"
	"github.com/spigell/sourcing-agent/internal/metrics"
)

const profileUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Accept-Encoding is left to the transport so compressed bodies are decoded transparently.
var profileHeaders = map[string]string{
	"User-Agent":                profileUserAgent,
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Cache-Control":             "max-age=0",
}

var (
	loginPathPrefixes = []string{"/login", "/authwall", "/signup", "/uas/login", "/checkpoint"}
	loginTextMarkers  = []string{"please log in", "join now to see", "sign in to continue"}

	errLoginWall = errors.New("login wall")
	errEmptyPage = errors.New("page has no text content")
)

const placeholderTemplate = `
LinkedIn Profile Information (Extracted from URL)
Username: %s
Profile URL: %s
Country/Region: %s

Note: Full LinkedIn profile content could not be accessed due to LinkedIn's security measures.
The following information was extracted from search results and the URL.

This is a placeholder for the LinkedIn profile that would normally be accessed.
The LLM should extract any relevant information from the profile URL and search snippet.
`

// Placeholder renders the text used in place of an inaccessible profile page.
func Placeholder(p linkedin.Profile) string {
	return fmt.Sprintf(placeholderTemplate, p.Username, p.URL, p.Region)
}

func (f *Fetcher) fetchProfile(ctx context.Context, url string) Result {
	text, err := f.profileText(ctx, url)
	switch {
	case err == nil:
		metrics.FetchResultsTotal.WithLabelValues("ok").Inc()
		f.logger.Info("fetched profile content", zap.String("url", url), zap.Int("chars", len(text)))
		return Result{URL: url, Text: &text}
	case errors.Is(err, errEmptyPage):
		return f.failed(url, err)
	}

	profile := linkedin.ParseProfileURL(url)
	f.logger.Warn("profile is not accessible, using placeholder",
		zap.String("url", url),
		zap.String("username", profile.Username),
		zap.String("region", profile.Region),
		zap.Error(err),
	)

	if sinkErr := f.sink.Record(ctx, AccessFailure{
		Time:     f.now(),
		URL:      url,
		Username: profile.Username,
		Region:   profile.Region,
		Reason:   err.Error(),
	}); sinkErr != nil {
		f.logger.Error("recording access failure", zap.String("url", url), zap.Error(sinkErr))
	}

	metrics.FetchResultsTotal.WithLabelValues("degraded").Inc()
	placeholder := Placeholder(profile)
	return Result{URL: url, Text: &placeholder, Degraded: true, FailureReason: err.Error()}
}

func (f *Fetcher) profileText(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.ProfileTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	for k, v := range profileHeaders {
		req.Header.Set(k, v)
	}

	resp, body, err := f.do(req)
	if err != nil {
		return "", err
	}

	if resp.Request != nil && resp.Request.URL != nil && isLoginPath(resp.Request.URL.Path) {
		return "", fmt.Errorf("%w: redirected to %s", errLoginWall, resp.Request.URL.Path)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %s", errLoginWall, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	raw := strings.ToLower(doc.Text())
	for _, marker := range loginTextMarkers {
		if strings.Contains(raw, marker) {
			return "", fmt.Errorf("%w: page asks to %q", errLoginWall, marker)
		}
	}

	text := DocumentText(doc)
	if text == "" {
		return "", errEmptyPage
	}
	return text, nil
}

// isLoginPath reports whether a final response path is one of the network's
// sign-in pages. Only the leading path segment is compared.
func isLoginPath(path string) bool {
	path = strings.ToLower(path)
	for _, prefix := range loginPathPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}
