package sourcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/ai/provider"
	"github.com/spigell/sourcing-agent/internal/fetch"
	"github.com/spigell/sourcing-agent/internal/filtering"
	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/prescreen"
	"github.com/spigell/sourcing-agent/internal/search"
)

type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	clone.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

type fakeSearcher struct {
	mu    sync.Mutex
	hits  []*search.Hit
	err   error
	calls []search.Request
}

func (f *fakeSearcher) Execute(_ context.Context, req search.Request) (*search.Hits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	items := make([]*search.Hit, 0, len(f.hits))
	for _, h := range f.hits {
		copied := *h
		items = append(items, &copied)
	}
	return &search.Hits{Items: items}, nil
}

type fakeExtractor struct {
	name     string
	probeErr error

	mu       sync.Mutex
	contents []string
	extract  func(content string) *ai.ExtractedFields
}

func (f *fakeExtractor) ParseCandidateData(_ context.Context, content string, _ keywords.Set) *ai.ExtractedFields {
	f.mu.Lock()
	f.contents = append(f.contents, content)
	f.mu.Unlock()

	var fields *ai.ExtractedFields
	if f.extract != nil {
		fields = f.extract(content)
	} else {
		fields = ai.Empty()
	}
	fields.Provider = f.name
	return fields
}

func (f *fakeExtractor) Provider() string { return f.name }

func (f *fakeExtractor) Probe(context.Context) error { return f.probeErr }

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.contents)
}

type countingFetcher struct {
	mu    sync.Mutex
	inner Fetcher
	urls  []string
}

func (f *countingFetcher) Fetch(ctx context.Context, u string) fetch.Result {
	f.mu.Lock()
	f.urls = append(f.urls, u)
	f.mu.Unlock()
	return f.inner.Fetch(ctx, u)
}

func newFetcher(t *testing.T, handler http.Handler, sink fetch.AccessFailureSink) *countingFetcher {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	f := fetch.New(fetch.Options{}, sink, nil, zap.NewNop())
	f.HTTPClient = &http.Client{Transport: rewriteTransport{target: target}}
	return &countingFetcher{inner: f}
}

func extracted(name string, skills ...string) *ai.ExtractedFields {
	f := ai.Empty()
	if name != "" {
		f.FullName = name
	}
	if len(skills) > 0 {
		f.Skills = skills
	}
	return f
}

var pythonSet = keywords.Set{Required: []string{"Python"}, Optional: []string{"AWS"}}

func newController(searcher Searcher, fetcher Fetcher, extractor ai.Extractor, deps func(*Deps)) *Controller {
	d := Deps{
		Searcher:  searcher,
		Screener:  prescreen.New(prescreen.DefaultVocabulary()),
		Fetcher:   fetcher,
		Extractor: extractor,
		Logger:    zap.NewNop(),
	}
	if deps != nil {
		deps(&d)
	}
	return New(d, DefaultOptions())
}

func TestRunLoginWallProducesSingleDegradedRecord(t *testing.T) {
	dir := t.TempDir()
	accessLog := filepath.Join(dir, "linkedin_access_failures.log")
	sink, err := fetch.NewFileSink(accessLog, zap.NewNop())
	require.NoError(t, err)

	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(999)
	}), sink)

	profileURL := "https://www.linkedin.com/in/jane-doe"
	searcher := &fakeSearcher{hits: []*search.Hit{{
		URL:     profileURL,
		Title:   "Jane Doe - Python Developer | LinkedIn",
		Snippet: "Backend engineer working with Python and AWS.",
	}}}
	extractor := &fakeExtractor{name: "ollama"}

	ctrl := newController(searcher, fetcher, extractor, nil)
	res, err := ctrl.Run(context.Background(), Request{
		Keywords:   keywords.Set{Required: []string{"python", "aws"}},
		Location:   "Berlin",
		MinResults: 10,
	})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	cand := res.Candidates[0]
	assert.Equal(t, "Jane Doe", cand.FullName)
	assert.True(t, cand.Degraded)
	assert.Equal(t, profileURL, cand.SourceURL)
	assert.Equal(t, []string{"python", "aws"}, cand.Skills)
	assert.Equal(t, 2.0, cand.MatchScore)
	assert.Equal(t, prescreen.ProfileURLMatch, cand.PrescreenReason)

	require.Equal(t, 1, extractor.calls())
	assert.Contains(t, extractor.contents[0], "Username: jane-doe")
	assert.Contains(t, extractor.contents[0], "SEARCH SNIPPET: Jane Doe - Python Developer | LinkedIn")

	data, err := os.ReadFile(accessLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], profileURL+" | jane-doe | Global")

	assert.Equal(t, []Stage{StageSearching, StagePrescreening, StageExtracting, StageScoring, StageRanked}, res.Stages)
}

func TestRunDuplicateURLsYieldOneRecord(t *testing.T) {
	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><h1>John Smith</h1><p>Senior Python engineer</p></body></html>`))
	}), nil)

	hit := &search.Hit{URL: "https://example.com/john", Title: "John Smith resume", Snippet: "Senior Python engineer"}
	searcher := &fakeSearcher{hits: []*search.Hit{hit, hit, hit}}
	extractor := &fakeExtractor{name: "ollama", extract: func(string) *ai.ExtractedFields {
		return extracted("John Smith", "Python")
	}}

	res, err := newController(searcher, fetcher, extractor, nil).Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "John Smith", res.Candidates[0].FullName)
	assert.Equal(t, 1, extractor.calls())
	assert.Len(t, fetcher.urls, 1)
	assert.Equal(t, 3, res.Hits)
}

func TestRunUsesOnlyFallbackProvider(t *testing.T) {
	primary := &fakeExtractor{name: "ollama", probeErr: errors.New("connection refused")}
	fallback := &fakeExtractor{name: "openai", extract: func(string) *ai.ExtractedFields {
		return extracted("Ana Lima", "Python")
	}}

	build := func(_ context.Context, name string, _ provider.Config, _ *zap.Logger) (ai.Extractor, error) {
		if name == "openai" {
			return fallback, nil
		}
		return primary, nil
	}
	sel, err := provider.NewSelector(build, zap.NewNop()).Select(context.Background(), provider.Config{Provider: "ollama", Fallback: "openai"})
	require.NoError(t, err)
	require.True(t, sel.Fallback)

	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Python developer profile</p></body></html>`))
	}), nil)
	searcher := &fakeSearcher{hits: []*search.Hit{
		{URL: "https://example.com/a", Title: "Ana Lima", Snippet: "Python developer"},
		{URL: "https://example.com/b", Title: "Bruno Costa", Snippet: "Python developer"},
	}}

	res, err := newController(searcher, fetcher, sel.Extractor, nil).Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 2)
	for _, cand := range res.Candidates {
		assert.Equal(t, "openai", cand.Provider)
	}
	assert.Equal(t, "openai", res.Provider)
	assert.Zero(t, primary.calls())
	assert.Equal(t, 2, fallback.calls())
}

func TestRunRejectsMissingRequiredBeforeNetwork(t *testing.T) {
	searcher := &fakeSearcher{}
	fetcher := &countingFetcher{inner: fetch.New(fetch.Options{}, nil, nil, zap.NewNop())}
	extractor := &fakeExtractor{name: "ollama"}

	_, err := newController(searcher, fetcher, extractor, nil).Run(context.Background(), Request{
		Keywords: keywords.Set{Optional: []string{"AWS"}},
	})

	assert.ErrorIs(t, err, keywords.ErrRequiredMissing)
	assert.Empty(t, searcher.calls)
	assert.Empty(t, fetcher.urls)
	assert.Zero(t, extractor.calls())
}

func TestRunSearchCredentialsErrorIsFatal(t *testing.T) {
	searcher := &fakeSearcher{err: fmt.Errorf("search: %w", search.ErrUnauthorized)}

	_, err := newController(searcher, &countingFetcher{}, &fakeExtractor{name: "ollama"}, nil).Run(context.Background(), Request{Keywords: pythonSet})
	assert.ErrorIs(t, err, search.ErrUnauthorized)
}

func TestRunNoResults(t *testing.T) {
	res, err := newController(&fakeSearcher{}, &countingFetcher{}, &fakeExtractor{name: "ollama"}, nil).Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)
	assert.Zero(t, res.Hits)
	assert.Empty(t, res.Candidates)
}

func TestRunRanksAndRecordsDiagnostics(t *testing.T) {
	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			http.NotFound(w, r)
		default:
			_, _ = fmt.Fprintf(w, "<html><body><p>%s</p></body></html>", r.URL.Path)
		}
	}), nil)

	searcher := &fakeSearcher{hits: []*search.Hit{
		{URL: "https://example.com/low", Title: "Low resume", Snippet: "Python"},
		{URL: "https://example.com/gone", Title: "Gone resume", Snippet: "Python"},
		{URL: "https://example.com/high", Title: "High resume", Snippet: "Python"},
		{URL: "https://example.com/empty", Title: "Empty resume", Snippet: "Python"},
		{URL: "https://example.com/irrelevant", Title: "Cooking recipes", Snippet: "Pasta every day"},
	}}
	extractor := &fakeExtractor{name: "ollama", extract: func(content string) *ai.ExtractedFields {
		switch {
		case strings.Contains(content, "/high"):
			return extracted("High", "Python", "AWS")
		case strings.Contains(content, "/low"):
			return extracted("Low", "Java")
		default:
			return ai.Empty()
		}
	}}

	res, err := newController(searcher, fetcher, extractor, nil).Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 2)
	assert.Equal(t, "High", res.Candidates[0].FullName)
	assert.Equal(t, 1.5, res.Candidates[0].MatchScore)
	assert.Equal(t, []string{"python"}, res.Candidates[0].MatchedRequired)
	assert.Equal(t, "Low", res.Candidates[1].FullName)
	assert.Zero(t, res.Candidates[1].MatchScore)

	stages := map[string]string{}
	for _, f := range res.Failures {
		stages[f.URL] = f.Stage
	}
	assert.Equal(t, FailureFetch, stages["https://example.com/gone"])
	assert.Equal(t, FailureAdmission, stages["https://example.com/empty"])

	require.Len(t, res.Decisions, 5)
	var rejected int
	for _, d := range res.Decisions {
		if !d.ShouldFetch {
			rejected++
			assert.Equal(t, "https://example.com/irrelevant", d.Hit.URL)
		}
	}
	assert.Equal(t, 1, rejected)
}

func TestRunProfileWithoutTextGetsMinimalRecord(t *testing.T) {
	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><script>app()</script></body></html>`))
	}), nil)

	searcher := &fakeSearcher{hits: []*search.Hit{{
		URL:     "https://uk.linkedin.com/in/sam-roe",
		Title:   "Sam Roe | LinkedIn",
		Snippet: "Data engineer, python",
	}}}
	extractor := &fakeExtractor{name: "ollama"}

	res, err := newController(searcher, fetcher, extractor, nil).Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	cand := res.Candidates[0]
	assert.Equal(t, "Sam Roe", cand.FullName)
	assert.Equal(t, accessErrorMessage, cand.AccessError)
	assert.Equal(t, []string{"python"}, cand.Skills)
	assert.Equal(t, ai.NotFound, cand.Email)
	assert.Zero(t, extractor.calls())
}

func TestRunWorkersKeepOrderAndWriteOutput(t *testing.T) {
	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		_, _ = fmt.Fprintf(w, "<html><body><p>page %s</p></body></html>", r.URL.Path)
	}), nil)

	var hits []*search.Hit
	for i := 0; i < 8; i++ {
		hits = append(hits, &search.Hit{URL: fmt.Sprintf("https://example.com/%d", i), Title: "Python developer", Snippet: "resume"})
	}
	extractor := &fakeExtractor{name: "ollama", extract: func(content string) *ai.ExtractedFields {
		return extracted(strings.TrimSpace(strings.TrimPrefix(content, "page ")), "Python")
	}}

	dir := t.TempDir()
	sink := NewJSONFileSink(dir)
	opts := DefaultOptions()
	opts.Workers = 4
	ctrl := New(Deps{
		Searcher:  &fakeSearcher{hits: hits},
		Screener:  prescreen.New(prescreen.DefaultVocabulary()),
		Fetcher:   fetcher,
		Extractor: extractor,
		Sink:      sink,
		Logger:    zap.NewNop(),
	}, opts)

	res, err := ctrl.Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 8)
	for i, cand := range res.Candidates {
		assert.Equal(t, fmt.Sprintf("/%d", i), cand.FullName)
	}

	require.Equal(t, sink.Path(1), res.Output)
	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)

	var saved []map[string]any
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 8)
	assert.Equal(t, "https://example.com/0", saved[0]["source_url"])
	assert.Contains(t, saved[0], "matched_must_have")
	assert.Contains(t, saved[0], "match_score")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &fakeSearcher{hits: []*search.Hit{{URL: "https://example.com/a", Title: "Python resume"}}}
	fetcher := newFetcher(t, http.NotFoundHandler(), nil)

	_, err := newController(searcher, fetcher, &fakeExtractor{name: "ollama"}, nil).Run(ctx, Request{Keywords: pythonSet})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunExcludeFile(t *testing.T) {
	dir := t.TempDir()
	exclude := filepath.Join(dir, "reviewed.json")

	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Python engineer</p></body></html>`))
	}), nil)
	searcher := &fakeSearcher{hits: []*search.Hit{
		{URL: "https://example.com/a", Title: "Python resume"},
		{URL: "https://example.com/b", Title: "Python resume"},
	}}
	extractor := &fakeExtractor{name: "ollama", extract: func(string) *ai.ExtractedFields { return extracted("Someone", "Python") }}

	opts := DefaultOptions()
	opts.RecordReviewed = true
	ctrl := New(Deps{
		Searcher:    searcher,
		Screener:    prescreen.New(prescreen.DefaultVocabulary()),
		Fetcher:     fetcher,
		Extractor:   extractor,
		ExcludeFile: exclude,
		Logger:      zap.NewNop(),
	}, opts)

	first, err := ctrl.Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)
	require.Len(t, first.Candidates, 2)

	second, err := ctrl.Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)
	assert.Empty(t, second.Candidates)
	assert.Equal(t, 2, second.Round)
}

func TestRunAdmitAllProfilesDisabled(t *testing.T) {
	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/in/walled":
			w.WriteHeader(999)
		default:
			_, _ = w.Write([]byte(`<html><body><script>app()</script></body></html>`))
		}
	}), nil)

	searcher := &fakeSearcher{hits: []*search.Hit{
		{URL: "https://www.linkedin.com/in/anonymous"},
		{URL: "https://www.linkedin.com/in/walled"},
		{URL: "https://www.linkedin.com/in/sam-roe", Title: "Sam Roe | LinkedIn"},
	}}
	extractor := &fakeExtractor{name: "ollama"}

	opts := DefaultOptions()
	opts.AdmitAllProfiles = false
	ctrl := New(Deps{
		Searcher:  searcher,
		Screener:  prescreen.New(prescreen.DefaultVocabulary()),
		Fetcher:   fetcher,
		Extractor: extractor,
		Logger:    zap.NewNop(),
	}, opts)

	res, err := ctrl.Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "Sam Roe", res.Candidates[0].FullName)

	rejected := map[string]bool{}
	for _, f := range res.Failures {
		if f.Stage == FailureAdmission {
			rejected[f.URL] = true
		}
	}
	assert.Equal(t, map[string]bool{
		"https://www.linkedin.com/in/anonymous": true,
		"https://www.linkedin.com/in/walled":    true,
	}, rejected)
}

func TestRunAdmitAllProfilesKeepsEmptyProfile(t *testing.T) {
	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><script>app()</script></body></html>`))
	}), nil)
	searcher := &fakeSearcher{hits: []*search.Hit{{URL: "https://www.linkedin.com/in/anonymous"}}}

	res, err := newController(searcher, fetcher, &fakeExtractor{name: "ollama"}, nil).Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, ai.NotFound, res.Candidates[0].FullName)
	assert.True(t, res.Candidates[0].Degraded)
}

func TestRunDisabledFilters(t *testing.T) {
	fetcher := newFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Python engineer</p></body></html>`))
	}), nil)
	searcher := &fakeSearcher{hits: []*search.Hit{
		{URL: "https://example.com/cv", Title: "Python resume"},
		{URL: "https://example.com/irrelevant", Title: "Cooking recipes", Snippet: "Pasta every day"},
	}}
	extractor := &fakeExtractor{name: "ollama", extract: func(string) *ai.ExtractedFields { return extracted("Someone", "Python") }}

	core, logs := observer.New(zapcore.InfoLevel)
	opts := DefaultOptions()
	opts.DisabledFilters = []string{"prescreen", "unknown"}
	ctrl := New(Deps{
		Searcher:  searcher,
		Screener:  prescreen.New(prescreen.DefaultVocabulary()),
		Fetcher:   fetcher,
		Extractor: extractor,
		Logger:    zap.New(core),
	}, opts)

	res, err := ctrl.Run(context.Background(), Request{Keywords: pythonSet})
	require.NoError(t, err)

	assert.Empty(t, res.Decisions)
	assert.ElementsMatch(t, []string{"https://example.com/cv", "https://example.com/irrelevant"}, fetcher.urls)
	assert.Len(t, res.Candidates, 2)

	assert.Equal(t, 1, logs.FilterMessage("unknown filter in configuration").Len())

	described := logs.FilterMessage("filters").All()
	require.Len(t, described, 1)
	statuses, ok := described[0].ContextMap()["filters"].([]filtering.Status)
	require.True(t, ok)
	require.Len(t, statuses, 2)
	assert.Equal(t, "dedupe", statuses[0].Name)
	assert.True(t, statuses[0].Enabled)
	assert.Equal(t, "prescreen", statuses[1].Name)
	assert.False(t, statuses[1].Enabled)
	assert.Equal(t, "disabled by configuration", statuses[1].Reason)
}
