// Package sourcing runs search, prescreen, fetch, extraction and scoring as
// one round and drives refinement across rounds.
package sourcing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/sourcing-agent/internal/ai"
	"github.com/spigell/sourcing-agent/internal/fetch"
	"github.com/spigell/sourcing-agent/internal/filtering"
	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/linkedin"
	"github.com/spigell/sourcing-agent/internal/logger"
	"github.com/spigell/sourcing-agent/internal/metrics"
	"github.com/spigell/sourcing-agent/internal/prescreen"
	"github.com/spigell/sourcing-agent/internal/search"
)

// Stage is a phase of a round.
type Stage string

const (
	StageSearching    Stage = "searching"
	StagePrescreening Stage = "prescreening"
	StageExtracting   Stage = "extracting"
	StageScoring      Stage = "scoring"
	StageRanked       Stage = "ranked"
)

// Failure stages recorded in diagnostics.
const (
	FailureFetch     = "fetch"
	FailureExtract   = "extract"
	FailureAdmission = "admission"
	FailureOutput    = "output"
)

const (
	snippetSeparator = "\n\nSEARCH SNIPPET: "
	insufficientInfo = "insufficient information"
)

// Searcher runs the search phase of a round.
type Searcher interface {
	Execute(ctx context.Context, req search.Request) (*search.Hits, error)
}

// Fetcher returns the text of a hit page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) fetch.Result
}

// Options tune a controller. Use DefaultOptions as the starting point.
type Options struct {
	Workers          int  `mapstructure:"workers"`
	MaxRounds        int  `mapstructure:"max-rounds"`
	TopN             int  `mapstructure:"top-n"`
	AdmitAllProfiles bool `mapstructure:"admit-all-profiles"`
	RecordReviewed   bool `mapstructure:"record-reviewed"`

	// DisabledFilters names filtering steps that are kept but skipped
	// (dedupe, exclude_file, prescreen).
	DisabledFilters []string `mapstructure:"disabled-filters"`
}

// DefaultOptions processes one hit at a time and always admits profile pages.
func DefaultOptions() Options {
	return Options{
		Workers:          1,
		MaxRounds:        3,
		TopN:             3,
		AdmitAllProfiles: true,
	}
}

// Deps are the collaborators of a controller. Sink and ExcludeFile are optional.
type Deps struct {
	Searcher    Searcher
	Screener    *prescreen.Screener
	Fetcher     Fetcher
	Extractor   ai.Extractor
	Sink        RecordSink
	ExcludeFile string
	Logger      *zap.Logger
}

// Request is the input of one round.
type Request struct {
	Keywords   keywords.Set
	Location   string
	MinResults int
	Expand     bool
}

// Failure is a per-URL problem that did not stop the round.
type Failure struct {
	URL    string `json:"url"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// RoundResult is the ranked output of one round plus its diagnostics.
type RoundResult struct {
	Round      int
	ID         string
	Request    Request
	Provider   string
	Hits       int
	Candidates []*Candidate
	Failures   []Failure
	Decisions  []prescreen.Decision
	Stages     []Stage
	Output     string
}

// Controller owns the working list of a round.
type Controller struct {
	deps   Deps
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	round int
}

func New(deps Deps, opts Options) *Controller {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = 1
	}
	if opts.TopN <= 0 {
		opts.TopN = 3
	}
	return &Controller{deps: deps, opts: opts, logger: deps.Logger}
}

func (c *Controller) validate() error {
	switch {
	case c.deps.Searcher == nil:
		return errors.New("searcher is required")
	case c.deps.Screener == nil:
		return errors.New("screener is required")
	case c.deps.Fetcher == nil:
		return errors.New("fetcher is required")
	case c.deps.Extractor == nil:
		return errors.New("extractor is required")
	}
	return nil
}

func (c *Controller) nextRound() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.round++
	return c.round
}

// Run executes one round. Keywords are validated before any network call.
// Per-URL problems are reported in RoundResult.Failures; only configuration
// errors, search credential errors and cancellation are returned.
func (c *Controller) Run(ctx context.Context, req Request) (*RoundResult, error) {
	if err := req.Keywords.Validate(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	req.Keywords = req.Keywords.Normalize()

	res := &RoundResult{
		Round:    c.nextRound(),
		ID:       uuid.NewString(),
		Request:  req,
		Provider: c.deps.Extractor.Provider(),
	}
	log := logger.WithRound(c.logger, res.Round, res.ID)

	log.Info("starting round",
		zap.Stringer("keywords", req.Keywords),
		zap.String("location", req.Location),
		zap.String("provider", res.Provider),
	)

	res.enter(log, StageSearching)
	hits, err := c.deps.Searcher.Execute(ctx, search.Request{
		Keywords:   req.Keywords,
		Location:   req.Location,
		MinResults: req.MinResults,
		Expand:     req.Expand,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	res.Hits = hits.Len()
	if hits.Len() == 0 {
		log.Warn("no search results found")
		return res, nil
	}

	res.enter(log, StagePrescreening)
	pipeline := c.pipeline(req.Keywords, log)
	admitted, err := pipeline.RunFilters(ctx, hits)
	if err != nil {
		return nil, fmt.Errorf("prescreen: %w", err)
	}
	res.Decisions = pipeline.Decisions()

	reasons := make(map[string]prescreen.Reason, len(res.Decisions))
	for _, d := range res.Decisions {
		reasons[d.Hit.URL] = d.Reason
	}

	res.enter(log, StageExtracting)
	candidates, failures, err := c.extract(ctx, admitted, req.Keywords, reasons, log)
	if err != nil {
		return nil, err
	}
	res.Failures = failures

	res.enter(log, StageScoring)
	for _, cand := range candidates {
		cand.Apply(req.Keywords)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchScore > candidates[j].MatchScore
	})
	res.Candidates = candidates
	res.enter(log, StageRanked)

	c.persist(ctx, res, log)

	log.Info("round completed",
		zap.Int("hits", res.Hits),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("failures", len(res.Failures)),
		zap.Float64("average_score", averageScore(res.Candidates)),
	)

	return res, nil
}

func (r *RoundResult) enter(log *zap.Logger, stage Stage) {
	r.Stages = append(r.Stages, stage)
	log.Info("stage", zap.String("stage", string(stage)))
}

func (c *Controller) pipeline(set keywords.Set, log *zap.Logger) *filtering.Filtering {
	steps := []filtering.Filter{filtering.NewDedupe(log)}
	if c.deps.ExcludeFile != "" {
		steps = append(steps, filtering.NewExcludeFile(c.deps.ExcludeFile, log))
	}
	steps = append(steps, filtering.NewPrescreen(&filtering.PrescreenDeps{
		Screener: c.deps.Screener,
		Keywords: set,
		Logger:   log,
	}))

	pipeline := filtering.New(steps, log)
	for _, name := range c.opts.DisabledFilters {
		if !pipeline.DisableByName(strings.TrimSpace(name), "disabled by configuration") {
			log.Warn("unknown filter in configuration", zap.String("name", name))
		}
	}
	log.Info("filters", zap.Any("filters", pipeline.Describe()))

	return pipeline
}

type outcome struct {
	candidate *Candidate
	failures  []Failure
}

func (c *Controller) extract(ctx context.Context, hits *search.Hits, set keywords.Set, reasons map[string]prescreen.Reason, log *zap.Logger) ([]*Candidate, []Failure, error) {
	outcomes := make([]outcome, hits.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for i, hit := range hits.Items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = c.process(gctx, hit, set, log)
			if outcomes[i].candidate != nil {
				outcomes[i].candidate.PrescreenReason = reasons[hit.URL]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("extraction interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("extraction interrupted: %w", err)
	}

	var candidates []*Candidate
	var failures []Failure
	for _, o := range outcomes {
		failures = append(failures, o.failures...)
		if o.candidate != nil {
			candidates = append(candidates, o.candidate)
		}
	}
	return candidates, failures, nil
}

func (c *Controller) process(ctx context.Context, hit *search.Hit, set keywords.Set, log *zap.Logger) outcome {
	log = log.With(zap.String("url", hit.URL))
	profile := linkedin.IsNetworkURL(hit.URL)

	var out outcome
	result := c.deps.Fetcher.Fetch(ctx, hit.URL)
	if !result.OK() {
		out.failures = append(out.failures, Failure{URL: hit.URL, Stage: FailureFetch, Reason: result.FailureReason})
		if !profile {
			log.Warn("failed to fetch page content", zap.String("reason", result.FailureReason))
			return out
		}

		minimal := minimalProfile(hit, set)
		if !c.admit(true, &minimal.ExtractedFields) {
			out.failures = append(out.failures, Failure{URL: hit.URL, Stage: FailureAdmission, Reason: insufficientInfo})
			log.Info("fallback profile skipped, insufficient information")
			return out
		}

		out.candidate = minimal
		metrics.CandidatesTotal.WithLabelValues("profile").Inc()
		log.Info("added fallback profile candidate", zap.String("name", out.candidate.FullName))
		return out
	}

	content := *result.Text
	if profile {
		content += snippetSeparator + hit.Title + "\n\n" + hit.Snippet
	}

	fields := c.deps.Extractor.ParseCandidateData(ctx, content, set)
	if fields == nil {
		fields = ai.Failure(c.deps.Extractor.Provider(), "extractor returned no result", "")
	}
	fields.SourceURL = hit.URL
	fields.Snippet = hit.Snippet
	if fields.Failed() {
		out.failures = append(out.failures, Failure{URL: hit.URL, Stage: FailureExtract, Reason: fields.Error})
	}

	if profile {
		fillFromHit(fields, hit, set)
	}

	if !c.admit(profile, fields) {
		out.failures = append(out.failures, Failure{URL: hit.URL, Stage: FailureAdmission, Reason: insufficientInfo})
		log.Info("candidate skipped, insufficient information")
		return out
	}

	out.candidate = &Candidate{
		ExtractedFields: *fields,
		Degraded:        result.Degraded,
	}
	source := "web"
	if profile {
		source = "profile"
	}
	metrics.CandidatesTotal.WithLabelValues(source).Inc()
	log.Info("candidate added", zap.String("name", out.candidate.Name()), zap.Bool("degraded", result.Degraded))

	return out
}

// admit applies the admission policy: a record needs a name or skills unless
// it is a profile page and AdmitAllProfiles is set.
func (c *Controller) admit(profile bool, fields *ai.ExtractedFields) bool {
	if profile && c.opts.AdmitAllProfiles {
		return true
	}
	return fields.HasName() || fields.HasSkills()
}

func (c *Controller) persist(ctx context.Context, res *RoundResult, log *zap.Logger) {
	if c.deps.Sink != nil {
		path, err := c.deps.Sink.Write(ctx, res.Round, res.Candidates)
		if err != nil {
			log.Error("saving candidates", zap.Error(err))
			res.Failures = append(res.Failures, Failure{Stage: FailureOutput, Reason: err.Error()})
		} else {
			res.Output = path
			log.Info("saved candidates", zap.String("path", path), zap.Int("count", len(res.Candidates)))
		}
	}

	if c.opts.RecordReviewed && c.deps.ExcludeFile != "" && len(res.Candidates) > 0 {
		reviewed := &search.Hits{}
		for _, cand := range res.Candidates {
			reviewed.Items = append(reviewed.Items, &search.Hit{URL: cand.SourceURL, Title: cand.FullName})
		}
		if err := filtering.AppendToExcludeFile(c.deps.ExcludeFile, reviewed); err != nil {
			log.Error("recording reviewed candidates", zap.String("path", c.deps.ExcludeFile), zap.Error(err))
		}
	}
}

func averageScore(candidates []*Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var total float64
	for _, cand := range candidates {
		total += cand.MatchScore
	}
	return total / float64(len(candidates))
}
