package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/metrics"
	"github.com/spigell/sourcing-agent/internal/prescreen"
	"github.com/spigell/sourcing-agent/internal/search"
)

type prescreenFilter struct {
	enabled   bool
	reason    string
	deps      *PrescreenDeps
	decisions []prescreen.Decision
}

type PrescreenDeps struct {
	Screener *prescreen.Screener
	Keywords keywords.Set
	Logger   *zap.Logger
}

// NewPrescreen creates the step that drops hits not worth fetching.
func NewPrescreen(deps *PrescreenDeps) Filter {
	return &prescreenFilter{
		enabled: true,
		deps:    deps,
	}
}

func (f *prescreenFilter) Name() string { return "prescreen" }

func (f *prescreenFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *prescreenFilter) IsEnabled() bool { return f.enabled }

func (f *prescreenFilter) Validate() error {
	if f.deps == nil || f.deps.Screener == nil {
		return fmt.Errorf("screener is required")
	}
	if f.deps.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

func (f *prescreenFilter) Apply(_ context.Context, hits *search.Hits) (*search.Hits, Step, error) {
	initial := hits.Len()
	kept := make([]*search.Hit, 0, initial)
	f.decisions = make([]prescreen.Decision, 0, initial)

	for _, hit := range hits.Items {
		decision := f.deps.Screener.Screen(hit, f.deps.Keywords)
		f.decisions = append(f.decisions, decision)
		metrics.PrescreenDecisionsTotal.WithLabelValues(string(decision.Reason)).Inc()

		f.deps.Logger.Debug("prescreen decision",
			zap.String("url", hit.URL),
			zap.Bool("should_fetch", decision.ShouldFetch),
			zap.String("reason", string(decision.Reason)),
			zap.String("matched", decision.Matched),
		)

		if decision.ShouldFetch {
			kept = append(kept, hit)
		}
	}

	hits.Items = kept
	return hits, Step{Initial: initial, Dropped: initial - hits.Len(), Left: hits.Len()}, nil
}

func (f *prescreenFilter) Decisions() []prescreen.Decision {
	return f.decisions
}

func (f *prescreenFilter) Status() Status {
	details := map[string]string{}
	if f.deps != nil {
		details["required"] = strconv.Itoa(len(f.deps.Keywords.Required))
		details["optional"] = strconv.Itoa(len(f.deps.Keywords.Optional))
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
