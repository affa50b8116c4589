package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/prescreen"
	"github.com/spigell/sourcing-agent/internal/search"
)

// Filter represents a single filtering step applied to search hits.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, hits *search.Hits) (*search.Hits, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// decisionCollector is implemented by filters that record per-hit prescreen decisions.
type decisionCollector interface {
	Decisions() []prescreen.Decision
}

// Filtering runs a list of steps sequentially.
type Filtering struct {
	steps     []Filter
	logger    *zap.Logger
	decisions []prescreen.Decision
}

func New(steps []Filter, logger *zap.Logger) *Filtering {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filtering{steps: steps, logger: logger}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
// It reports whether such a filter exists.
func (f *Filtering) DisableByName(name, reason string) bool {
	found := false
	for _, step := range f.steps {
		if step.Name() == name {
			step.Disable(reason)
			found = true
		}
	}
	return found
}

// RunFilters validates every enabled step and then applies them in order.
func (f *Filtering) RunFilters(ctx context.Context, hits *search.Hits) (*search.Hits, error) {
	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	f.decisions = nil
	for _, step := range f.steps {
		if !step.IsEnabled() {
			f.logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, hits)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		f.logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		hits = next

		if collector, ok := step.(decisionCollector); ok {
			f.decisions = append(f.decisions, collector.Decisions()...)
		}
	}

	return hits, nil
}

// Decisions returns the prescreen decisions recorded by the last RunFilters call.
func (f *Filtering) Decisions() []prescreen.Decision {
	return f.decisions
}

// Describe returns status entries for the configured filters.
func (f *Filtering) Describe() []Status {
	statuses := make([]Status, 0, len(f.steps))
	for _, step := range f.steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
