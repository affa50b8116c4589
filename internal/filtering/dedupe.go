package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/search"
)

type dedupeFilter struct {
	disabled bool
	reason   string
	logger   *zap.Logger
}

// NewDedupe creates a filter that keeps the first hit for every URL.
func NewDedupe(logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dedupeFilter{logger: logger}
}

func (f *dedupeFilter) Name() string { return "dedupe" }

func (f *dedupeFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *dedupeFilter) IsEnabled() bool { return !f.disabled }

func (f *dedupeFilter) Validate() error { return nil }

func (f *dedupeFilter) Apply(_ context.Context, hits *search.Hits) (*search.Hits, Step, error) {
	initial := hits.Len()
	dropped := hits.Dedupe()
	if len(dropped) > 0 {
		f.logger.Debug("skipping already processed urls", zap.Strings("urls", dropped))
	}

	return hits, Step{Initial: initial, Dropped: initial - hits.Len(), Left: hits.Len()}, nil
}

func (f *dedupeFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
