package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/search"
)

type excludeFileFilter struct {
	path     string
	disabled bool
	reason   string
	logger   *zap.Logger
}

// NewExcludeFile creates a filter that removes hits already listed in the exclude file.
func NewExcludeFile(path string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &excludeFileFilter{
		path:   path,
		logger: logger,
	}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *excludeFileFilter) IsEnabled() bool { return !f.disabled }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, hits *search.Hits) (*search.Hits, Step, error) {
	initial := hits.Len()
	if f.path == "" {
		return hits, Step{Initial: initial, Dropped: 0, Left: hits.Len()}, nil
	}

	reviewed, err := search.GetReviewedFromFile(f.path)
	if err != nil {
		return hits, Step{}, fmt.Errorf("getting reviewed hits from file: %w", err)
	}

	removed := hits.Exclude(reviewed.URLs())
	if len(removed) > 0 {
		f.logger.Info("excluding hits based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_urls", removed),
			zap.Int("hits_left", hits.Len()),
		)
	}

	return hits, Step{Initial: initial, Dropped: len(removed), Left: hits.Len()}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

// AppendToExcludeFile records hits as reviewed so later runs skip them.
func AppendToExcludeFile(path string, hits *search.Hits) error {
	reviewed, err := search.GetReviewedFromFile(path)
	if err != nil {
		return err
	}

	reviewed.Append(hits.ToReviewed())

	return reviewed.ToFile(path)
}
