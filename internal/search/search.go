package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/sourcing-agent/internal/keywords"
	"github.com/spigell/sourcing-agent/internal/metrics"
)

const (
	// PageSize is the maximum number of items the API returns per request.
	PageSize = 10
	// MaxResults is the absolute number of results retrievable per query.
	MaxResults = 100
	// MaxStart is the last start offset that stays within MaxResults.
	MaxStart = MaxResults - PageSize + 1
	maxPages = MaxResults / PageSize
)

// Pager fetches a single page of results for a query.
type Pager interface {
	Page(ctx context.Context, query string, start int) ([]*Hit, error)
}

// Request describes one search execution.
type Request struct {
	Keywords   keywords.Set
	Location   string
	MinResults int
	Expand     bool
}

// Executor paginates a Pager honoring the API result ceiling.
type Executor struct {
	pager   Pager
	options QueryOptions
	logger  *zap.Logger
}

func NewExecutor(pager Pager, options QueryOptions, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{pager: pager, options: options, logger: logger}
}

// Execute runs the strict query and, when it under-delivers and optional
// keywords exist, replaces the results with those of the expanded query.
// An empty result is not an error.
func (e *Executor) Execute(ctx context.Context, req Request) (*Hits, error) {
	strict := BuildQuery(req.Keywords, req.Location, false, e.options)
	e.logger.Info("executing search", zap.String("query", strict), zap.Int("min_results", req.MinResults))

	results, err := e.collect(ctx, strict, req.MinResults)
	if err != nil {
		return nil, err
	}

	if req.Expand && results.Len() < req.MinResults && len(req.Keywords.Optional) > 0 {
		expanded := BuildQuery(req.Keywords, req.Location, true, e.options)
		e.logger.Info("expanding search",
			zap.String("reason", fmt.Sprintf("strict query returned %d of %d results", results.Len(), req.MinResults)),
			zap.String("query", expanded),
		)

		results, err = e.collect(ctx, expanded, req.MinResults)
		if err != nil {
			return nil, err
		}
	}

	e.logger.Info("completed search", zap.Int("results", results.Len()))
	return results, nil
}

func (e *Executor) collect(ctx context.Context, query string, minResults int) (*Hits, error) {
	hits := &Hits{}
	start := 1

	for page := 0; page < maxPages && hits.Len() < minResults && start <= MaxStart; page++ {
		items, err := e.pager.Page(ctx, query, start)
		if err != nil {
			metrics.SearchPagesTotal.WithLabelValues("error").Inc()
			if page == 0 && errors.Is(err, ErrUnauthorized) {
				return nil, fmt.Errorf("search: %w", err)
			}
			e.logger.Warn("search page failed, keeping partial results",
				zap.String("query", query),
				zap.Int("start", start),
				zap.Int("collected", hits.Len()),
				zap.Error(err),
			)
			break
		}

		if len(items) == 0 {
			metrics.SearchPagesTotal.WithLabelValues("empty").Inc()
			e.logger.Debug("no more search results", zap.String("query", query), zap.Int("start", start))
			break
		}

		metrics.SearchPagesTotal.WithLabelValues("ok").Inc()
		hits.Items = append(hits.Items, items...)
		start += len(items)

		e.logger.Debug("search progress", zap.Int("collected", hits.Len()), zap.Int("next_start", start))

		if len(items) < PageSize {
			e.logger.Debug("last search page reached", zap.String("query", query), zap.Int("items", len(items)))
			break
		}
	}

	if start > MaxStart && hits.Len() < minResults {
		e.logger.Info("search api result ceiling reached",
			zap.Int("ceiling", MaxResults),
			zap.Int("collected", hits.Len()),
		)
	}

	return hits, nil
}
