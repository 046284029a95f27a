package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shakesearch/internal/domain"
	"github.com/kailas-cloud/shakesearch/internal/metrics"
)

// Searcher is the contract served by Service and its decorators.
type Searcher interface {
	Search(ctx context.Context, query string, offset int) (domain.Page, error)
}

// InstrumentedSearcher wraps a Searcher with metrics and debug logging.
type InstrumentedSearcher struct {
	inner  Searcher
	logger *zap.Logger
}

// NewInstrumented wraps inner. A nil logger disables logging.
func NewInstrumented(inner Searcher, logger *zap.Logger) *InstrumentedSearcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedSearcher{inner: inner, logger: logger}
}

// Search delegates to the inner searcher and records the outcome.
func (s *InstrumentedSearcher) Search(ctx context.Context, query string, offset int) (domain.Page, error) {
	start := time.Now()
	page, err := s.inner.Search(ctx, query, offset)
	duration := time.Since(start)

	metrics.SearchDuration.Observe(duration.Seconds())

	if err != nil {
		status := "error"
		if errors.Is(err, domain.ErrInvalidQuery) || errors.Is(err, domain.ErrInvalidOffset) {
			status = "invalid"
		}
		metrics.SearchRequestsTotal.WithLabelValues(status).Inc()
		s.logger.Debug("Search rejected",
			zap.Int("offset", offset),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.Page{}, err
	}

	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	metrics.SearchPageItems.Observe(float64(page.Len()))

	s.logger.Debug("Search completed",
		zap.Int("query_len", len(query)),
		zap.Int("offset", offset),
		zap.Int("items", page.Len()),
		zap.Bool("has_more", page.HasMore),
		zap.Duration("duration", duration),
	)
	return page, nil
}
