package cache

import (
	"context"
	"errors"
	"time"

	"github.com/spherical-ai/appraisal/internal/domain"
	"github.com/spherical-ai/appraisal/internal/observability"
)

// CachedSummarizer serves repeated summaries of identical text from a cache.
// Cache failures are logged and never fail the call.
type CachedSummarizer struct {
	inner  domain.Summarizer
	client Client
	ttl    time.Duration
	logger *observability.Logger
}

var _ domain.Summarizer = (*CachedSummarizer)(nil)

// NewCachedSummarizer wraps inner with client.
func NewCachedSummarizer(inner domain.Summarizer, client Client, ttl time.Duration, logger *observability.Logger) *CachedSummarizer {
	return &CachedSummarizer{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: observability.OrNop(logger).WithComponent("summary-cache"),
	}
}

// Summarize implements domain.Summarizer.
func (s *CachedSummarizer) Summarize(ctx context.Context, text string, minRatio, maxRatio float64) (string, error) {
	key := SummaryKey(text, minRatio, maxRatio)

	cached, err := s.client.Get(ctx, key)
	switch {
	case err == nil:
		s.logger.Debug().Str("key", key).Msg("Summary cache hit")
		return string(cached), nil
	case !errors.Is(err, ErrCacheMiss):
		s.logger.Warn().Err(err).Msg("Summary cache read failed")
	}

	summary, err := s.inner.Summarize(ctx, text, minRatio, maxRatio)
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, key, []byte(summary), s.ttl); err != nil {
		s.logger.Warn().Err(err).Msg("Summary cache write failed")
	}
	return summary, nil
}
