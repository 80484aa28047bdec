package crawler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/metrics"
)

// FallbackSource tries a primary source and degrades to a backup (normally a
// synthetic Generator) when the primary fails. The crawl then still yields
// data, clearly tagged with the backup's provenance.
type FallbackSource struct {
	primary Source
	backup  Source
	logger  *zap.Logger
}

// WithFallback wraps primary so upstream failures degrade to backup.
func WithFallback(primary, backup Source, logger *zap.Logger) *FallbackSource {
	return &FallbackSource{primary: primary, backup: backup, logger: logger}
}

// Name implements Source, keeping the primary's identity.
func (s *FallbackSource) Name() string { return s.primary.Name() }

// Search implements Source. Context cancellation from the caller is passed
// through without fallback: a caller that gave up does not want backup data.
func (s *FallbackSource) Search(ctx context.Context, f Filters) (Batch, error) {
	batch, err := s.primary.Search(ctx, f)
	if err == nil {
		return batch, nil
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return Batch{}, err
	}

	s.logger.Warn("Source failed, generating synthetic batch",
		zap.String("source", s.primary.Name()),
		zap.Error(err),
	)
	metrics.CrawlFallbacksTotal.WithLabelValues(s.primary.Name()).Inc()

	return s.backup.Search(ctx, f)
}
