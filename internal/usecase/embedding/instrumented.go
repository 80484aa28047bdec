// Package embedding wraps an Embedder with the service-level policies the raw
// transport does not carry: bounded concurrency and retry with backoff.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/domain"
	"github.com/procurelab/tendermatch/internal/metrics"
)

// Options tune the retry and concurrency policy.
type Options struct {
	// MaxAttempts is the total number of tries per text, including the first.
	MaxAttempts int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
	// MaxConcurrent caps in-flight provider calls. Zero means no cap.
	MaxConcurrent int
}

// InstrumentedEmbedder wraps Embedder with retry, bounded concurrency and
// logging. Transport metrics (requests, duration, tokens) are recorded in
// transport/openai; this layer owns retry accounting.
type InstrumentedEmbedder struct {
	inner    domain.Embedder
	provider string
	model    string
	opts     Options
	sem      chan struct{}
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// NewInstrumentedEmbedder wraps an embedder with retry and concurrency limits.
func NewInstrumentedEmbedder(
	inner domain.Embedder, provider, model string,
	opts Options, logger *zap.Logger,
) *InstrumentedEmbedder {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	var sem chan struct{}
	if opts.MaxConcurrent > 0 {
		sem = make(chan struct{}, opts.MaxConcurrent)
	}

	return &InstrumentedEmbedder{
		inner:    inner,
		provider: provider,
		model:    model,
		opts:     opts,
		sem:      sem,
		sleep:    sleepCtx,
		logger:   logger,
	}
}

// Embed delegates to the inner embedder, retrying transient provider errors
// with exponential backoff. When all attempts fail the error wraps
// domain.ErrEmbeddingUnavailable so callers can degrade instead of crashing.
func (p *InstrumentedEmbedder) Embed(
	ctx context.Context, text string,
) (domain.EmbeddingResult, error) {
	if p.sem != nil {
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			return domain.EmbeddingResult{}, fmt.Errorf("acquire embed slot: %w", ctx.Err())
		}
	}

	backoff := p.opts.Backoff
	var lastErr error

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		start := time.Now()

		result, err := p.inner.Embed(ctx, text)
		if err == nil {
			p.logger.Debug("Embedding request completed",
				zap.String("provider", p.provider),
				zap.String("model", p.model),
				zap.Duration("duration", time.Since(start)),
				zap.Int("dimensions", len(result.Embedding)),
				zap.Int("prompt_tokens", result.PromptTokens),
				zap.Int("total_tokens", result.TotalTokens),
			)
			return result, nil
		}

		lastErr = err
		if !retryable(err) {
			return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
		}

		p.logger.Warn("Embedding request failed",
			zap.String("provider", p.provider),
			zap.String("model", p.model),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.opts.MaxAttempts),
			zap.Error(err),
		)

		if attempt == p.opts.MaxAttempts {
			break
		}

		metrics.EmbeddingRetriesTotal.WithLabelValues(p.provider, p.model).Inc()
		if err := p.sleep(ctx, backoff); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed backoff: %w", err)
		}
		backoff *= 2
	}

	return domain.EmbeddingResult{}, fmt.Errorf(
		"embed failed after %d attempts: %v: %w",
		p.opts.MaxAttempts, lastErr, domain.ErrEmbeddingUnavailable)
}

// retryable reports whether an error is worth another attempt. Context
// cancellation and validation problems are terminal; provider-side failures
// are assumed transient.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrValidation) {
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HealthCheck delegates to the inner embedder when it supports probing.
func (e *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := e.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
