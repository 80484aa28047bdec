package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/domain"
)

type flakyEmbedder struct {
	mu       sync.Mutex
	failures int
	calls    int
	result   domain.EmbeddingResult
	err      error
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return domain.EmbeddingResult{}, f.err
	}
	return f.result, nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestEmbedder(inner domain.Embedder, opts Options) *InstrumentedEmbedder {
	p := NewInstrumentedEmbedder(inner, "test", "test-model", opts, zap.NewNop())
	p.sleep = noSleep
	return p
}

func TestEmbed_SucceedsFirstTry(t *testing.T) {
	inner := &flakyEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}, TotalTokens: 3}}
	p := newTestEmbedder(inner, Options{MaxAttempts: 3})

	result, err := p.Embed(context.Background(), "text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if result.TotalTokens != 3 {
		t.Errorf("TotalTokens = %d", result.TotalTokens)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestEmbed_RetriesTransientError(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 2,
		err:      fmt.Errorf("upstream 503: %w", domain.ErrEmbeddingProvider),
		result:   domain.EmbeddingResult{Embedding: []float32{0.1}},
	}
	p := newTestEmbedder(inner, Options{MaxAttempts: 3, Backoff: time.Millisecond})

	if _, err := p.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestEmbed_ExhaustedAttemptsWrapUnavailable(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 10,
		err:      fmt.Errorf("upstream down: %w", domain.ErrEmbeddingProvider),
	}
	p := newTestEmbedder(inner, Options{MaxAttempts: 3})

	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("err = %v, want ErrEmbeddingUnavailable", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestEmbed_ValidationErrorIsTerminal(t *testing.T) {
	inner := &flakyEmbedder{
		failures: 10,
		err:      domain.NewValidationError("text", "is empty"),
	}
	p := newTestEmbedder(inner, Options{MaxAttempts: 3})

	_, err := p.Embed(context.Background(), "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries)", inner.calls)
	}
}

func TestEmbed_CanceledContextIsTerminal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inner := &flakyEmbedder{failures: 10, err: ctx.Err()}
	p := newTestEmbedder(inner, Options{MaxAttempts: 3})

	_, err := p.Embed(ctx, "text")
	if err == nil {
		t.Fatal("expected error")
	}
	if inner.calls > 1 {
		t.Errorf("calls = %d, want at most 1", inner.calls)
	}
}

// slowEmbedder counts concurrent callers to verify the semaphore.
type slowEmbedder struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *slowEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	cur := s.inFlight.Add(1)
	for {
		m := s.maxSeen.Load()
		if cur <= m || s.maxSeen.CompareAndSwap(m, cur) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	s.inFlight.Add(-1)
	return domain.EmbeddingResult{Embedding: []float32{1}}, nil
}

func TestEmbed_BoundsConcurrency(t *testing.T) {
	inner := &slowEmbedder{}
	p := newTestEmbedder(inner, Options{MaxAttempts: 1, MaxConcurrent: 2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Embed(context.Background(), "text"); err != nil {
				t.Errorf("Embed: %v", err)
			}
		}()
	}
	wg.Wait()

	if inner.maxSeen.Load() > 2 {
		t.Errorf("max concurrent = %d, want <= 2", inner.maxSeen.Load())
	}
}
