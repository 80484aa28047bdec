// Package match ranks stored tenders for a company by blending vector
// similarity with rule-based structured scoring.
package match

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/domain"
	"github.com/procurelab/tendermatch/internal/logger"
	"github.com/procurelab/tendermatch/internal/metrics"
	"github.com/procurelab/tendermatch/internal/repository/tender"
)

// Options tune a single recommendation request. Zero values fall back to the
// service defaults.
type Options struct {
	PoolSize       int
	TopN           int
	MinSimilarity  float64
	IncludeExpired bool
	Explain        bool
}

// Service is the matching engine.
type Service struct {
	companies CompanyReader
	tenders   TenderSearcher
	embedder  Embedder
	explainer Explainer
	weights   Weights

	defaultPoolSize int
	defaultTopN     int
	deadline        time.Duration
	now             func() time.Time
	logger          *zap.Logger
}

// New creates a matching service. explainer may be nil.
func New(
	companies CompanyReader,
	tenders TenderSearcher,
	embedder Embedder,
	explainer Explainer,
	weights Weights,
	logger *zap.Logger,
) *Service {
	return &Service{
		companies:       companies,
		tenders:         tenders,
		embedder:        embedder,
		explainer:       explainer,
		weights:         weights,
		defaultPoolSize: 50,
		defaultTopN:     10,
		now:             time.Now,
		logger:          logger,
	}
}

// WithLimits overrides the default candidate pool size and result count.
func (s *Service) WithLimits(poolSize, topN int) *Service {
	if poolSize > 0 {
		s.defaultPoolSize = poolSize
	}
	if topN > 0 {
		s.defaultTopN = topN
	}
	return s
}

// WithDeadline bounds every Recommend call. Zero disables the bound.
func (s *Service) WithDeadline(d time.Duration) *Service {
	s.deadline = d
	return s
}

// Recommend returns the top tenders for a company, ranked by composite
// score. Ordering is deterministic: composite desc, then vector similarity
// desc, then tender id asc.
func (s *Service) Recommend(ctx context.Context, companyID string, opts Options) ([]domain.MatchResult, error) {
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	start := time.Now()
	results, err := s.recommend(ctx, companyID, opts)
	metrics.RecommendationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecommendationsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RecommendationsTotal.WithLabelValues("ok").Inc()
	return results, nil
}

func (s *Service) recommend(ctx context.Context, companyID string, opts Options) ([]domain.MatchResult, error) {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load company %s: %w", companyID, err)
	}

	queryVector := company.Embedding
	if len(queryVector) == 0 {
		result, err := s.embedder.Embed(ctx, company.EmbeddingText())
		if err != nil {
			return nil, fmt.Errorf("vectorize company %s: %w", companyID, err)
		}
		queryVector = result.Embedding
	}

	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = s.defaultPoolSize
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = s.defaultTopN
	}

	candidates, err := s.tenders.SimilaritySearch(ctx, queryVector, poolSize, opts.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}
	metrics.RecommendationPoolSize.Observe(float64(len(candidates)))

	now := s.now()
	generatedAt := now

	results := make([]domain.MatchResult, 0, len(candidates))
	for _, cand := range candidates {
		rec := cand.Record
		if !opts.IncludeExpired && rec.Expired(now) {
			continue
		}

		structured, factors := structuredScore(&company, &rec, s.weights)
		results = append(results, domain.MatchResult{
			TenderID:         rec.ID,
			CompanyID:        company.ID,
			VectorSimilarity: cand.Similarity,
			StructuredScore:  structured,
			CompositeScore:   composite(cand.Similarity, structured, s.weights),
			MatchedFactors:   factors,
			GeneratedAt:      generatedAt,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].CompositeScore != results[j].CompositeScore {
			return results[i].CompositeScore > results[j].CompositeScore
		}
		if results[i].VectorSimilarity != results[j].VectorSimilarity {
			return results[i].VectorSimilarity > results[j].VectorSimilarity
		}
		return results[i].TenderID < results[j].TenderID
	})

	if len(results) > topN {
		results = results[:topN]
	}

	if opts.Explain && s.explainer != nil {
		s.explain(ctx, &company, candidates, results)
	} else if opts.Explain {
		metrics.ExplanationsTotal.WithLabelValues("skipped").Add(float64(len(results)))
	}

	return results, nil
}

// explain attaches rationales best-effort: a failed or timed-out explanation
// leaves the result unannotated instead of failing the request.
func (s *Service) explain(
	ctx context.Context,
	company *domain.CompanyProfile,
	candidates []tender.Scored,
	results []domain.MatchResult,
) {
	byID := make(map[string]*domain.TenderRecord, len(candidates))
	for i := range candidates {
		byID[candidates[i].Record.ID] = &candidates[i].Record
	}

	for i := range results {
		rec, ok := byID[results[i].TenderID]
		if !ok {
			continue
		}
		text, err := s.explainer.Explain(ctx, company, rec, &results[i])
		if err != nil {
			metrics.ExplanationsTotal.WithLabelValues("error").Inc()
			logger.FromContext(ctx, s.logger).Warn("Explanation failed",
				zap.String("company_id", company.ID),
				zap.String("tender_id", results[i].TenderID),
				zap.Error(err),
			)
			continue
		}
		results[i].Explanation = text
		metrics.ExplanationsTotal.WithLabelValues("ok").Inc()
	}
}
