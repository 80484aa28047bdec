// Package tendermatch embeds the tender matching engine in-process: the same
// store, enrichment and ranking that back the HTTP server, without running one.
package tendermatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/crawler"
	"github.com/procurelab/tendermatch/internal/db"
	dbMemory "github.com/procurelab/tendermatch/internal/db/memory"
	dbRedis "github.com/procurelab/tendermatch/internal/db/redis"
	"github.com/procurelab/tendermatch/internal/domain"
	companyrepo "github.com/procurelab/tendermatch/internal/repository/company"
	tenderrepo "github.com/procurelab/tendermatch/internal/repository/tender"
	ingestuc "github.com/procurelab/tendermatch/internal/usecase/ingest"
	matchuc "github.com/procurelab/tendermatch/internal/usecase/match"
)

const (
	defaultDimensions       = 1536
	defaultKeyPrefix        = "tendermatch:"
	defaultReadinessTimeout = 10 * time.Second
	syntheticBatchSize      = 10
)

// Client is the embedded tendermatch entry point.
type Client struct {
	store   db.Store
	tenders *tenderrepo.Repo
	ingest  *ingestuc.Service
	match   *matchuc.Service
}

// NewClient wires the matching engine over an in-memory store or Redis.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:           "memory",
		keyPrefix:        defaultKeyPrefix,
		vectorDimensions: defaultDimensions,
		logger:           zap.NewNop(),
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("tendermatch: embedder required (use WithEmbedder)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("tendermatch: store not ready: %w", err)
	}

	return wireClient(ctx, store, cfg)
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return dbMemory.NewStore(), nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("tendermatch: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("tendermatch: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	tenders := tenderrepo.New(store, cfg.keyPrefix, cfg.vectorDimensions)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		tenders = tenders.WithHNSW(tenderrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}
	companies := companyrepo.New(store, cfg.keyPrefix, cfg.vectorDimensions)

	if err := tenders.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("tendermatch: ensure tender index: %w", err)
	}

	registry := crawler.NewRegistry()
	registry.Register(crawler.NewGenerator(
		"synthetic", syntheticBatchSize, rand.New(rand.NewSource(time.Now().UnixNano())),
	))
	for _, src := range cfg.sources {
		registry.Register(&sourceAdapter{inner: src})
	}

	embedder := &embedderAdapter{inner: cfg.embedder}

	weights := matchuc.DefaultWeights()
	if cfg.weights != nil {
		weights = matchuc.Weights{
			Alpha:    cfg.weights.Alpha,
			Sector:   cfg.weights.Sector,
			Cert:     cfg.weights.Cert,
			Location: cfg.weights.Location,
			Size:     cfg.weights.Size,
		}
	}

	ingestSvc := ingestuc.New(tenders, companies, embedder, registry, cfg.logger)
	matchSvc := matchuc.New(companies, tenders, embedder, nil, weights, cfg.logger)
	if cfg.poolSize > 0 || cfg.topN > 0 {
		matchSvc = matchSvc.WithLimits(cfg.poolSize, cfg.topN)
	}

	return &Client{
		store:   store,
		tenders: tenders,
		ingest:  ingestSvc,
		match:   matchSvc,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks store connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// IndexTender enriches, vectorizes and stores a tender.
func (c *Client) IndexTender(ctx context.Context, t Tender) error {
	return c.ingest.IndexTender(ctx, tenderToDomain(&t))
}

// GetTender returns a stored tender by id.
func (c *Client) GetTender(ctx context.Context, id string) (Tender, error) {
	rec, err := c.tenders.Get(ctx, id)
	if err != nil {
		return Tender{}, err
	}
	return tenderFromDomain(&rec), nil
}

// DeleteTender removes a tender. Deleting a missing tender is a no-op.
func (c *Client) DeleteTender(ctx context.Context, id string) error {
	return c.tenders.Delete(ctx, id)
}

// IndexCompany vectorizes and stores a company profile.
func (c *Client) IndexCompany(ctx context.Context, company Company) error {
	return c.ingest.IndexCompany(ctx, companyToDomain(&company))
}

// GetCompany returns a stored profile by id.
func (c *Client) GetCompany(ctx context.Context, id string) (Company, error) {
	p, err := c.ingest.GetCompany(ctx, id)
	if err != nil {
		return Company{}, err
	}
	return companyFromDomain(&p), nil
}

// DeleteCompany removes a profile. Deleting a missing profile is a no-op.
func (c *Client) DeleteCompany(ctx context.Context, id string) error {
	return c.ingest.DeleteCompany(ctx, id)
}

// Ingest crawls one source and indexes its records. The built-in "synthetic"
// source is always registered.
func (c *Client) Ingest(ctx context.Context, source string, f Filters) (IngestReport, error) {
	report, err := c.ingest.IngestSource(ctx, source, filtersToDomain(f))
	if err != nil {
		return IngestReport{}, err
	}
	return IngestReport{
		Source:    report.Source,
		Synthetic: report.Provenance == domain.ProvenanceSynthetic,
		Crawled:   report.Crawled,
		Dropped:   report.Dropped,
		Indexed:   report.Indexed,
		Skipped:   report.Skipped,
	}, nil
}

// Recommend returns ranked open tenders for a stored company.
func (c *Client) Recommend(ctx context.Context, companyID string, opts *RecommendOptions) ([]Recommendation, error) {
	if opts == nil {
		opts = &RecommendOptions{}
	}
	results, err := c.match.Recommend(ctx, companyID, matchuc.Options{
		PoolSize:       opts.PoolSize,
		TopN:           opts.TopN,
		MinSimilarity:  opts.MinSimilarity,
		IncludeExpired: opts.IncludeExpired,
	})
	if err != nil {
		return nil, err
	}
	out := make([]Recommendation, len(results))
	for i, m := range results {
		out[i] = Recommendation{
			TenderID:         m.TenderID,
			VectorSimilarity: m.VectorSimilarity,
			StructuredScore:  m.StructuredScore,
			CompositeScore:   m.CompositeScore,
			MatchedFactors:   m.MatchedFactors,
			Explanation:      m.Explanation,
		}
	}
	return out, nil
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
