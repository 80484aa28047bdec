// Package ingest runs the crawl -> enrich -> embed -> store pipeline.
package ingest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/crawler"
	"github.com/procurelab/tendermatch/internal/domain"
	"github.com/procurelab/tendermatch/internal/enrich"
	"github.com/procurelab/tendermatch/internal/logger"
	"github.com/procurelab/tendermatch/internal/metrics"
)

// Report summarizes one source's ingestion run.
type Report struct {
	Source     string            `json:"source"`
	Provenance domain.Provenance `json:"provenance"`
	Crawled    int               `json:"crawled"`
	Dropped    int               `json:"dropped"`
	Indexed    int               `json:"indexed"`
	Skipped    int               `json:"skipped"`
}

// Service orchestrates tender ingestion and company indexing.
type Service struct {
	tenders   TenderWriter
	companies CompanyStore
	embedder  Embedder
	sources   SourceResolver
	logger    *zap.Logger
}

// New creates an ingestion service.
func New(
	tenders TenderWriter,
	companies CompanyStore,
	embedder Embedder,
	sources SourceResolver,
	logger *zap.Logger,
) *Service {
	return &Service{
		tenders:   tenders,
		companies: companies,
		embedder:  embedder,
		sources:   sources,
		logger:    logger,
	}
}

// IngestSource crawls one source and indexes its records. A record that fails
// enrichment, embedding or persistence is skipped and counted, never aborts
// the batch.
func (s *Service) IngestSource(ctx context.Context, sourceName string, f crawler.Filters) (Report, error) {
	log := logger.FromContext(ctx, s.logger)

	src, err := s.sources.Resolve(sourceName)
	if err != nil {
		return Report{}, err
	}

	start := time.Now()
	batch, err := src.Search(ctx, f)
	metrics.CrawlDuration.WithLabelValues(sourceName).Observe(time.Since(start).Seconds())
	if err != nil {
		return Report{}, fmt.Errorf("crawl %s: %w", sourceName, err)
	}

	metrics.CrawlRecordsTotal.WithLabelValues(sourceName, string(batch.Provenance)).
		Add(float64(len(batch.Records)))
	metrics.CrawlDroppedTotal.WithLabelValues(sourceName).Add(float64(batch.Dropped))

	report := Report{
		Source:     sourceName,
		Provenance: batch.Provenance,
		Crawled:    len(batch.Records),
		Dropped:    batch.Dropped,
	}

	for i := range batch.Records {
		rec := &batch.Records[i]
		if err := s.indexTender(ctx, rec); err != nil {
			report.Skipped++
			metrics.IngestUpsertsTotal.WithLabelValues(sourceName, "skipped").Inc()
			log.Warn("Skipping tender",
				zap.String("source", sourceName),
				zap.String("tender_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		report.Indexed++
		metrics.IngestUpsertsTotal.WithLabelValues(sourceName, "ok").Inc()
	}

	log.Info("Source ingested",
		zap.String("source", sourceName),
		zap.String("provenance", string(report.Provenance)),
		zap.Int("crawled", report.Crawled),
		zap.Int("dropped", report.Dropped),
		zap.Int("indexed", report.Indexed),
		zap.Int("skipped", report.Skipped),
	)

	return report, nil
}

// IngestAll crawls every registered source concurrently and returns one
// report per source, sorted by source name. Per-source failures surface in
// the reports, not as an error: one dead source must not block the others.
func (s *Service) IngestAll(ctx context.Context, f crawler.Filters) []Report {
	names := s.sources.Names()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		reports = make([]Report, 0, len(names))
	)

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			report, err := s.IngestSource(ctx, name, f)
			if err != nil {
				s.logger.Error("Source ingestion failed",
					zap.String("source", name), zap.Error(err))
				report = Report{Source: name}
			}

			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Source < reports[j].Source })

	return reports
}

// IndexTender enriches one record, vectorizes it and writes it to the store.
// Crawled batches go through IngestSource; this is the direct path.
func (s *Service) IndexTender(ctx context.Context, rec *domain.TenderRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	return s.indexTender(ctx, rec)
}

// indexTender enriches a record, vectorizes it and writes it to the store.
func (s *Service) indexTender(ctx context.Context, rec *domain.TenderRecord) error {
	if rec.Sector == "" {
		rec.Sector = enrich.SectorForCodes(rec.CPVCodes)
	}
	if len(rec.Keywords) == 0 {
		rec.Keywords = enrich.Keywords(rec.Title+" "+rec.Description, domain.MaxKeywords)
	}
	rec.Complexity = enrich.Complexity(rec.EstimatedValue, len(rec.Description), len(rec.CPVCodes))

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	result, err := s.embedder.Embed(ctx, rec.EmbeddingText())
	if err != nil {
		return fmt.Errorf("vectorize tender: %w", err)
	}
	rec.Embedding = result.Embedding

	if err := s.tenders.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("store tender: %w", err)
	}
	return nil
}

// IndexCompany validates a profile, vectorizes it and stores it.
func (s *Service) IndexCompany(ctx context.Context, profile *domain.CompanyProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}

	result, err := s.embedder.Embed(ctx, profile.EmbeddingText())
	if err != nil {
		return fmt.Errorf("vectorize company: %w", err)
	}
	profile.Embedding = result.Embedding
	profile.UpdatedAt = time.Now()

	if err := s.companies.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("store company: %w", err)
	}
	return nil
}

// GetCompany returns a stored profile.
func (s *Service) GetCompany(ctx context.Context, id string) (domain.CompanyProfile, error) {
	return s.companies.Get(ctx, id)
}

// DeleteCompany removes a stored profile.
func (s *Service) DeleteCompany(ctx context.Context, id string) error {
	return s.companies.Delete(ctx, id)
}
