package ingest

import (
	"context"

	"github.com/procurelab/tendermatch/internal/crawler"
	"github.com/procurelab/tendermatch/internal/domain"
)

// TenderWriter is the storage contract for crawled tenders.
type TenderWriter interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, rec *domain.TenderRecord) error
}

// CompanyStore is the storage contract for company profiles.
type CompanyStore interface {
	Upsert(ctx context.Context, profile *domain.CompanyProfile) error
	Get(ctx context.Context, id string) (domain.CompanyProfile, error)
	Delete(ctx context.Context, id string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// SourceResolver looks up crawl sources by name.
type SourceResolver interface {
	Resolve(name string) (crawler.Source, error)
	Names() []string
}
