package match

import (
	"context"

	"github.com/procurelab/tendermatch/internal/domain"
	"github.com/procurelab/tendermatch/internal/repository/tender"
)

// CompanyReader fetches company profiles.
type CompanyReader interface {
	Get(ctx context.Context, id string) (domain.CompanyProfile, error)
}

// TenderSearcher runs vector similarity search over stored tenders.
type TenderSearcher interface {
	SimilaritySearch(ctx context.Context, queryVector []float32, topK int, minSimilarity float64) ([]tender.Scored, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Explainer produces a natural-language rationale for a match. Optional:
// a nil Explainer disables explanations entirely.
type Explainer interface {
	Explain(ctx context.Context, company *domain.CompanyProfile, tender *domain.TenderRecord, result *domain.MatchResult) (string, error)
}
