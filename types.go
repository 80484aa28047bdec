package tendermatch

import (
	"context"
	"time"

	"github.com/procurelab/tendermatch/internal/crawler"
	"github.com/procurelab/tendermatch/internal/domain"
)

// Embedder converts text to vector embeddings. Both tenders and company
// profiles are vectorized on write.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Tender is a procurement notice in the canonical schema.
type Tender struct {
	ID              string
	Source          string
	Title           string
	Description     string
	Buyer           string
	CPVCodes        []string
	Sector          string
	Country         string
	RequiredCerts   []string
	EstimatedValue  float64
	Currency        string
	PublicationDate time.Time
	Deadline        time.Time
	SourceURL       string
	Synthetic       bool
	Keywords        []string
	Complexity      float64
	UpdatedAt       time.Time
}

// PastProject is a short summary of completed work.
type PastProject struct {
	Name        string
	Description string
}

// Company describes an organization looking for tenders.
type Company struct {
	ID             string
	Name           string
	Description    string
	Sectors        []string
	Certifications []string
	Size           string // micro, small, medium, large
	PastProjects   []PastProject
	Location       string
	UpdatedAt      time.Time
}

// Recommendation is one ranked tender for a company.
type Recommendation struct {
	TenderID         string
	VectorSimilarity float64
	StructuredScore  float64
	CompositeScore   float64
	MatchedFactors   []string
	Explanation      string
}

// Weights tune the composite ranking. Alpha weighs vector similarity against
// the structured score; the rest weigh the structured sub-scores.
type Weights struct {
	Alpha    float64
	Sector   float64
	Cert     float64
	Location float64
	Size     float64
}

// Filters narrow an ingest run. Zero values mean no restriction.
type Filters struct {
	Sectors    []string
	Countries  []string
	From       time.Time
	To         time.Time
	MaxResults int
}

// RecommendOptions tune a single Recommend call. Zero values fall back to
// the client defaults.
type RecommendOptions struct {
	TopN           int
	PoolSize       int
	MinSimilarity  float64
	IncludeExpired bool
}

// IngestReport summarizes one ingest run.
type IngestReport struct {
	Source    string
	Synthetic bool
	Crawled   int
	Dropped   int
	Indexed   int
	Skipped   int
}

// SourceBatch is the outcome of one external crawl.
type SourceBatch struct {
	Tenders   []Tender
	Synthetic bool
	Dropped   int
}

// Source supplies tender records for ingestion.
type Source interface {
	Name() string
	Search(ctx context.Context, f Filters) (SourceBatch, error)
}

func tenderToDomain(t *Tender) *domain.TenderRecord {
	prov := domain.ProvenanceReal
	if t.Synthetic {
		prov = domain.ProvenanceSynthetic
	}
	return &domain.TenderRecord{
		ID:              t.ID,
		Source:          t.Source,
		Title:           t.Title,
		Description:     t.Description,
		Buyer:           t.Buyer,
		CPVCodes:        t.CPVCodes,
		Sector:          t.Sector,
		Country:         t.Country,
		RequiredCerts:   t.RequiredCerts,
		EstimatedValue:  t.EstimatedValue,
		Currency:        t.Currency,
		PublicationDate: t.PublicationDate,
		Deadline:        t.Deadline,
		SourceURL:       t.SourceURL,
		Provenance:      prov,
		Keywords:        t.Keywords,
		Complexity:      t.Complexity,
		UpdatedAt:       t.UpdatedAt,
	}
}

func tenderFromDomain(rec *domain.TenderRecord) Tender {
	return Tender{
		ID:              rec.ID,
		Source:          rec.Source,
		Title:           rec.Title,
		Description:     rec.Description,
		Buyer:           rec.Buyer,
		CPVCodes:        rec.CPVCodes,
		Sector:          rec.Sector,
		Country:         rec.Country,
		RequiredCerts:   rec.RequiredCerts,
		EstimatedValue:  rec.EstimatedValue,
		Currency:        rec.Currency,
		PublicationDate: rec.PublicationDate,
		Deadline:        rec.Deadline,
		SourceURL:       rec.SourceURL,
		Synthetic:       rec.Provenance == domain.ProvenanceSynthetic,
		Keywords:        rec.Keywords,
		Complexity:      rec.Complexity,
		UpdatedAt:       rec.UpdatedAt,
	}
}

func companyToDomain(c *Company) *domain.CompanyProfile {
	projects := make([]domain.PastProject, len(c.PastProjects))
	for i, p := range c.PastProjects {
		projects[i] = domain.PastProject{Name: p.Name, Description: p.Description}
	}
	return &domain.CompanyProfile{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Sectors:        c.Sectors,
		Certifications: c.Certifications,
		Size:           domain.SizeCategory(c.Size),
		PastProjects:   projects,
		Location:       c.Location,
		UpdatedAt:      c.UpdatedAt,
	}
}

func companyFromDomain(p *domain.CompanyProfile) Company {
	projects := make([]PastProject, len(p.PastProjects))
	for i, pp := range p.PastProjects {
		projects[i] = PastProject{Name: pp.Name, Description: pp.Description}
	}
	return Company{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Sectors:        p.Sectors,
		Certifications: p.Certifications,
		Size:           string(p.Size),
		PastProjects:   projects,
		Location:       p.Location,
		UpdatedAt:      p.UpdatedAt,
	}
}

func filtersToDomain(f Filters) crawler.Filters {
	return crawler.Filters{
		Sectors:    f.Sectors,
		Countries:  f.Countries,
		From:       f.From,
		To:         f.To,
		MaxResults: f.MaxResults,
	}
}

// sourceAdapter wraps a public Source to satisfy crawler.Source.
type sourceAdapter struct {
	inner Source
}

func (a *sourceAdapter) Name() string { return a.inner.Name() }

func (a *sourceAdapter) Search(ctx context.Context, f crawler.Filters) (crawler.Batch, error) {
	b, err := a.inner.Search(ctx, Filters{
		Sectors:    f.Sectors,
		Countries:  f.Countries,
		From:       f.From,
		To:         f.To,
		MaxResults: f.MaxResults,
	})
	if err != nil {
		return crawler.Batch{}, err
	}
	prov := domain.ProvenanceReal
	if b.Synthetic {
		prov = domain.ProvenanceSynthetic
	}
	now := time.Now()
	records := make([]domain.TenderRecord, len(b.Tenders))
	for i := range b.Tenders {
		b.Tenders[i].Source = a.inner.Name()
		b.Tenders[i].Synthetic = b.Synthetic
		if b.Tenders[i].UpdatedAt.IsZero() {
			b.Tenders[i].UpdatedAt = now
		}
		records[i] = *tenderToDomain(&b.Tenders[i])
	}
	return crawler.Batch{Records: records, Provenance: prov, Dropped: b.Dropped}, nil
}
