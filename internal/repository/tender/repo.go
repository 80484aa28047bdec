// Package tender persists TenderRecords in the vector store.
package tender

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/procurelab/tendermatch/internal/db"
	"github.com/procurelab/tendermatch/internal/domain"
)

// store is the consumer interface for tender persistence (ISP).
type store interface {
	HSetIfNewer(ctx context.Context, key string, fields map[string]string, tsField string, ts int64) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig carries index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Scored pairs a record with its similarity to the query vector.
type Scored struct {
	Record     domain.TenderRecord
	Similarity float64
}

// Repo stores tenders as hashes under <prefix>tenders:<id> with a vector
// index over them.
type Repo struct {
	store     store
	keyPrefix string
	dim       int
	hnsw      HNSWConfig
}

// New creates a tender repository enforcing embedding dimension dim.
func New(s store, keyPrefix string, dim int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, dim: dim}
}

// WithHNSW sets HNSW build parameters for EnsureIndex.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

func (r *Repo) key(id string) string     { return r.keyPrefix + "tenders:" + id }
func (r *Repo) indexName() string        { return r.keyPrefix + "tenders:idx" }
func (r *Repo) recordPrefix() string     { return r.keyPrefix + "tenders:" }
func (r *Repo) stripKey(k string) string { return k[len(r.recordPrefix()):] }

// EnsureIndex creates the tender vector index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := db.NewIndex(r.indexName()).
		Prefix(r.recordPrefix()).
		Tag("sector").
		Tag("country").
		Tag("provenance").
		Numeric("estimated_value").
		Numeric("deadline_unix").
		VectorHNSW("vector", r.dim, r.hnsw.M, r.hnsw.EFConstruct).
		Build()

	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", r.indexName(), err)
	}
	return nil
}

// Upsert writes a record, resolving concurrent writes last-write-wins on
// UpdatedAt: a write older than the stored record is silently dropped. The
// compare-and-write is atomic in the store, and a winning write replaces the
// whole hash so fields absent upstream do not linger.
func (r *Repo) Upsert(ctx context.Context, rec *domain.TenderRecord) error {
	return r.upsert(ctx, rec, false)
}

// UpsertStrict behaves like Upsert but surfaces ErrPersistenceConflict instead
// of dropping a stale write, for callers that need optimistic concurrency.
func (r *Repo) UpsertStrict(ctx context.Context, rec *domain.TenderRecord) error {
	return r.upsert(ctx, rec, true)
}

func (r *Repo) upsert(ctx context.Context, rec *domain.TenderRecord, strict bool) error {
	if len(rec.Embedding) != r.dim {
		return fmt.Errorf("embedding has %d dimensions, store expects %d: %w",
			len(rec.Embedding), r.dim, domain.ErrVectorDimMismatch)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	written, err := r.store.HSetIfNewer(
		ctx, r.key(rec.ID), marshalTender(rec), "updated_at_ns", rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("write tender %s: %w", rec.ID, err)
	}
	if !written && strict {
		return fmt.Errorf("tender %s has a newer revision: %w", rec.ID, domain.ErrPersistenceConflict)
	}
	return nil
}

// Get returns a tender by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.TenderRecord, error) {
	fields, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domain.TenderRecord{}, fmt.Errorf("read tender %s: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.TenderRecord{}, domain.ErrTenderNotFound
	}
	return unmarshalTender(id, fields), nil
}

// Delete removes a tender. Deleting a nonexistent id is not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("delete tender %s: %w", id, err)
	}
	return nil
}

// SimilaritySearch returns up to topK records ordered by descending cosine
// similarity to the query vector, ties broken by ascending id. Records below
// minSimilarity are dropped.
func (r *Repo) SimilaritySearch(
	ctx context.Context, queryVector []float32, topK int, minSimilarity float64,
) ([]Scored, error) {
	if len(queryVector) != r.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, store expects %d: %w",
			len(queryVector), r.dim, domain.ErrVectorDimMismatch)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		Vector:       queryVector,
		K:            topK,
		ReturnFields: tenderFieldNames,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	out := make([]Scored, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		if entry.Score < minSimilarity {
			continue
		}
		id := r.stripKey(entry.Key)
		out = append(out, Scored{
			Record:     unmarshalTender(id, entry.Fields),
			Similarity: entry.Score,
		})
	}

	// The driver already sorts, but its tie-break is not guaranteed; re-sort
	// so rankings are deterministic across backends.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Record.ID < out[j].Record.ID
	})

	return out, nil
}
