// Package company persists CompanyProfiles.
package company

import (
	"context"
	"fmt"
	"time"

	"github.com/procurelab/tendermatch/internal/domain"
)

// store is the consumer interface for company persistence (ISP).
type store interface {
	HSetIfNewer(ctx context.Context, key string, fields map[string]string, tsField string, ts int64) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Repo stores company profiles as hashes under <prefix>companies:<id>.
// Companies are always fetched by id, so no search index is built over them.
type Repo struct {
	store     store
	keyPrefix string
	dim       int
}

// New creates a company repository enforcing embedding dimension dim.
func New(s store, keyPrefix string, dim int) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, dim: dim}
}

func (r *Repo) key(id string) string { return r.keyPrefix + "companies:" + id }

// Upsert writes a profile, resolving concurrent writes last-write-wins on
// UpdatedAt: a write older than the stored profile is silently dropped. The
// compare-and-write is atomic in the store.
func (r *Repo) Upsert(ctx context.Context, profile *domain.CompanyProfile) error {
	if len(profile.Embedding) != r.dim {
		return fmt.Errorf("embedding has %d dimensions, store expects %d: %w",
			len(profile.Embedding), r.dim, domain.ErrVectorDimMismatch)
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now()
	}

	_, err := r.store.HSetIfNewer(
		ctx, r.key(profile.ID), marshalCompany(profile), "updated_at_ns", profile.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("write company %s: %w", profile.ID, err)
	}
	return nil
}

// Get returns a profile by id.
func (r *Repo) Get(ctx context.Context, id string) (domain.CompanyProfile, error) {
	fields, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return domain.CompanyProfile{}, fmt.Errorf("read company %s: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.CompanyProfile{}, domain.ErrCompanyNotFound
	}
	return unmarshalCompany(id, fields), nil
}

// Delete removes a profile. Deleting a nonexistent id is not an error.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.key(id)); err != nil {
		return fmt.Errorf("delete company %s: %w", id, err)
	}
	return nil
}
