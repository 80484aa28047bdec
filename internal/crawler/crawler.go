// Package crawler fetches tender notices from procurement sources and
// normalizes them into TenderRecords.
package crawler

import (
	"context"
	"time"

	"github.com/procurelab/tendermatch/internal/domain"
)

// Filters narrow a crawl. Zero values mean "no restriction".
type Filters struct {
	Sectors    []string
	Countries  []string
	From       time.Time
	To         time.Time
	MaxResults int
}

// Batch is the outcome of one crawl: normalized records plus a count of
// upstream items dropped during normalization.
type Batch struct {
	Records    []domain.TenderRecord
	Provenance domain.Provenance
	Dropped    int
}

// Source produces tender records from one upstream system. Implementations
// must be safe for concurrent use.
type Source interface {
	// Name identifies the source in logs, metrics and record provenance.
	Name() string
	// Search fetches and normalizes records matching the filters.
	Search(ctx context.Context, f Filters) (Batch, error)
}
