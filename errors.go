package tendermatch

import "github.com/procurelab/tendermatch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation           = domain.ErrValidation
	ErrVectorDimMismatch    = domain.ErrVectorDimMismatch
	ErrEmbeddingUnavailable = domain.ErrEmbeddingUnavailable
	ErrUpstreamUnavailable  = domain.ErrUpstreamUnavailable
	ErrTenderNotFound       = domain.ErrTenderNotFound
	ErrCompanyNotFound      = domain.ErrCompanyNotFound
	ErrPersistenceConflict  = domain.ErrPersistenceConflict
	ErrUnknownSource        = domain.ErrUnknownSource
)
