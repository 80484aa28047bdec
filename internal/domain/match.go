package domain

import "time"

// Matched-factor tags attached to a MatchResult.
const (
	FactorSector        = "sector"
	FactorCertification = "certification"
	FactorLocation      = "location"
	FactorSize          = "size"
)

// MatchResult is one ranked recommendation. It is ephemeral: the engine
// produces it per query and never persists it.
type MatchResult struct {
	TenderID         string
	CompanyID        string
	VectorSimilarity float64
	StructuredScore  float64
	CompositeScore   float64
	MatchedFactors   []string
	Explanation      string // optional narrative, best-effort
	GeneratedAt      time.Time
}
