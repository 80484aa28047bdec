package match

import (
	"strings"

	"github.com/procurelab/tendermatch/internal/domain"
)

// Weights control the blend of the composite score. Alpha weighs semantic
// similarity against the structured score; the factor weights weigh the
// structured sub-scores against each other.
type Weights struct {
	Alpha    float64
	Sector   float64
	Cert     float64
	Location float64
	Size     float64
}

// DefaultWeights mirror the configuration defaults.
func DefaultWeights() Weights {
	return Weights{Alpha: 0.6, Sector: 0.25, Cert: 0.25, Location: 0.25, Size: 0.25}
}

// sizeRankForValue buckets a tender's estimated value onto the company size
// scale, so a micro company is not pushed toward a 40M concession.
func sizeRankForValue(value float64) int {
	switch {
	case value < 100_000:
		return domain.SizeMicro.Rank()
	case value < 1_000_000:
		return domain.SizeSmall.Rank()
	case value < 10_000_000:
		return domain.SizeMedium.Rank()
	default:
		return domain.SizeLarge.Rank()
	}
}

// structuredScore computes the rule-based fit of a tender for a company.
// Each sub-score lands in [0,1]; the result is their weighted mean. Factors
// that fully match are reported by name for the API response.
func structuredScore(company *domain.CompanyProfile, rec *domain.TenderRecord, w Weights) (float64, []string) {
	var matched []string

	sector := 0.0
	if rec.Sector != "" && containsFold(company.Sectors, rec.Sector) {
		sector = 1.0
		matched = append(matched, domain.FactorSector)
	}

	cert := certCoverage(company.Certifications, rec.RequiredCerts)
	if cert == 1.0 && len(rec.RequiredCerts) > 0 {
		matched = append(matched, domain.FactorCertification)
	}

	location := 0.0
	if rec.Country != "" && strings.EqualFold(company.Location, rec.Country) {
		location = 1.0
		matched = append(matched, domain.FactorLocation)
	}

	size := sizeFit(company.Size, rec.EstimatedValue)
	if size == 1.0 {
		matched = append(matched, domain.FactorSize)
	}

	total := w.Sector + w.Cert + w.Location + w.Size
	if total == 0 {
		return 0, matched
	}
	score := (w.Sector*sector + w.Cert*cert + w.Location*location + w.Size*size) / total
	return score, matched
}

// certCoverage is the fraction of required certifications the company holds.
// A tender without requirements is fully covered.
func certCoverage(held, required []string) float64 {
	if len(required) == 0 {
		return 1.0
	}
	var have int
	for _, req := range required {
		if containsFold(held, req) {
			have++
		}
	}
	return float64(have) / float64(len(required))
}

// sizeFit grades how close the company's size bucket is to the tender's
// value bucket. A company of unknown size scores neutral.
func sizeFit(size domain.SizeCategory, value float64) float64 {
	companyRank := size.Rank()
	if companyRank < 0 {
		return 0.5
	}
	diff := companyRank - sizeRankForValue(value)
	if diff < 0 {
		diff = -diff
	}
	return 1.0 - float64(diff)/3.0
}

// composite blends semantic similarity with the structured score.
func composite(vectorSim, structured float64, w Weights) float64 {
	return w.Alpha*vectorSim + (1.0-w.Alpha)*structured
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
