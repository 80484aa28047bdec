package crawler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/procurelab/tendermatch/internal/domain"
	"github.com/procurelab/tendermatch/internal/enrich"
)

// template seeds one plausible synthetic tender.
type template struct {
	title    string
	desc     string
	cpvCodes []string
	buyer    string
	country  string
	minValue float64
	maxValue float64
	certs    []string
}

// sector classifies the template's CPV codes, so synthetic records carry the
// same sector vocabulary that enrichment produces for real ones.
func (t template) sector() string { return enrich.SectorForCodes(t.cpvCodes) }

// catalog holds realistic tender shapes keyed by nothing in particular; the
// generator samples it uniformly. CPV codes are real division prefixes.
var catalog = []template{
	{
		title:    "Road resurfacing and maintenance works",
		desc:     "Framework contract for resurfacing, pothole repair and winter maintenance of municipal roads.",
		cpvCodes: []string{"45233141", "45233222"},
		buyer:    "Municipality of Arden",
		country:  "BE",
		minValue: 200_000, maxValue: 4_000_000,
		certs: []string{"ISO9001"},
	},
	{
		title:    "School building renovation",
		desc:     "Renovation of classrooms, roof insulation and accessibility upgrades for a primary school campus.",
		cpvCodes: []string{"45214200"},
		buyer:    "Regional Education Board",
		country:  "NL",
		minValue: 500_000, maxValue: 8_000_000,
		certs: []string{"ISO9001", "VCA"},
	},
	{
		title:    "Managed IT services and service desk",
		desc:     "Outsourced operation of workplace IT, including a multilingual service desk and endpoint management.",
		cpvCodes: []string{"72500000", "72611000"},
		buyer:    "Federal Digital Agency",
		country:  "DE",
		minValue: 300_000, maxValue: 6_000_000,
		certs: []string{"ISO27001"},
	},
	{
		title:    "Case management software implementation",
		desc:     "Implementation and five-year support of a case management platform for social services.",
		cpvCodes: []string{"72222300", "48000000"},
		buyer:    "City of Esch",
		country:  "LU",
		minValue: 1_000_000, maxValue: 12_000_000,
		certs: []string{"ISO27001", "ISO9001"},
	},
	{
		title:    "Supply of medical imaging equipment",
		desc:     "Procurement, installation and maintenance of MRI and CT scanners for two regional hospitals.",
		cpvCodes: []string{"33111000", "33115000"},
		buyer:    "University Hospital Group",
		country:  "FR",
		minValue: 2_000_000, maxValue: 15_000_000,
	},
	{
		title:    "Rooftop solar installations on public buildings",
		desc:     "Design, supply and installation of photovoltaic systems on administrative buildings and depots.",
		cpvCodes: []string{"09331200", "45261215"},
		buyer:    "Provincial Energy Office",
		country:  "ES",
		minValue: 400_000, maxValue: 5_000_000,
		certs: []string{"ISO14001"},
	},
	{
		title:    "Regional bus transport concession",
		desc:     "Operation of regional bus lines, including fleet provision and passenger information systems.",
		cpvCodes: []string{"60112000"},
		buyer:    "Transport Authority North",
		country:  "IT",
		minValue: 5_000_000, maxValue: 40_000_000,
	},
	{
		title:    "Catering services for public schools",
		desc:     "Daily preparation and delivery of school meals with organic sourcing requirements.",
		cpvCodes: []string{"55523100"},
		buyer:    "District School Association",
		country:  "AT",
		minValue: 150_000, maxValue: 2_000_000,
	},
}

// Generator fabricates plausible tenders when no real source is available.
// Deadlines always land in the future so generated records survive the
// expiry filter.
type Generator struct {
	name      string
	batchSize int

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a synthetic source. A nil rng falls back to a
// time-seeded one; tests pass a fixed seed for reproducibility.
func NewGenerator(name string, batchSize int, rng *rand.Rand) *Generator {
	if name == "" {
		name = "synthetic"
	}
	if batchSize <= 0 {
		batchSize = 10
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{name: name, batchSize: batchSize, rng: rng, now: time.Now}
}

// Name implements Source.
func (g *Generator) Name() string { return g.name }

// Search implements Source. All records carry synthetic provenance. Filters
// narrow the catalog before sampling, so a filtered crawl still fills the
// requested batch as long as any template matches.
func (g *Generator) Search(_ context.Context, f Filters) (Batch, error) {
	n := g.batchSize
	if f.MaxResults > 0 && f.MaxResults < n {
		n = f.MaxResults
	}

	pool := make([]template, 0, len(catalog))
	for _, tpl := range catalog {
		if matchesFilters(tpl, f) {
			pool = append(pool, tpl)
		}
	}
	if len(pool) == 0 {
		return Batch{Provenance: domain.ProvenanceSynthetic}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	records := make([]domain.TenderRecord, 0, n)
	for i := 0; i < n; i++ {
		tpl := pool[g.rng.Intn(len(pool))]

		value := tpl.minValue + g.rng.Float64()*(tpl.maxValue-tpl.minValue)
		published := now.AddDate(0, 0, -g.rng.Intn(14))
		deadline := now.AddDate(0, 0, 14+g.rng.Intn(60))

		records = append(records, domain.TenderRecord{
			ID:              fmt.Sprintf("%s-%d-%04d", g.name, now.Unix(), g.rng.Intn(10000)),
			Source:          g.name,
			Title:           tpl.title,
			Description:     tpl.desc,
			Buyer:           tpl.buyer,
			CPVCodes:        tpl.cpvCodes,
			Sector:          tpl.sector(),
			Country:         tpl.country,
			RequiredCerts:   tpl.certs,
			EstimatedValue:  value,
			Currency:        "EUR",
			PublicationDate: published,
			Deadline:        deadline,
			Provenance:      domain.ProvenanceSynthetic,
			UpdatedAt:       now,
		})
	}

	return Batch{Records: records, Provenance: domain.ProvenanceSynthetic}, nil
}

func matchesFilters(tpl template, f Filters) bool {
	if len(f.Sectors) > 0 && !contains(f.Sectors, tpl.sector()) {
		return false
	}
	if len(f.Countries) > 0 && !contains(f.Countries, tpl.country) {
		return false
	}
	return true
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
