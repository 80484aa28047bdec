package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/crawler"
	"github.com/procurelab/tendermatch/internal/domain"
)

type fakeTenderWriter struct {
	mu        sync.Mutex
	upserts   []domain.TenderRecord
	upsertErr map[string]error
}

func (f *fakeTenderWriter) EnsureIndex(context.Context) error { return nil }

func (f *fakeTenderWriter) Upsert(_ context.Context, rec *domain.TenderRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[rec.ID]; err != nil {
		return err
	}
	f.upserts = append(f.upserts, *rec)
	return nil
}

type fakeCompanyStore struct {
	profiles map[string]domain.CompanyProfile
}

func newFakeCompanyStore() *fakeCompanyStore {
	return &fakeCompanyStore{profiles: make(map[string]domain.CompanyProfile)}
}

func (f *fakeCompanyStore) Upsert(_ context.Context, p *domain.CompanyProfile) error {
	f.profiles[p.ID] = *p
	return nil
}

func (f *fakeCompanyStore) Get(_ context.Context, id string) (domain.CompanyProfile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return domain.CompanyProfile{}, domain.ErrCompanyNotFound
	}
	return p, nil
}

func (f *fakeCompanyStore) Delete(_ context.Context, id string) error {
	delete(f.profiles, id)
	return nil
}

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	failOn string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return domain.EmbeddingResult{}, fmt.Errorf("provider down: %w", domain.ErrEmbeddingUnavailable)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 2}, nil
}

type staticSource struct {
	name  string
	batch crawler.Batch
	err   error
}

func (s *staticSource) Name() string { return s.name }
func (s *staticSource) Search(context.Context, crawler.Filters) (crawler.Batch, error) {
	return s.batch, s.err
}

type staticResolver struct {
	sources map[string]crawler.Source
}

func (r *staticResolver) Resolve(name string) (crawler.Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", name, domain.ErrUnknownSource)
	}
	return s, nil
}

func (r *staticResolver) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

func crawledTender(id, title string) domain.TenderRecord {
	pub := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	return domain.TenderRecord{
		ID:              id,
		Source:          "ted",
		Title:           title,
		Description:     "Scope of works including planning and delivery.",
		CPVCodes:        []string{"45233222"},
		Country:         "BE",
		EstimatedValue:  500000,
		Currency:        "EUR",
		PublicationDate: pub,
		Deadline:        pub.AddDate(0, 2, 0),
		Provenance:      domain.ProvenanceReal,
		UpdatedAt:       pub,
	}
}

func newTestService(sources map[string]crawler.Source) (*Service, *fakeTenderWriter, *fakeCompanyStore, *fakeEmbedder) {
	tenders := &fakeTenderWriter{upsertErr: map[string]error{}}
	companies := newFakeCompanyStore()
	embedder := &fakeEmbedder{}
	svc := New(tenders, companies, embedder, &staticResolver{sources: sources}, zap.NewNop())
	return svc, tenders, companies, embedder
}

func TestIngestSource_EnrichesEmbedsAndStores(t *testing.T) {
	src := &staticSource{
		name: "ted",
		batch: crawler.Batch{
			Records:    []domain.TenderRecord{crawledTender("t-1", "Road resurfacing works")},
			Provenance: domain.ProvenanceReal,
			Dropped:    2,
		},
	}
	svc, tenders, _, _ := newTestService(map[string]crawler.Source{"ted": src})

	report, err := svc.IngestSource(context.Background(), "ted", crawler.Filters{})
	if err != nil {
		t.Fatalf("IngestSource: %v", err)
	}
	if report.Crawled != 1 || report.Indexed != 1 || report.Dropped != 2 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}

	if len(tenders.upserts) != 1 {
		t.Fatalf("got %d upserts", len(tenders.upserts))
	}
	stored := tenders.upserts[0]
	if stored.Sector != "Construction" {
		t.Errorf("Sector = %q, want Construction (from CPV 45)", stored.Sector)
	}
	if len(stored.Keywords) == 0 {
		t.Error("keywords not derived")
	}
	if stored.Complexity <= 0 || stored.Complexity > 1 {
		t.Errorf("Complexity = %v", stored.Complexity)
	}
	if len(stored.Embedding) == 0 {
		t.Error("embedding not attached")
	}
}

func TestIngestSource_UnknownSource(t *testing.T) {
	svc, _, _, _ := newTestService(map[string]crawler.Source{})

	_, err := svc.IngestSource(context.Background(), "nope", crawler.Filters{})
	if !errors.Is(err, domain.ErrUnknownSource) {
		t.Fatalf("err = %v, want ErrUnknownSource", err)
	}
}

func TestIngestSource_SkipsFailedRecords(t *testing.T) {
	good := crawledTender("t-good", "Road resurfacing works")
	badEmbed := crawledTender("t-bad-embed", "UNEMBEDDABLE tender")
	badStore := crawledTender("t-bad-store", "School renovation")

	src := &staticSource{
		name: "ted",
		batch: crawler.Batch{
			Records:    []domain.TenderRecord{good, badEmbed, badStore},
			Provenance: domain.ProvenanceReal,
		},
	}
	svc, tenders, _, embedder := newTestService(map[string]crawler.Source{"ted": src})
	embedder.failOn = "UNEMBEDDABLE"
	tenders.upsertErr["t-bad-store"] = errors.New("write refused")

	report, err := svc.IngestSource(context.Background(), "ted", crawler.Filters{})
	if err != nil {
		t.Fatalf("IngestSource: %v", err)
	}
	if report.Indexed != 1 {
		t.Errorf("Indexed = %d, want 1", report.Indexed)
	}
	if report.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", report.Skipped)
	}
	if len(tenders.upserts) != 1 || tenders.upserts[0].ID != "t-good" {
		t.Errorf("upserts = %v", tenders.upserts)
	}
}

func TestIngestSource_CrawlErrorAborts(t *testing.T) {
	src := &staticSource{name: "ted", err: fmt.Errorf("boom: %w", domain.ErrUpstreamUnavailable)}
	svc, _, _, _ := newTestService(map[string]crawler.Source{"ted": src})

	_, err := svc.IngestSource(context.Background(), "ted", crawler.Filters{})
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestIngestAll_FansOutAndSurvivesFailures(t *testing.T) {
	okSrc := &staticSource{
		name: "ted",
		batch: crawler.Batch{
			Records:    []domain.TenderRecord{crawledTender("t-1", "Road resurfacing works")},
			Provenance: domain.ProvenanceReal,
		},
	}
	deadSrc := &staticSource{name: "dead", err: errors.New("down")}

	svc, _, _, _ := newTestService(map[string]crawler.Source{"ted": okSrc, "dead": deadSrc})

	reports := svc.IngestAll(context.Background(), crawler.Filters{})
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}
	if reports[0].Source != "dead" || reports[1].Source != "ted" {
		t.Errorf("report order = [%s %s], want sorted by source name",
			reports[0].Source, reports[1].Source)
	}

	byName := map[string]Report{}
	for _, r := range reports {
		byName[r.Source] = r
	}
	if byName["ted"].Indexed != 1 {
		t.Errorf("ted report = %+v", byName["ted"])
	}
	if byName["dead"].Indexed != 0 {
		t.Errorf("dead report = %+v", byName["dead"])
	}
}

func TestIndexCompany_EmbedsAndStores(t *testing.T) {
	svc, _, _, _ := newTestService(map[string]crawler.Source{})

	profile := &domain.CompanyProfile{
		ID:          "c-1",
		Name:        "NordBuild BV",
		Description: "Civil engineering contractor",
		Sectors:     []string{"Construction"},
	}
	if err := svc.IndexCompany(context.Background(), profile); err != nil {
		t.Fatalf("IndexCompany: %v", err)
	}

	stored, err := svc.GetCompany(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("GetCompany: %v", err)
	}
	if len(stored.Embedding) == 0 {
		t.Error("embedding not attached")
	}
	if stored.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestIndexCompany_RejectsInvalidProfile(t *testing.T) {
	svc, _, _, embedder := newTestService(map[string]crawler.Source{})

	err := svc.IndexCompany(context.Background(), &domain.CompanyProfile{ID: "c-1"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for invalid profile", embedder.calls)
	}
}
