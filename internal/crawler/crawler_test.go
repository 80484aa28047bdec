package crawler

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/procurelab/tendermatch/internal/domain"
	"github.com/procurelab/tendermatch/internal/enrich"
)

func TestGenerator_ProducesValidFutureTenders(t *testing.T) {
	g := NewGenerator("synthetic", 20, rand.New(rand.NewSource(42)))
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	batch, err := g.Search(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if batch.Provenance != domain.ProvenanceSynthetic {
		t.Errorf("Provenance = %q", batch.Provenance)
	}
	if len(batch.Records) != 20 {
		t.Fatalf("got %d records, want full batch of 20", len(batch.Records))
	}

	for _, rec := range batch.Records {
		if err := rec.Validate(); err != nil {
			t.Errorf("record %s invalid: %v", rec.ID, err)
		}
		if rec.Provenance != domain.ProvenanceSynthetic {
			t.Errorf("record %s provenance = %q", rec.ID, rec.Provenance)
		}
		if !rec.Deadline.After(now) {
			t.Errorf("record %s deadline %v not in the future", rec.ID, rec.Deadline)
		}
		if rec.EstimatedValue <= 0 {
			t.Errorf("record %s has value %v", rec.ID, rec.EstimatedValue)
		}
	}
}

func TestGenerator_RespectsMaxResults(t *testing.T) {
	g := NewGenerator("synthetic", 20, rand.New(rand.NewSource(1)))

	batch, err := g.Search(context.Background(), Filters{MaxResults: 3})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(batch.Records) != 3 {
		t.Errorf("got %d records, want exactly 3", len(batch.Records))
	}
}

func TestGenerator_SectorFilterFillsBatch(t *testing.T) {
	g := NewGenerator("synthetic", 10, rand.New(rand.NewSource(42)))

	batch, err := g.Search(context.Background(), Filters{Sectors: []string{"IT"}, MaxResults: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(batch.Records) != 10 {
		t.Fatalf("got %d records, want 10: filtering must not shrink the batch", len(batch.Records))
	}
	for _, rec := range batch.Records {
		if rec.Sector != "IT" {
			t.Errorf("record %s sector = %q", rec.ID, rec.Sector)
		}
	}
}

func TestGenerator_NoMatchingTemplates(t *testing.T) {
	g := NewGenerator("synthetic", 10, rand.New(rand.NewSource(7)))

	batch, err := g.Search(context.Background(), Filters{Sectors: []string{"Agriculture"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(batch.Records) != 0 {
		t.Errorf("got %d records for an unmatched sector, want none", len(batch.Records))
	}
}

func TestGenerator_SectorsFollowCPVClassification(t *testing.T) {
	g := NewGenerator("synthetic", 40, rand.New(rand.NewSource(11)))

	batch, err := g.Search(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, rec := range batch.Records {
		if want := enrich.SectorForCodes(rec.CPVCodes); rec.Sector != want {
			t.Errorf("record %s sector = %q, CPV %v classifies as %q",
				rec.ID, rec.Sector, rec.CPVCodes, want)
		}
	}
}

func TestGenerator_DeterministicWithSeed(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	run := func() []domain.TenderRecord {
		g := NewGenerator("synthetic", 5, rand.New(rand.NewSource(99)))
		g.now = func() time.Time { return now }
		batch, err := g.Search(context.Background(), Filters{})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		return batch.Records
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Title != b[i].Title {
			t.Errorf("record %d differs: %s vs %s", i, a[i].ID, b[i].ID)
		}
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("nope")
	if !errors.Is(err, domain.ErrUnknownSource) {
		t.Fatalf("err = %v, want ErrUnknownSource", err)
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	g := NewGenerator("synthetic", 5, rand.New(rand.NewSource(1)))
	r.Register(g)

	s, err := r.Resolve("synthetic")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Name() != "synthetic" {
		t.Errorf("Name = %q", s.Name())
	}
	if names := r.Names(); len(names) != 1 || names[0] != "synthetic" {
		t.Errorf("Names = %v", names)
	}
}

type failingSource struct {
	name string
	err  error
}

func (f *failingSource) Name() string { return f.name }
func (f *failingSource) Search(context.Context, Filters) (Batch, error) {
	return Batch{}, f.err
}

func TestFallback_DegradesToBackup(t *testing.T) {
	primary := &failingSource{name: "ted", err: errors.New("upstream down")}
	backup := NewGenerator("ted", 5, rand.New(rand.NewSource(3)))
	s := WithFallback(primary, backup, zap.NewNop())

	if s.Name() != "ted" {
		t.Errorf("Name = %q", s.Name())
	}

	batch, err := s.Search(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if batch.Provenance != domain.ProvenanceSynthetic {
		t.Errorf("Provenance = %q, want synthetic", batch.Provenance)
	}
	if len(batch.Records) == 0 {
		t.Error("backup produced no records")
	}
}

func TestFallback_PassesThroughSuccess(t *testing.T) {
	primary := NewGenerator("ted", 2, rand.New(rand.NewSource(4)))
	backup := &failingSource{name: "ted", err: errors.New("should not be called")}
	s := WithFallback(primary, backup, zap.NewNop())

	batch, err := s.Search(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(batch.Records) == 0 {
		t.Error("primary produced no records")
	}
}

func TestFallback_NoBackupOnCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &failingSource{name: "ted", err: context.Canceled}
	backup := NewGenerator("ted", 5, rand.New(rand.NewSource(5)))
	s := WithFallback(primary, backup, zap.NewNop())

	_, err := s.Search(ctx, Filters{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
