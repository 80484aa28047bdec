package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/procurelab/tendermatch/internal/db"
)

func newIndexedStore(t *testing.T, dim int) *Store {
	t.Helper()
	s := NewStore()
	def := db.NewIndex("tenders:idx").Prefix("tenders:").VectorFlat("vector", dim).Build()
	if err := s.CreateIndex(context.Background(), def); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	return s
}

func putVector(t *testing.T, s *Store, key string, vec []float32) {
	t.Helper()
	err := s.HSet(context.Background(), key, map[string]string{
		"vector": string(db.EncodeVector(vec)),
	})
	if err != nil {
		t.Fatalf("HSet: %v", err)
	}
}

func TestHSetIfNewer_DropsOlderWrite(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	written, err := s.HSetIfNewer(ctx, "tenders:t1",
		map[string]string{"title": "newer", "updated_at_ns": "200"}, "updated_at_ns", 200)
	if err != nil || !written {
		t.Fatalf("first write: written=%v err=%v", written, err)
	}

	written, err = s.HSetIfNewer(ctx, "tenders:t1",
		map[string]string{"title": "older", "updated_at_ns": "100"}, "updated_at_ns", 100)
	if err != nil {
		t.Fatalf("stale write: %v", err)
	}
	if written {
		t.Error("stale write reported as written")
	}

	fields, err := s.HGetAll(ctx, "tenders:t1")
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if fields["title"] != "newer" {
		t.Errorf("title = %q, stale write clobbered the newer record", fields["title"])
	}
}

func TestHSetIfNewer_ReplacesWholeHash(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, err := s.HSetIfNewer(ctx, "tenders:t1",
		map[string]string{"title": "a", "deadline": "2026-09-01", "updated_at_ns": "100"},
		"updated_at_ns", 100); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := s.HSetIfNewer(ctx, "tenders:t1",
		map[string]string{"title": "b", "updated_at_ns": "200"},
		"updated_at_ns", 200); err != nil {
		t.Fatalf("second write: %v", err)
	}

	fields, err := s.HGetAll(ctx, "tenders:t1")
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if _, ok := fields["deadline"]; ok {
		t.Error("deadline survived a rewrite that no longer carries it")
	}
	if fields["title"] != "b" {
		t.Errorf("title = %q, want b", fields["title"])
	}
}

func TestHSetIfNewer_ConcurrentWritersConverge(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			fields := map[string]string{"updated_at_ns": strconv.FormatInt(ts, 10)}
			if _, err := s.HSetIfNewer(ctx, "tenders:t1", fields, "updated_at_ns", ts); err != nil {
				t.Errorf("HSetIfNewer(%d): %v", ts, err)
			}
		}(int64(i))
	}
	wg.Wait()

	fields, err := s.HGetAll(ctx, "tenders:t1")
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if fields["updated_at_ns"] != "50" {
		t.Errorf("final updated_at_ns = %s, want 50: an older writer won the race", fields["updated_at_ns"])
	}
}

func TestSearchKNN_SelfSimilarityIsOne(t *testing.T) {
	s := newIndexedStore(t, 3)
	self := []float32{0.3, 0.5, 0.2}
	putVector(t, s, "tenders:t1", self)
	putVector(t, s, "tenders:t2", []float32{-0.3, 0.1, 0.9})

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "tenders:idx", Vector: self, K: 10,
	})
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	if res.Entries[0].Key != "tenders:t1" {
		t.Errorf("expected self match first, got %s", res.Entries[0].Key)
	}
	if res.Entries[0].Score != 1.0 {
		t.Errorf("self similarity = %g, want 1.0", res.Entries[0].Score)
	}
}

func TestSearchKNN_TieBreakAscendingKey(t *testing.T) {
	s := newIndexedStore(t, 2)
	v := []float32{1, 0}
	putVector(t, s, "tenders:b", v)
	putVector(t, s, "tenders:a", v)
	putVector(t, s, "tenders:c", v)

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "tenders:idx", Vector: v, K: 3,
	})
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}
	keys := []string{res.Entries[0].Key, res.Entries[1].Key, res.Entries[2].Key}
	want := []string{"tenders:a", "tenders:b", "tenders:c"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("tie-break order = %v, want %v", keys, want)
		}
	}
}

func TestSearchKNN_RespectsKAndPrefix(t *testing.T) {
	s := newIndexedStore(t, 2)
	putVector(t, s, "tenders:t1", []float32{1, 0})
	putVector(t, s, "tenders:t2", []float32{0.9, 0.1})
	putVector(t, s, "companies:c1", []float32{1, 0}) // outside the index prefix

	res, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "tenders:idx", Vector: []float32{1, 0}, K: 1,
	})
	if err != nil {
		t.Fatalf("SearchKNN: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected K=1 entry, got %d", len(res.Entries))
	}
	if res.Entries[0].Key != "tenders:t1" {
		t.Errorf("expected tenders:t1, got %s", res.Entries[0].Key)
	}
}

func TestSearchKNN_UnknownIndex(t *testing.T) {
	s := NewStore()
	_, err := s.SearchKNN(context.Background(), &db.KNNQuery{
		IndexName: "missing", Vector: []float32{1}, K: 1,
	})
	if !errors.Is(err, db.ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
}

func TestKV_TTLExpiry(t *testing.T) {
	s := NewStore()
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("SetWithTTL: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after expiry, got %v", err)
	}
}

func TestDel_Idempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if err := s.Del(ctx, "absent"); err != nil {
		t.Fatalf("deleting a nonexistent key should not fail: %v", err)
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out := db.DecodeVector(db.EncodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("round-trip length %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %g != %g", i, out[i], in[i])
		}
	}
	if db.DecodeVector([]byte{1, 2, 3}) != nil {
		t.Error("truncated payload should decode to nil")
	}
}
