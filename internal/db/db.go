// Package db defines the storage contract shared by the redis and memory drivers.
package db

import (
	"context"
	"encoding/binary"
	"math"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
// Consumers depend on narrow sub-interfaces (ISP); the facade exists for the
// composition root only.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based record operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetIfNewer atomically replaces the hash at key unless the stored
	// numeric tsField exceeds ts, and reports whether it wrote. Replacing
	// instead of merging keeps fields absent from the new write from
	// lingering.
	HSetIfNewer(ctx context.Context, key string, fields map[string]string, tsField string, ts int64) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore provides simple key-value operations (embedding cache).
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides vector index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// KNNQuery describes a vector similarity search against one index.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchEntry is one hit: the record key, similarity in [0,1], and the
// requested return fields.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult is the outcome of a KNN search.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// Searcher provides search operations over vector indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}

// EncodeVector serializes a float32 vector to the little-endian binary layout
// used both by the RediSearch BLOB parameter and the hash field storage.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes a vector written by EncodeVector. Returns nil for
// payloads that are not a whole number of float32s.
func DecodeVector(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
