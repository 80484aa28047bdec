package tendermatch

import (
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "redis" or "memory"
	addrs    []string
	password string

	embedder  Embedder
	keyPrefix string

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int

	weights  *Weights
	poolSize int
	topN     int

	sources []Source

	logger *zap.Logger
}

// WithRedis connects the client to a Redis instance with RediSearch.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemoryStore keeps all records in process memory with exact-scan
// similarity search. This is the default; use it for tests and demos.
func WithMemoryStore() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithEmbedder sets the text embedding provider. Required: both tenders and
// company profiles are vectorized on write.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithKeyPrefix namespaces all store keys. Default: "tendermatch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithVectorDimensions sets the embedding dimension. Default: 1536.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithWeights overrides the ranking weights.
func WithWeights(w Weights) Option {
	return optionFunc(func(c *clientConfig) {
		c.weights = &w
	})
}

// WithLimits sets the default candidate pool size and result count.
func WithLimits(poolSize, topN int) Option {
	return optionFunc(func(c *clientConfig) {
		c.poolSize = poolSize
		c.topN = topN
	})
}

// WithSource registers an additional tender source for Ingest.
// The built-in synthetic generator is always available.
func WithSource(s Source) Option {
	return optionFunc(func(c *clientConfig) {
		c.sources = append(c.sources, s)
	})
}

// WithLogger enables structured logging. Default: no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
