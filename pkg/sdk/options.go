package biorag

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
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
	generator Generator

	openaiAPIKey     string
	openaiBaseURL    string
	embeddingModel   string
	generationModel  string
	vectorDimensions int

	hnswM           int
	hnswEFConstruct int

	defaultTopResults int
	degradeOnFailure  bool

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis instance with
// the search module loaded.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory uses an in-process store with exact brute-force search.
// Intended for tests and small corpora.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithEmbedder sets a custom text embedding provider.
// Takes precedence over WithOpenAI for embeddings.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithGenerator sets a custom answer generation provider.
// Takes precedence over WithOpenAI for generation.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithOpenAI configures OpenAI-compatible embedding and generation
// providers. baseURL may be empty for the default endpoint.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.openaiAPIKey = apiKey
		c.openaiBaseURL = baseURL
	})
}

// WithModels overrides the embedding and generation model names used
// with WithOpenAI. Defaults: text-embedding-3-small, gpt-4o-mini.
func WithModels(embedding, generation string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = embedding
		c.generationModel = generation
	})
}

// WithVectorDimensions sets the embedding dimensionality.
// Defaults to 1536 (text-embedding-3-small).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Defaults: M=32, EFConstruct=400.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithTopResults sets the default number of records retrieved per query.
// Default: 3.
func WithTopResults(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultTopResults = n
	})
}

// WithDegradeOnFailure controls whether a generation failure returns a
// sources-only result instead of an error. Default: true.
func WithDegradeOnFailure(enabled bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.degradeOnFailure = enabled
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
