package biorag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/biorag/internal/db"
	dbMemory "github.com/kailas-cloud/biorag/internal/db/memory"
	dbRedis "github.com/kailas-cloud/biorag/internal/db/redis"
	"github.com/kailas-cloud/biorag/internal/domain"
	"github.com/kailas-cloud/biorag/internal/metrics"
	recordrepo "github.com/kailas-cloud/biorag/internal/repository/record"
	searchrepo "github.com/kailas-cloud/biorag/internal/repository/search"
	openaiTransport "github.com/kailas-cloud/biorag/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/biorag/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/biorag/internal/usecase/health"
	queryuc "github.com/kailas-cloud/biorag/internal/usecase/query"
)

const defaultReadinessTimeout = 10 * time.Second

// queryUseCase is the internal interface for the pipeline.
type queryUseCase interface {
	Query(ctx context.Context, question string, topResults int) (domain.QueryResult, error)
}

// healthUseCase is the internal interface for health checks.
type healthUseCase interface {
	Initialize(ctx context.Context) error
	Ready() bool
	Check(ctx context.Context) healthuc.Report
}

// Client is the biorag SDK entry point.
type Client struct {
	store      db.Store
	embedder   domain.Embedder
	recordRepo *recordrepo.Repo
	querySvc   queryUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a biorag Client and connects to the store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions:  1536,
		embeddingModel:    "text-embedding-3-small",
		generationModel:   "gpt-4o-mini",
		defaultTopResults: 3,
		degradeOnFailure:  true,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("biorag: store not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	return wireClient(ctx, store, cfg, obs)
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("biorag: create redis store: %w", err)
		}
		return s, nil
	case "memory":
		return dbMemory.NewStore(), nil
	case "":
		return nil, errors.New("biorag: store required (use WithRedis or WithMemory)")
	default:
		return nil, fmt.Errorf("biorag: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	recordRepo := recordrepo.New(store, cfg.vectorDimensions)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		recordRepo = recordRepo.WithHNSW(recordrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}
	searchRepo := searchrepo.New(store)

	if err := recordRepo.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("biorag: ensure index: %w", err)
	}

	embedder := buildSDKEmbedder(cfg)
	generator := buildSDKGenerator(cfg)

	healthSvc := healthuc.New(store, nil, recordRepo, zap.NewNop())
	// Empty corpus is fine at construction time; readiness flips after
	// the first successful Ingest.
	_ = healthSvc.Initialize(ctx)

	cache := queryuc.NewResponseCache(metrics.QueryCacheTotal)
	querySvc := queryuc.New(embedder, searchRepo, generator, cache, queryuc.Config{
		DefaultTopResults: cfg.defaultTopResults,
		DegradeOnFailure:  cfg.degradeOnFailure,
	})

	return &Client{
		store:      store,
		embedder:   embedder,
		recordRepo: recordRepo,
		querySvc:   querySvc,
		healthSvc:  healthSvc,
		obs:        obs,
	}, nil
}

// buildSDKEmbedder returns the injected embedder, or an OpenAI embedder
// with transient-failure retry, or a provider that fails on first use.
func buildSDKEmbedder(cfg *clientConfig) domain.Embedder {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}
	}
	if cfg.openaiAPIKey != "" {
		base := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
			APIKey:     cfg.openaiAPIKey,
			BaseURL:    cfg.openaiBaseURL,
			Model:      cfg.embeddingModel,
			Dimensions: cfg.vectorDimensions,
			Logger:     zap.NewNop(),
		})
		retryCfg := embeddinguc.DefaultRetryConfig()
		retryCfg.IsRetryable = openaiTransport.IsTransient
		return embeddinguc.NewRetryingEmbedder(base, retryCfg, cfg.embeddingModel, zap.NewNop())
	}
	return noopEmbedder{}
}

func buildSDKGenerator(cfg *clientConfig) queryuc.Generator {
	if cfg.generator != nil {
		return cfg.generator
	}
	if cfg.openaiAPIKey != "" {
		return openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:  cfg.openaiAPIKey,
			BaseURL: cfg.openaiBaseURL,
			Model:   cfg.generationModel,
			Logger:  zap.NewNop(),
		})
	}
	return noopGenerator{}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Query runs the retrieval pipeline for one question. topResults <= 0
// selects the client default.
func (c *Client) Query(ctx context.Context, question string, topResults int) (res QueryResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err) }()

	r, err := c.querySvc.Query(ctx, question, topResults)
	if err != nil {
		return QueryResult{}, fmt.Errorf("query: %w", err)
	}

	sources := make([]ScoredRecord, len(r.Sources))
	for i, s := range r.Sources {
		sources[i] = ScoredRecord{
			Content:    s.Content,
			Metadata:   s.Metadata,
			Similarity: s.Similarity,
		}
	}
	return QueryResult{
		Answer:         r.Answer,
		Sources:        sources,
		ProcessingTime: r.ProcessingTime,
	}, nil
}

// Ingest embeds a record's content and stores it in the similarity index.
func (c *Client) Ingest(ctx context.Context, rec Record) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	if rec.ID == "" || rec.Content == "" {
		return fmt.Errorf("ingest: id and content are required: %w", domain.ErrInvalidInput)
	}

	emb, err := c.embedder.Embed(ctx, rec.Content)
	if err != nil {
		return fmt.Errorf("ingest: embed: %w", err)
	}

	if err = c.recordRepo.Upsert(ctx, domain.Record{
		ID:       rec.ID,
		Content:  rec.Content,
		Metadata: rec.Metadata,
		Vector:   emb.Embedding,
	}); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	if !c.healthSvc.Ready() {
		_ = c.healthSvc.Initialize(ctx)
	}
	return nil
}

// Status reports readiness and corpus size.
func (c *Client) Status(ctx context.Context) StatusInfo {
	report := c.healthSvc.Check(ctx)
	return StatusInfo{
		Ready:   report.Ready,
		Records: report.Records,
	}
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok" or "degraded"
	Checks map[string]string // component -> "ok"/"error"
}

// Health checks the health of all system components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"biorag: embedder not configured (use WithEmbedder or WithOpenAI)",
	)
}

// noopGenerator returns an error on Generate call (used when no generator configured).
type noopGenerator struct{}

func (noopGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	return "", errors.New(
		"biorag: generator not configured (use WithGenerator or WithOpenAI)",
	)
}
