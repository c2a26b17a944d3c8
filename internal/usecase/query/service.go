// Package query implements the retrieval-augmented query pipeline:
// cache check, question embedding, top-K similarity search, context
// assembly, and grounded answer generation.
package query

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/biorag/internal/domain"
	"github.com/kailas-cloud/biorag/internal/logger"
	"github.com/kailas-cloud/biorag/internal/metrics"
)

// StageTimeouts bounds each remote call independently so one slow
// collaborator cannot consume the whole request budget.
type StageTimeouts struct {
	Embed    time.Duration
	Search   time.Duration
	Generate time.Duration
}

// DefaultStageTimeouts returns the recommended per-stage budgets.
func DefaultStageTimeouts() StageTimeouts {
	return StageTimeouts{
		Embed:    20 * time.Second,
		Search:   10 * time.Second,
		Generate: 30 * time.Second,
	}
}

// Config holds pipeline policy knobs.
type Config struct {
	DefaultTopResults int  // used when the request does not specify top_results
	MaxTopResults     int  // hard cap on requested top_results; 0 = uncapped
	DegradeOnFailure  bool // generator failure returns sources-only instead of an error
	Timeouts          StageTimeouts
}

// ApplyDefaults fills zero fields with pipeline defaults.
func (c *Config) ApplyDefaults() {
	if c.DefaultTopResults <= 0 {
		c.DefaultTopResults = 3
	}
	def := DefaultStageTimeouts()
	if c.Timeouts.Embed <= 0 {
		c.Timeouts.Embed = def.Embed
	}
	if c.Timeouts.Search <= 0 {
		c.Timeouts.Search = def.Search
	}
	if c.Timeouts.Generate <= 0 {
		c.Timeouts.Generate = def.Generate
	}
}

// Service is the query orchestrator. All collaborators are injected so
// each can be replaced with a fake in tests.
type Service struct {
	embed    Embedder
	search   Searcher
	generate Generator
	cache    *ResponseCache
	ready    ReadinessChecker
	cfg      Config
}

// New creates the orchestrator.
func New(embed Embedder, search Searcher, generate Generator, cache *ResponseCache, cfg Config) *Service {
	cfg.ApplyDefaults()
	return &Service{
		embed:    embed,
		search:   search,
		generate: generate,
		cache:    cache,
		cfg:      cfg,
	}
}

// WithReadiness gates queries behind the given readiness checker.
func (s *Service) WithReadiness(r ReadinessChecker) *Service {
	s.ready = r
	return s
}

// Query runs the full pipeline for one question and returns the result
// with wall-clock processing time. topResults <= 0 selects the default.
func (s *Service) Query(ctx context.Context, rawQuestion string, topResults int) (domain.QueryResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	question, err := domain.NewQuestion(rawQuestion)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
		return domain.QueryResult{}, err
	}

	if s.ready != nil && !s.ready.Ready() {
		metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
		return domain.QueryResult{}, fmt.Errorf("readiness gate: %w", domain.ErrNotReady)
	}

	if topResults <= 0 {
		topResults = s.cfg.DefaultTopResults
	}
	if s.cfg.MaxTopResults > 0 && topResults > s.cfg.MaxTopResults {
		topResults = s.cfg.MaxTopResults
	}

	key := question.CacheKey()
	if cached, ok := s.cache.Get(key); ok {
		metrics.QueryRequestsTotal.WithLabelValues("cached").Inc()
		log.Info("Returning cached result", zap.String("cache_key", key))
		return cached, nil
	}

	vector, err := s.embedStage(ctx, question)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
		return domain.QueryResult{}, err
	}

	sources, err := s.searchStage(ctx, vector, topResults)
	if err != nil {
		metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
		return domain.QueryResult{}, err
	}

	if len(sources) == 0 {
		result := s.finish(domain.NoResultsAnswer, []domain.ScoredRecord{}, start)
		s.cache.Put(key, result)
		metrics.QueryRequestsTotal.WithLabelValues("no_results").Inc()
		log.Info("No relevant records found")
		return result, nil
	}

	answer, err := s.generateStage(ctx, question, sources)
	if err != nil {
		if !s.cfg.DegradeOnFailure {
			metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
			return domain.QueryResult{}, err
		}
		// Degraded: the retrieved sources are still a useful response.
		// Not cached, so a recovered generator can answer next time.
		metrics.QueryRequestsTotal.WithLabelValues("degraded").Inc()
		log.Warn("Answer generation failed, returning sources only", zap.Error(err))
		return s.finish(domain.DegradedAnswer, sources, start), nil
	}

	result := s.finish(answer, sources, start)
	s.cache.Put(key, result)
	metrics.QueryRequestsTotal.WithLabelValues("ok").Inc()
	log.Info("Query completed",
		zap.Int("sources", len(sources)),
		zap.String("processing_time", result.ProcessingTime),
	)
	return result, nil
}

func (s *Service) embedStage(ctx context.Context, q domain.Question) ([]float32, error) {
	ctx, cancel := stageContext(ctx, s.cfg.Timeouts.Embed)
	defer cancel()

	start := time.Now()
	res, err := s.embed.Embed(ctx, q.EmbeddingText())
	metrics.QueryStageDuration.WithLabelValues("embedding").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	return res.Embedding, nil
}

func (s *Service) searchStage(ctx context.Context, vector []float32, limit int) ([]domain.ScoredRecord, error) {
	ctx, cancel := stageContext(ctx, s.cfg.Timeouts.Search)
	defer cancel()

	start := time.Now()
	sources, err := s.search.Search(ctx, vector, limit)
	metrics.QueryStageDuration.WithLabelValues("searching").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	return sources, nil
}

func (s *Service) generateStage(ctx context.Context, q domain.Question, sources []domain.ScoredRecord) (string, error) {
	ctx, cancel := stageContext(ctx, s.cfg.Timeouts.Generate)
	defer cancel()

	start := time.Now()
	answer, err := s.generate.Generate(ctx, q.Raw(), AssembleContext(sources))
	metrics.QueryStageDuration.WithLabelValues("generating").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

func (s *Service) finish(answer string, sources []domain.ScoredRecord, start time.Time) domain.QueryResult {
	return domain.QueryResult{
		Answer:         answer,
		Sources:        sources,
		ProcessingTime: fmt.Sprintf("%.2fs", time.Since(start).Seconds()),
		Status:         200,
	}
}

func stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
