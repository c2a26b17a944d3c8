package health

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Ready   bool
	Records int
	Checks  map[string]CheckResult
}

// Service coordinates health checks and owns the startup readiness gate.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	records   RecordCounter
	logger    *zap.Logger
	ready     atomic.Bool
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, embedding EmbeddingChecker, records RecordCounter, logger *zap.Logger) *Service {
	return &Service{db: db, embedding: embedding, records: records, logger: logger}
}

// Initialize runs the startup smoke test: the store must answer and the
// record corpus must be non-empty before queries are admitted. Called
// once from main; an error leaves the service not ready (503 on /query)
// but the process still serves /health for diagnosis.
func (s *Service) Initialize(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database smoke test: %w", err)
	}

	count, err := s.records.Count(ctx)
	if err != nil {
		return fmt.Errorf("record count check: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("no records ingested yet")
	}

	s.ready.Store(true)
	s.logger.Info("System initialized", zap.Int("records", count))
	return nil
}

// Ready reports whether the startup gate has passed.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.embedding != nil {
		if err := s.embedding.HealthCheck(ctx); err != nil {
			checks["embedding"] = CheckError
		} else {
			checks["embedding"] = CheckOK
		}
	}

	count := 0
	if n, err := s.records.Count(ctx); err != nil {
		checks["records"] = CheckError
	} else {
		checks["records"] = CheckOK
		count = n
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Ready: s.Ready(), Records: count, Checks: checks}
}
