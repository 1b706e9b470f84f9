package health

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means matching still works without the embedding provider (filters only).
	Degraded Status = "degraded"
	// Unhealthy means the database is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Checks keys.
const (
	ComponentDatabase  = "database"
	ComponentEmbedding = "embedding"
)

// Report aggregates health check results. Profiles is -1 when the count is unavailable.
type Report struct {
	Status   Status
	Checks   map[string]CheckResult
	Profiles int64
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	profiles  ProfileCounter
}

// New creates a Service. embedding and profiles can be nil.
func New(db DBPinger, embedding EmbeddingChecker, profiles ProfileCounter) *Service {
	return &Service{db: db, embedding: embedding, profiles: profiles}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var mu sync.Mutex
	checks := make(map[string]CheckResult, 2)
	count := int64(-1)
	set := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	// Checks never fail the group: each outcome lands in the report.
	var g errgroup.Group
	g.Go(func() error {
		set(ComponentDatabase, s.db.Ping(ctx))
		return nil
	})
	if s.embedding != nil {
		g.Go(func() error {
			set(ComponentEmbedding, s.embedding.HealthCheck(ctx))
			return nil
		})
	}
	if s.profiles != nil {
		g.Go(func() error {
			if n, err := s.profiles.Count(ctx); err == nil {
				mu.Lock()
				count = n
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	switch {
	case checks[ComponentDatabase] == CheckError:
		status = Unhealthy
	case checks[ComponentEmbedding] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks, Profiles: count}
}
