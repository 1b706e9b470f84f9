package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// ProfileCounter reports the number of stored profiles.
type ProfileCounter interface {
	Count(ctx context.Context) (int64, error)
}
