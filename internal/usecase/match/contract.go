package match

import (
	"context"

	"github.com/kailas-cloud/matchdex/internal/domain"
	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// ProfileReader hydrates candidates and resolves the seed profile.
type ProfileReader interface {
	Get(ctx context.Context, id string) (profile.Profile, error)
	GetMany(ctx context.Context, ids []string) ([]profile.Profile, error)
}

// VectorIndex runs constrained similarity search and exposes stored vectors.
type VectorIndex interface {
	Search(ctx context.Context, vec []float32, k int, f *dommatch.Filters) ([]dommatch.Hit, error)
	GetVector(ctx context.Context, profileID string) ([]float32, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
