package registration

import (
	"context"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// ProfileStore persists structured profile fields.
type ProfileStore interface {
	Create(ctx context.Context, p *profile.Profile) error
	Save(ctx context.Context, p *profile.Profile) error
	Get(ctx context.Context, id string) (profile.Profile, error)
	SetIndexed(ctx context.Context, id string, indexed bool) error
}

// VectorWriter stores embedding records.
type VectorWriter interface {
	Upsert(ctx context.Context, rec *profile.Embedding) error
	Delete(ctx context.Context, profileID string) error
}

// Embedder vectorizes profile text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
