package indexer

import (
	"context"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/indexing"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// ProfileSource is a keyset cursor over the Profile Store.
type ProfileSource interface {
	Page(ctx context.Context, after string, limit int) ([]profile.Profile, error)
	SetIndexed(ctx context.Context, id string, indexed bool) error
}

// VectorStore writes embedding records and exposes their source hash.
type VectorStore interface {
	Upsert(ctx context.Context, rec *profile.Embedding) error
	GetTextHash(ctx context.Context, profileID string) (string, error)
}

// Embedder vectorizes profile text, singly or in batches.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Checkpoints persists the cursor between runs.
type Checkpoints interface {
	Load(ctx context.Context) (indexing.Checkpoint, bool, error)
	Save(ctx context.Context, cp indexing.Checkpoint) error
	Clear(ctx context.Context) error
}
