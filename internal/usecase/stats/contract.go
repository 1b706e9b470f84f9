package stats

import (
	"context"

	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// ProfilePager is a keyset cursor over the Profile Store.
type ProfilePager interface {
	Page(ctx context.Context, after string, limit int) ([]profile.Profile, error)
	Count(ctx context.Context) (int64, error)
}

// VectorCounter reports the number of records in the Vector Index.
type VectorCounter interface {
	Count(ctx context.Context) (int64, error)
}
