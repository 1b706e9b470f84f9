package importer

import (
	"context"

	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// ProfileWriter creates profiles in the Profile Store.
type ProfileWriter interface {
	Create(ctx context.Context, p *profile.Profile) error
	CreateMany(ctx context.Context, ps []profile.Profile) error
}
