// Package registration creates profiles and makes them searchable.
package registration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// Result reports how far a registration got.
//
// Indexed is true once the vector record exists and the profile is flagged.
// Deferred is true when embedding or indexing failed and the profile waits,
// filter-only, for the next indexer run.
type Result struct {
	Profile  profile.Profile
	Indexed  bool
	Deferred bool
}

// Service is the Registration Handler.
type Service struct {
	profiles ProfileStore
	vectors  VectorWriter
	embed    Embedder
	logger   *zap.Logger
	locks    *keyedMutex

	newID func() (string, error)
	now   func() time.Time
}

// New creates a registration service.
func New(profiles ProfileStore, vectors VectorWriter, embed Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		profiles: profiles,
		vectors:  vectors,
		embed:    embed,
		logger:   logger,
		locks:    newKeyedMutex(),
		newID:    newProfileID,
		now:      time.Now,
	}
}

// newProfileID returns a time-ordered UUIDv7, so the id cursor roughly follows creation order.
func newProfileID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// Register validates fields, stores the profile unindexed, then embeds and
// indexes it. Only validation and profile store failures are returned as errors;
// an embedding or index failure yields a Deferred result.
//
// An empty id gets a fresh one. A caller-supplied id makes retries idempotent:
// the write replaces the previous one (last write wins) and runs under a per-id
// lock, so two concurrent writes never interleave their field and vector records.
func (s *Service) Register(ctx context.Context, id string, f profile.Fields) (Result, error) {
	generated := id == ""
	if generated {
		var err error
		if id, err = s.newID(); err != nil {
			return Result{}, err
		}
	}
	p, err := profile.New(id, f, s.now())
	if err != nil {
		return Result{}, err
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	if generated {
		err = s.profiles.Create(ctx, &p)
	} else {
		// The previous vector carries the old text and metadata; it must not
		// outlive the fields it was built from.
		if err := s.vectors.Delete(ctx, id); err != nil {
			return Result{}, domain.Unavailable("drop previous vector", err)
		}
		err = s.profiles.Save(ctx, &p)
	}
	if err != nil {
		return Result{}, domain.Unavailable("store profile", err)
	}

	text := p.EmbeddingText()
	if text == "" {
		s.logger.Info("Profile has no free text, filter-only",
			zap.String("profile_id", id),
		)
		return Result{Profile: p}, nil
	}

	if err := s.index(ctx, &p, text); err != nil {
		s.logger.Warn("Profile stored but not indexed",
			zap.String("profile_id", id),
			zap.Error(err),
		)
		return Result{Profile: p, Deferred: true}, nil
	}

	return Result{Profile: p.WithIndexed(true), Indexed: true}, nil
}

// index embeds text, upserts the vector record and flips the indexed flag.
// The flag is written last: a crash in between leaves a detectable unindexed profile.
func (s *Service) index(ctx context.Context, p *profile.Profile, text string) error {
	emb, err := s.embed.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if err := s.vectors.Upsert(ctx, &profile.Embedding{
		ProfileID: p.ID(),
		Vector:    emb.Embedding,
		TextHash:  profile.TextHash(text),
		Profile:   p,
	}); err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}
	if err := s.profiles.SetIndexed(ctx, p.ID(), true); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	return nil
}

// Get returns a stored profile.
func (s *Service) Get(ctx context.Context, id string) (profile.Profile, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return profile.Profile{}, domain.Unavailable("get profile", err)
	}
	return p, nil
}
