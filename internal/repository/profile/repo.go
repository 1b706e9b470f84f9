// Package profile persists Profile records.
//
// Repo keeps each profile in a Redis HASH and the ordered id set in a sorted
// set with zero scores, so ids page lexicographically (UUIDv7 ids are also
// time-ordered). PostgresRepo is the relational alternative.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/matchdex/internal/db"
	"github.com/kailas-cloud/matchdex/internal/domain"
	domprofile "github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// store is the consumer interface for profile storage (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	ZAdd(ctx context.Context, key string, members ...string) error
	ZRangeAfter(ctx context.Context, key, after string, limit int) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// Repo is the Redis-backed profile store.
type Repo struct {
	store  store
	prefix string
}

// New creates a profile repository. keyPrefix namespaces all keys (e.g. "matchdex:").
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, prefix: keyPrefix}
}

// Create stores a new profile. Returns domain.ErrAlreadyExists if the id is taken.
func (r *Repo) Create(ctx context.Context, p *domprofile.Profile) error {
	key := r.profileKey(p.ID())
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if exists {
		return fmt.Errorf("profile %s: %w", p.ID(), domain.ErrAlreadyExists)
	}
	return r.Save(ctx, p)
}

// Save writes the profile and registers its id in the cursor set.
func (r *Repo) Save(ctx context.Context, p *domprofile.Profile) error {
	key := r.profileKey(p.ID())
	if err := r.store.HSet(ctx, key, toHash(p)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	if err := r.store.ZAdd(ctx, r.idsKey(), p.ID()); err != nil {
		return fmt.Errorf("zadd %s: %w", p.ID(), err)
	}
	return nil
}

// CreateMany writes fresh profiles in one pipeline. Ids are not checked for
// existence: callers pass newly generated ids.
func (r *Repo) CreateMany(ctx context.Context, ps []domprofile.Profile) error {
	if len(ps) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, len(ps))
	ids := make([]string, len(ps))
	for i := range ps {
		items[i] = db.HashSetItem{Key: r.profileKey(ps[i].ID()), Fields: toHash(&ps[i])}
		ids[i] = ps[i].ID()
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi: %w", err)
	}
	if err := r.store.ZAdd(ctx, r.idsKey(), ids...); err != nil {
		return fmt.Errorf("zadd %d ids: %w", len(ids), err)
	}
	return nil
}

// Get returns a profile by id or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id string) (domprofile.Profile, error) {
	key := r.profileKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domprofile.Profile{}, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
		}
		return domprofile.Profile{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return fromHash(id, m), nil
}

// GetMany returns the profiles that exist among ids, in input order.
// Missing ids are skipped.
func (r *Repo) GetMany(ctx context.Context, ids []string) ([]domprofile.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.profileKey(id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}

	out := make([]domprofile.Profile, 0, len(ids))
	for i, m := range maps {
		if i >= len(ids) || len(m) == 0 {
			continue
		}
		out = append(out, fromHash(ids[i], m))
	}
	return out, nil
}

// SetIndexed flips the indexed flag of an existing profile.
func (r *Repo) SetIndexed(ctx context.Context, id string, indexed bool) error {
	key := r.profileKey(id)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	if err := r.store.HSet(ctx, key, map[string]string{fieldIndexed: formatBool(indexed)}); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Page returns up to limit profiles with id strictly greater than after, ordered by id.
// Ids whose hash is gone are skipped, so a page may be short while more
// profiles follow. An empty page means the cursor reached the end.
func (r *Repo) Page(ctx context.Context, after string, limit int) ([]domprofile.Profile, error) {
	if limit <= 0 {
		return nil, nil
	}
	for {
		ids, err := r.store.ZRangeAfter(ctx, r.idsKey(), after, limit)
		if err != nil {
			return nil, fmt.Errorf("zrange after %q: %w", after, err)
		}
		if len(ids) == 0 {
			return nil, nil
		}
		page, err := r.GetMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		if len(page) > 0 || len(ids) < limit {
			return page, nil
		}
		// Whole window was orphaned ids.
		after = ids[len(ids)-1]
	}
}

// Count returns the number of stored profiles.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.ZCard(ctx, r.idsKey())
	if err != nil {
		return 0, fmt.Errorf("zcard: %w", err)
	}
	return n, nil
}

func (r *Repo) profileKey(id string) string {
	return r.prefix + "profile:" + id
}

func (r *Repo) idsKey() string {
	return r.prefix + "profiles"
}
