// Package checkpoint persists the indexer cursor so interrupted runs can resume.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/matchdex/internal/db"
	"github.com/kailas-cloud/matchdex/internal/domain/indexing"
)

// store is the consumer interface for checkpoints (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, key string) error
}

// Store keeps a single checkpoint under one key.
type Store struct {
	store store
	key   string
}

// New creates a checkpoint store bound to key.
func New(s store, key string) *Store {
	return &Store{store: s, key: key}
}

// Load returns the saved checkpoint. ok is false when none exists.
func (s *Store) Load(ctx context.Context) (cp indexing.Checkpoint, ok bool, err error) {
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return indexing.Checkpoint{}, false, nil
		}
		return indexing.Checkpoint{}, false, fmt.Errorf("get checkpoint %s: %w", s.key, err)
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return indexing.Checkpoint{}, false, fmt.Errorf("decode checkpoint %s: %w", s.key, err)
	}
	return cp, true, nil
}

// Save overwrites the checkpoint.
func (s *Store) Save(ctx context.Context, cp indexing.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := s.store.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("set checkpoint %s: %w", s.key, err)
	}
	return nil
}

// Clear removes the checkpoint.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.store.Del(ctx, s.key); err != nil {
		return fmt.Errorf("del checkpoint %s: %w", s.key, err)
	}
	return nil
}
