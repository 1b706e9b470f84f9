// Package budget persists embedding token counters per provider and period.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/matchdex/internal/db"
	"github.com/kailas-cloud/matchdex/internal/domain/usage"
)

// store is the consumer interface for budget operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrByExpireNX(ctx context.Context, key string, val int64, ttl time.Duration) error
}

// Store implements BudgetStore on top of DB (INCRBY + GET with TTL).
// Keys: {prefix}budget:{provider}:{day|month}:{2006-01-02|2006-01}.
type Store struct {
	store     store
	keyPrefix string
	dailyTTL  time.Duration
	monthTTL  time.Duration
}

// New creates a budget store.
// dailyTTL is the TTL for daily keys (recommended: 48h).
// monthTTL is the TTL for monthly keys (recommended: 62 days).
func New(s store, keyPrefix string, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{
		store:     s,
		keyPrefix: keyPrefix,
		dailyTTL:  dailyTTL,
		monthTTL:  monthTTL,
	}
}

// Key returns the counter key of provider for the period containing t (UTC).
func (s *Store) Key(provider string, period usage.Period, t time.Time) string {
	t = t.UTC()
	if period == usage.PeriodDay {
		return fmt.Sprintf("%sbudget:%s:day:%s", s.keyPrefix, provider, t.Format("2006-01-02"))
	}
	return fmt.Sprintf("%sbudget:%s:month:%s", s.keyPrefix, provider, t.Format("2006-01"))
}

// Add increments the counter. Its TTL is set on the first write of the period
// and never pushed forward afterwards.
func (s *Store) Add(ctx context.Context, provider string, period usage.Period, t time.Time, tokens int64) error {
	key := s.Key(provider, period, t)
	ttl := s.monthTTL
	if period == usage.PeriodDay {
		ttl = s.dailyTTL
	}
	if err := s.store.IncrByExpireNX(ctx, key, tokens, ttl); err != nil {
		return fmt.Errorf("budget add %s: %w", key, err)
	}
	return nil
}

// Load returns the counter of provider for the period containing t. Missing keys read as 0.
func (s *Store) Load(ctx context.Context, provider string, period usage.Period, t time.Time) (int64, error) {
	key := s.Key(provider, period, t)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget GET %s parse: %w", key, err)
	}
	return val, nil
}
