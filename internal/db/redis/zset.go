package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/matchdex/internal/db"
)

// ZAdd adds members with score 0 so that ZRANGE BYLEX orders them by id.
func (s *Store) ZAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	cmd := s.b().Zadd().Key(key).ScoreMember()
	for _, m := range members {
		cmd = cmd.ScoreMember(0, m)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRangeAfter is a keyset page: ZRANGE key (after + BYLEX LIMIT 0 limit.
func (s *Store) ZRangeAfter(ctx context.Context, key, after string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	lo := "-"
	if after != "" {
		lo = "(" + after
	}
	cmd := s.b().Arbitrary("ZRANGE").Keys(key).
		Args(lo, "+", "BYLEX", "LIMIT", "0", strconv.Itoa(limit)).
		Build()
	members, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}
	return members, nil
}

// ZCard returns the sorted set cardinality.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}
