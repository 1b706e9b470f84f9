package profile

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/matchdex/internal/db"
	domprofile "github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	existsFn       func(ctx context.Context, key string) (bool, error)
	zaddFn         func(ctx context.Context, key string, members ...string) error
	zrangeAfterFn  func(ctx context.Context, key, after string, limit int) ([]string, error)
	zcardFn        func(ctx context.Context, key string) (int64, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) ZAdd(ctx context.Context, key string, members ...string) error {
	if m.zaddFn != nil {
		return m.zaddFn(ctx, key, members...)
	}
	return nil
}

func (m *mockStore) ZRangeAfter(ctx context.Context, key, after string, limit int) ([]string, error) {
	if m.zrangeAfterFn != nil {
		return m.zrangeAfterFn(ctx, key, after, limit)
	}
	return nil, nil
}

func (m *mockStore) ZCard(ctx context.Context, key string) (int64, error) {
	if m.zcardFn != nil {
		return m.zcardFn(ctx, key)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, "matchdex:"), ms
}

func testProfile(t *testing.T) domprofile.Profile {
	t.Helper()
	p, err := domprofile.New("u-1", domprofile.Fields{
		Age:               29,
		Gender:            "Female",
		MaritalStatus:     "Never Married",
		Caste:             "Syed",
		Sect:              "Sunni",
		State:             "Maharashtra",
		About:             "Software engineer, enjoys books and travel",
		PartnerPreference: "Looking for educated caring partner",
	}, time.UnixMilli(1700000000000))
	if err != nil {
		t.Fatalf("new profile: %v", err)
	}
	return p
}
