package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/matchdex/internal/db"
	"github.com/kailas-cloud/matchdex/internal/domain"
	domprofile "github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// --- Create / Save ---

func TestCreate_WritesHashAndCursor(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t)

	var hashKey string
	var fields map[string]string
	ms.hsetFn = func(_ context.Context, key string, f map[string]string) error {
		hashKey, fields = key, f
		return nil
	}
	var zkey string
	var members []string
	ms.zaddFn = func(_ context.Context, key string, m ...string) error {
		zkey, members = key, m
		return nil
	}

	if err := repo.Create(context.Background(), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hashKey != "matchdex:profile:u-1" {
		t.Errorf("hash key = %q", hashKey)
	}
	if fields["age"] != "29" || fields["gender"] != "Female" || fields["indexed"] != "0" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if fields["created_at"] != "1700000000000" {
		t.Errorf("created_at = %q", fields["created_at"])
	}
	if zkey != "matchdex:profiles" || len(members) != 1 || members[0] != "u-1" {
		t.Errorf("zadd %q %v", zkey, members)
	}
}

func TestCreate_AlreadyExists(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t)

	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.hsetFn = func(_ context.Context, _ string, _ map[string]string) error {
		t.Error("HSet must not be called for existing id")
		return nil
	}

	err := repo.Create(context.Background(), &p)
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateMany_Pipeline(t *testing.T) {
	repo, ms := newTestRepo(t)
	a := testProfile(t)
	b, err := domprofile.New("u-2", domprofile.Fields{Age: 31, Gender: "Male"}, time.UnixMilli(1700000000001))
	if err != nil {
		t.Fatal(err)
	}

	var keys []string
	ms.hsetMultiFn = func(_ context.Context, items []db.HashSetItem) error {
		for _, it := range items {
			keys = append(keys, it.Key)
		}
		return nil
	}
	var members []string
	ms.zaddFn = func(_ context.Context, _ string, m ...string) error {
		members = m
		return nil
	}

	if err := repo.CreateMany(context.Background(), []domprofile.Profile{a, b}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 || keys[1] != "matchdex:profile:u-2" {
		t.Errorf("keys = %v", keys)
	}
	if len(members) != 2 || members[0] != "u-1" || members[1] != "u-2" {
		t.Errorf("members = %v", members)
	}
}

func TestCreateMany_Empty(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error {
		t.Error("HSetMulti must not be called")
		return nil
	}
	if err := repo.CreateMany(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateMany_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t)
	ms.hsetMultiFn = func(_ context.Context, _ []db.HashSetItem) error { return errors.New("pipeline broken") }
	ms.zaddFn = func(_ context.Context, _ string, _ ...string) error {
		t.Error("ZAdd must not run after failed HSetMulti")
		return nil
	}
	if err := repo.CreateMany(context.Background(), []domprofile.Profile{p}); err == nil {
		t.Fatal("expected error")
	}
}

func TestSave_HSetError(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t)

	ms.hsetFn = func(_ context.Context, _ string, _ map[string]string) error { return errors.New("OOM") }
	ms.zaddFn = func(_ context.Context, _ string, _ ...string) error {
		t.Error("ZAdd must not run after failed HSet")
		return nil
	}

	if err := repo.Save(context.Background(), &p); err == nil {
		t.Fatal("expected error")
	}
}

// --- Get ---

func TestGet_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t).WithIndexed(true)

	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "matchdex:profile:u-1" {
			t.Errorf("unexpected key: %s", key)
		}
		return toHash(&p), nil
	}

	got, err := repo.Get(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Fields() != p.Fields() {
		t.Errorf("fields = %+v, want %+v", got.Fields(), p.Fields())
	}
	if !got.Indexed() {
		t.Error("expected indexed=true")
	}
	if !got.CreatedAt().Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("created_at = %v", got.CreatedAt())
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return nil, db.ErrKeyNotFound
	}

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return nil, errors.New("connection reset")
	}

	_, err := repo.Get(context.Background(), "u-1")
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected raw store error, got %v", err)
	}
}

// --- GetMany / Page ---

func TestGetMany_SkipsMissing(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t)

	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		if len(keys) != 3 || keys[1] != "matchdex:profile:gone" {
			t.Errorf("unexpected keys: %v", keys)
		}
		return []map[string]string{toHash(&p), {}, toHash(&p)}, nil
	}

	got, err := repo.GetMany(context.Background(), []string{"a", "gone", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID() != "a" || got[1].ID() != "c" {
		t.Fatalf("unexpected profiles: %d", len(got))
	}
}

func TestGetMany_Empty(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllMultiFn = func(_ context.Context, _ []string) ([]map[string]string, error) {
		t.Error("store must not be called for empty ids")
		return nil, nil
	}
	got, err := repo.GetMany(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestPage_UsesCursor(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t)

	ms.zrangeAfterFn = func(_ context.Context, key, after string, limit int) ([]string, error) {
		if key != "matchdex:profiles" || after != "u-0" || limit != 2 {
			t.Errorf("zrange %s after=%q limit=%d", key, after, limit)
		}
		return []string{"u-1", "u-2"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		out := make([]map[string]string, len(keys))
		for i := range keys {
			out[i] = toHash(&p)
		}
		return out, nil
	}

	got, err := repo.Page(context.Background(), "u-0", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1].ID() != "u-2" {
		t.Fatalf("unexpected page: %d", len(got))
	}
}

func TestPage_SkipsOrphanedWindow(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t)

	var cursors []string
	ms.zrangeAfterFn = func(_ context.Context, _, after string, _ int) ([]string, error) {
		cursors = append(cursors, after)
		if after == "" {
			return []string{"u-1", "u-2"}, nil
		}
		return []string{"u-3"}, nil
	}
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		out := make([]map[string]string, len(keys))
		if keys[0] == "matchdex:profile:u-3" {
			out[0] = toHash(&p)
		}
		return out, nil
	}

	got, err := repo.Page(context.Background(), "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID() != "u-3" {
		t.Fatalf("expected u-3 past the orphaned ids, got %d profiles", len(got))
	}
	if len(cursors) != 2 || cursors[1] != "u-2" {
		t.Errorf("cursors = %v", cursors)
	}
}

func TestPage_EndOfIDs(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.zrangeAfterFn = func(context.Context, string, string, int) ([]string, error) {
		return nil, nil
	}
	ms.hgetAllMultiFn = func(context.Context, []string) ([]map[string]string, error) {
		t.Error("no hash lookup expected past the last id")
		return nil, nil
	}

	got, err := repo.Page(context.Background(), "u-9", 10)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestPage_ZeroLimit(t *testing.T) {
	repo, _ := newTestRepo(t)
	got, err := repo.Page(context.Background(), "", 0)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

// --- SetIndexed / Count ---

func TestSetIndexed(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }

	var fields map[string]string
	ms.hsetFn = func(_ context.Context, _ string, f map[string]string) error {
		fields = f
		return nil
	}

	if err := repo.SetIndexed(context.Background(), "u-1", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fields) != 1 || fields["indexed"] != "1" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestSetIndexed_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.SetIndexed(context.Background(), "missing", true)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCount(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.zcardFn = func(_ context.Context, _ string) (int64, error) { return 42, nil }

	n, err := repo.Count(context.Background())
	if err != nil || n != 42 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestFromHash_Lenient(t *testing.T) {
	p := fromHash("x", map[string]string{"age": "abc", "gender": "Male", "created_at": "bad"})
	if p.Age() != 0 || p.Gender() != domprofile.Male || !p.CreatedAt().IsZero() || p.Indexed() {
		t.Errorf("unexpected profile: %+v", p.Fields())
	}
}
