package vector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/matchdex/internal/db"
	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/match"
	domprofile "github.com/kailas-cloud/matchdex/internal/domain/profile"
)

func ptr[T any](v T) *T { return &v }

// --- EnsureIndex ---

func TestEnsureIndex_Creates(t *testing.T) {
	repo, ms := newTestRepo(t)

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("CreateIndex not called")
	}
	s := created.String()
	for _, want := range []string{
		"FT.CREATE matchdex:emb:idx ON HASH PREFIX 1 matchdex:emb:",
		"age NUMERIC",
		"caste TAG",
		"vector VECTOR HNSW DIM 4",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("index %q missing %q", s, want)
		}
	}
	for _, f := range created.Fields {
		switch f.Type {
		case db.IndexFieldTag:
			if f.TagSeparator != "|" {
				t.Errorf("%s separator = %q", f.Name, f.TagSeparator)
			}
		case db.IndexFieldVector:
			if f.VectorDistance != db.DistanceCosine || f.VectorEFRuntime != 64 {
				t.Errorf("vector field = %+v", f)
			}
		}
	}
}

func TestEnsureIndex_Exists(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Error("CreateIndex must not be called")
		return nil
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_RaceIsNotError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_Flat(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms, "m:", Config{IndexName: "custom", Dimensions: 8, Algorithm: db.VectorFlat})

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Name != "custom" || !strings.Contains(created.String(), "VECTOR FLAT") {
		t.Errorf("unexpected index: %s", created.String())
	}
}

func TestRecreateIndex(t *testing.T) {
	repo, ms := newTestRepo(t)

	var calls []string
	ms.dropIndexFn = func(_ context.Context, name string) error {
		calls = append(calls, "drop "+name)
		return nil
	}
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		calls = append(calls, "create "+def.Name)
		return nil
	}

	if err := repo.RecreateIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(calls, ",") != "drop matchdex:emb:idx,create matchdex:emb:idx" {
		t.Errorf("calls = %v", calls)
	}
}

func TestRecreateIndex_MissingIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.dropIndexFn = func(_ context.Context, _ string) error { return db.ErrIndexNotFound }

	if err := repo.RecreateIndex(context.Background()); err != nil {
		t.Fatalf("missing index should not fail: %v", err)
	}
}

func TestRecreateIndex_DropError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.dropIndexFn = func(_ context.Context, _ string) error {
		return &db.Error{Op: db.OpDropIndex, Err: errors.New("READONLY")}
	}
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Error("CreateIndex must not be called")
		return nil
	}

	if err := repo.RecreateIndex(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

// --- Upsert ---

func TestUpsert_StoresNormalizedMetadata(t *testing.T) {
	repo, ms := newTestRepo(t)
	p := testProfile(t)

	var key string
	var fields map[string]string
	ms.hsetFn = func(_ context.Context, k string, f map[string]string) error {
		key, fields = k, f
		return nil
	}

	err := repo.Upsert(context.Background(), &domprofile.Embedding{
		ProfileID: "u-1", Vector: testVector(), TextHash: "abc", Profile: &p,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "matchdex:emb:u-1" {
		t.Errorf("key = %q", key)
	}
	want := map[string]string{
		"text_hash":      "abc",
		"age":            "29",
		"gender":         "female",
		"marital_status": "never married",
		"caste":          "syed, hashmi",
		"sect":           "sunni",
		"state":          "maharashtra",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s = %q, want %q", k, fields[k], v)
		}
	}
	if got := bytesToVector(fields["vector"]); len(got) != testDim || got[3] != 0.4 {
		t.Errorf("vector = %v", got)
	}
}

func TestUpsert_DimMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	err := repo.Upsert(context.Background(), &domprofile.Embedding{ProfileID: "u-1", Vector: []float32{1}})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

// --- GetVector / GetTextHash ---

func TestGetVector(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetFn = func(_ context.Context, key, field string) (string, error) {
		if key != "matchdex:emb:u-1" || field != "vector" {
			t.Errorf("hget %s %s", key, field)
		}
		return vectorToBytes(testVector()), nil
	}

	vec, err := repo.GetVector(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != testDim || vec[0] != 0.1 {
		t.Errorf("vec = %v", vec)
	}
}

func TestGetVector_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.GetVector(context.Background(), "u-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetVector_Corrupt(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetFn = func(_ context.Context, _, _ string) (string, error) { return "abc", nil }
	_, err := repo.GetVector(context.Background(), "u-1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetTextHash(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetFn = func(_ context.Context, _, field string) (string, error) {
		if field != "text_hash" {
			t.Errorf("field = %s", field)
		}
		return "deadbeef", nil
	}
	h, err := repo.GetTextHash(context.Background(), "u-1")
	if err != nil || h != "deadbeef" {
		t.Fatalf("GetTextHash = %q, %v", h, err)
	}
}

// --- Search ---

func TestSearch_PushesFilterAndStripsPrefix(t *testing.T) {
	repo, ms := newTestRepo(t)
	f := match.Filters{Gender: ptr(domprofile.Male), MinAge: ptr(25), Caste: ptr(" Syed ")}

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "matchdex:emb:idx" || q.K != 40 || q.EFRuntime != 64 {
			t.Errorf("unexpected query: %+v", q)
		}
		if len(q.Filter.Tags) != 2 || q.Filter.Tags[0].Values[0] != "male" || q.Filter.Tags[1].Values[0] != "syed" {
			t.Errorf("unexpected tags: %+v", q.Filter.Tags)
		}
		if len(q.Filter.Ranges) != 1 || *q.Filter.Ranges[0].Min != 25 || q.Filter.Ranges[0].Max != nil {
			t.Errorf("unexpected ranges: %+v", q.Filter.Ranges)
		}
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Key: "matchdex:emb:a", Score: 0.9},
			{Key: "matchdex:emb:b", Score: 0.7},
		}}, nil
	}

	hits, err := repo.Search(context.Background(), testVector(), 40, &f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 2 || hits[0].ProfileID != "a" || hits[1].Score != 0.7 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestSearch_ZeroK(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		t.Error("store must not be called")
		return nil, nil
	}
	hits, err := repo.Search(context.Background(), testVector(), 0, nil)
	if err != nil || hits != nil {
		t.Fatalf("got %v, %v", hits, err)
	}
}

func TestSearch_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("timeout")
	}
	if _, err := repo.Search(context.Background(), testVector(), 5, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestPreFilter(t *testing.T) {
	tests := []struct {
		name       string
		f          *match.Filters
		wantTags   int
		wantRanges int
	}{
		{"nil", nil, 0, 0},
		{"empty", &match.Filters{}, 0, 0},
		{"blank tag skipped", &match.Filters{State: ptr("  ")}, 0, 0},
		{"all tags", &match.Filters{
			Gender: ptr(domprofile.Female), MaritalStatus: ptr("Divorced"),
			Caste: ptr("a"), Sect: ptr("b"), State: ptr("c"),
		}, 5, 0},
		{"max age only", &match.Filters{MaxAge: ptr(40)}, 0, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PreFilter(tc.f)
			if len(got.Tags) != tc.wantTags || len(got.Ranges) != tc.wantRanges {
				t.Errorf("tags=%d ranges=%d, want %d/%d", len(got.Tags), len(got.Ranges), tc.wantTags, tc.wantRanges)
			}
		})
	}
}

func TestCount(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexDocCountFn = func(_ context.Context, name string) (int64, error) {
		if name != "matchdex:emb:idx" {
			t.Errorf("name = %s", name)
		}
		return 7, nil
	}
	n, err := repo.Count(context.Background())
	if err != nil || n != 7 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)
	var got string
	ms.delFn = func(_ context.Context, key string) error {
		got = key
		return nil
	}
	if err := repo.Delete(context.Background(), "u-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got != "matchdex:emb:u-1" {
		t.Errorf("key = %s, want matchdex:emb:u-1", got)
	}
}

func TestDelete_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	down := errors.New("connection refused")
	ms.delFn = func(context.Context, string) error { return down }
	if err := repo.Delete(context.Background(), "u-1"); !errors.Is(err, down) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
