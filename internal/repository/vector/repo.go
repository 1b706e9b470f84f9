// Package vector stores profile embeddings in a HASH-backed FT index and
// runs filtered KNN over them.
package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/matchdex/internal/db"
	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/match"
	domprofile "github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// store is the consumer interface for the vector index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGet(ctx context.Context, key, field string) (string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	IndexDocCount(ctx context.Context, name string) (int64, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Hash fields of a vector record.
const (
	fieldVector        = "vector"
	fieldTextHash      = "text_hash"
	fieldAge           = "age"
	fieldGender        = "gender"
	fieldMaritalStatus = "marital_status"
	fieldCaste         = "caste"
	fieldSect          = "sect"
	fieldState         = "state"
)

// tagSeparator keeps commas inside values (e.g. "Syed, Hashmi") intact.
const tagSeparator = "|"

// Config holds index parameters.
type Config struct {
	IndexName   string
	Dimensions  int
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
	EFRuntime   int
}

// Repo is the Vector Index.
type Repo struct {
	store  store
	prefix string
	cfg    Config
}

// New creates a vector repository. keyPrefix namespaces keys and the default index name.
func New(s store, keyPrefix string, cfg Config) *Repo {
	if cfg.IndexName == "" {
		cfg.IndexName = keyPrefix + "emb:idx"
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = db.VectorHNSW
	}
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EFConstruct <= 0 {
		cfg.EFConstruct = 200
	}
	return &Repo{store: s, prefix: keyPrefix, cfg: cfg}
}

// IndexName returns the FT index name.
func (r *Repo) IndexName() string { return r.cfg.IndexName }

// EnsureIndex creates the FT index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.cfg.IndexName, err)
	}
	if exists {
		return nil
	}

	def, err := r.indexDefinition()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.cfg.IndexName, err)
	}
	return nil
}

// RecreateIndex drops the FT index definition and creates it again from the
// current config. Records stay in place and are re-indexed by Redis.
func (r *Repo) RecreateIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.cfg.IndexName); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.cfg.IndexName, err)
	}
	return r.EnsureIndex(ctx)
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(r.cfg.IndexName).
		Prefix(r.recordPrefix()).
		Numeric(fieldAge).
		TagSep(fieldGender, tagSeparator).
		TagSep(fieldMaritalStatus, tagSeparator).
		TagSep(fieldCaste, tagSeparator).
		TagSep(fieldSect, tagSeparator).
		TagSep(fieldState, tagSeparator)

	if r.cfg.Algorithm == db.VectorFlat {
		b = b.VectorFlat(fieldVector, r.cfg.Dimensions, db.DistanceCosine)
	} else {
		b = b.VectorHNSW(fieldVector, r.cfg.Dimensions, db.DistanceCosine, r.cfg.M, r.cfg.EFConstruct, r.cfg.EFRuntime)
	}
	return b.Build()
}

// Upsert writes or replaces the record for a profile.
func (r *Repo) Upsert(ctx context.Context, rec *domprofile.Embedding) error {
	if len(rec.Vector) != r.cfg.Dimensions {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(rec.Vector), r.cfg.Dimensions)
	}
	key := r.recordKey(rec.ProfileID)
	if err := r.store.HSet(ctx, key, toHash(rec)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Delete removes a record. Missing records are not an error.
func (r *Repo) Delete(ctx context.Context, profileID string) error {
	if err := r.store.Del(ctx, r.recordKey(profileID)); err != nil {
		return fmt.Errorf("del %s: %w", profileID, err)
	}
	return nil
}

// GetVector returns the stored vector, or domain.ErrNotFound.
func (r *Repo) GetVector(ctx context.Context, profileID string) ([]float32, error) {
	key := r.recordKey(profileID)
	raw, err := r.store.HGet(ctx, key, fieldVector)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, fmt.Errorf("vector %s: %w", profileID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("hget %s: %w", key, err)
	}
	vec := bytesToVector(raw)
	if len(vec) == 0 {
		return nil, fmt.Errorf("vector %s: %w", profileID, domain.ErrNotFound)
	}
	return vec, nil
}

// GetTextHash returns the source text hash of the stored record, or domain.ErrNotFound.
func (r *Repo) GetTextHash(ctx context.Context, profileID string) (string, error) {
	key := r.recordKey(profileID)
	h, err := r.store.HGet(ctx, key, fieldTextHash)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", fmt.Errorf("vector %s: %w", profileID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("hget %s: %w", key, err)
	}
	return h, nil
}

// Search returns up to k nearest records passing the pushed-down filter,
// ordered by descending similarity.
func (r *Repo) Search(ctx context.Context, vec []float32, k int, f *match.Filters) ([]match.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vec) != r.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrVectorDimMismatch, len(vec), r.cfg.Dimensions)
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  fieldVector,
		Filter:       PreFilter(f),
		Vector:       vec,
		K:            k,
		EFRuntime:    r.cfg.EFRuntime,
		ReturnFields: []string{fieldAge},
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	hits := make([]match.Hit, 0, len(res.Entries))
	for _, e := range res.Entries {
		hits = append(hits, match.Hit{
			ProfileID: strings.TrimPrefix(e.Key, r.recordPrefix()),
			Score:     e.Score,
		})
	}
	return hits, nil
}

// Count returns the number of indexed records (FT.INFO num_docs).
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.IndexDocCount(ctx, r.cfg.IndexName)
	if err != nil {
		return 0, fmt.Errorf("index doc count: %w", err)
	}
	return n, nil
}

// PreFilter translates match filters into index clauses on lower-cased metadata.
func PreFilter(f *match.Filters) db.Filter {
	var out db.Filter
	if f == nil || f.IsEmpty() {
		return out
	}
	addTag := func(field string, v *string) {
		if v == nil {
			return
		}
		if n := match.NormalizeTag(*v); n != "" {
			out.Tags = append(out.Tags, db.TagClause{Field: field, Values: []string{n}})
		}
	}
	if f.Gender != nil {
		g := string(*f.Gender)
		addTag(fieldGender, &g)
	}
	addTag(fieldMaritalStatus, f.MaritalStatus)
	addTag(fieldCaste, f.Caste)
	addTag(fieldSect, f.Sect)
	addTag(fieldState, f.State)

	if f.MinAge != nil || f.MaxAge != nil {
		rc := db.RangeClause{Field: fieldAge}
		if f.MinAge != nil {
			v := float64(*f.MinAge)
			rc.Min = &v
		}
		if f.MaxAge != nil {
			v := float64(*f.MaxAge)
			rc.Max = &v
		}
		out.Ranges = append(out.Ranges, rc)
	}
	return out
}

func (r *Repo) recordPrefix() string {
	return r.prefix + "emb:"
}

func (r *Repo) recordKey(id string) string {
	return r.recordPrefix() + id
}

func toHash(rec *domprofile.Embedding) map[string]string {
	m := map[string]string{
		fieldVector:   vectorToBytes(rec.Vector),
		fieldTextHash: rec.TextHash,
	}
	if p := rec.Profile; p != nil {
		m[fieldAge] = strconv.Itoa(p.Age())
		m[fieldGender] = match.NormalizeTag(string(p.Gender()))
		m[fieldMaritalStatus] = match.NormalizeTag(string(p.MaritalStatus()))
		m[fieldCaste] = match.NormalizeTag(p.Caste())
		m[fieldSect] = match.NormalizeTag(p.Sect())
		m[fieldState] = match.NormalizeTag(p.State())
	}
	return m
}
