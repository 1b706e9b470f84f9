package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kailas-cloud/matchdex/internal/domain"
	domprofile "github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// Schema is the DDL applied by EnsureSchema.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id                 TEXT PRIMARY KEY,
	age                INTEGER NOT NULL,
	gender             TEXT NOT NULL,
	marital_status     TEXT NOT NULL DEFAULT '',
	caste              TEXT NOT NULL DEFAULT '',
	sect               TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL DEFAULT '',
	about              TEXT NOT NULL DEFAULT '',
	partner_preference TEXT NOT NULL DEFAULT '',
	indexed            BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const profileColumns = `id, age, gender, marital_status, caste, sect, state, about, partner_preference, indexed, created_at`

var copyColumns = []string{
	"id", "age", "gender", "marital_status", "caste", "sect", "state",
	"about", "partner_preference", "indexed", "created_at",
}

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// PostgresRepo is the Postgres-backed profile store.
type PostgresRepo struct {
	db *sql.DB
}

// OpenPostgres opens a pooled connection and verifies it.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepo, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewPostgres(conn), nil
}

// NewPostgres wraps an open *sql.DB.
func NewPostgres(conn *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: conn}
}

// Close closes the connection pool.
func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

// Ping checks connectivity.
func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EnsureSchema creates the profiles table if missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Create inserts a new profile. Returns domain.ErrAlreadyExists on id conflict.
func (r *PostgresRepo) Create(ctx context.Context, p *domprofile.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(ctx, query, insertArgs(p)...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("profile %s: %w", p.ID(), domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Save upserts a profile.
func (r *PostgresRepo) Save(ctx context.Context, p *domprofile.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          ON CONFLICT (id) DO UPDATE SET
	              age = EXCLUDED.age,
	              gender = EXCLUDED.gender,
	              marital_status = EXCLUDED.marital_status,
	              caste = EXCLUDED.caste,
	              sect = EXCLUDED.sect,
	              state = EXCLUDED.state,
	              about = EXCLUDED.about,
	              partner_preference = EXCLUDED.partner_preference,
	              indexed = EXCLUDED.indexed`
	if _, err := r.db.ExecContext(ctx, query, insertArgs(p)...); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// CreateMany bulk-inserts profiles with COPY inside one transaction.
// Any conflict rolls back the whole batch.
func (r *PostgresRepo) CreateMany(ctx context.Context, ps []domprofile.Profile) error {
	if len(ps) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("profiles", copyColumns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for i := range ps {
		if _, err := stmt.ExecContext(ctx, insertArgs(&ps[i])...); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy row %s: %w", ps[i].ID(), err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("copy profiles: %w", domain.ErrAlreadyExists)
		}
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns a profile by id or domain.ErrNotFound.
func (r *PostgresRepo) Get(ctx context.Context, id string) (domprofile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domprofile.Profile{}, fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
		}
		return domprofile.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// GetMany returns existing profiles among ids, in input order.
func (r *PostgresRepo) GetMany(ctx context.Context, ids []string) ([]domprofile.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ANY($1)`
	found, err := r.queryProfiles(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domprofile.Profile, len(found))
	for _, p := range found {
		byID[p.ID()] = p
	}
	out := make([]domprofile.Profile, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// SetIndexed flips the indexed flag.
func (r *PostgresRepo) SetIndexed(ctx context.Context, id string, indexed bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE profiles SET indexed = $1 WHERE id = $2`, indexed, id)
	if err != nil {
		return fmt.Errorf("set indexed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("profile %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Page returns up to limit profiles with id greater than after (keyset pagination).
func (r *PostgresRepo) Page(ctx context.Context, after string, limit int) ([]domprofile.Profile, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id > $1 ORDER BY id LIMIT $2`
	return r.queryProfiles(ctx, query, after, limit)
}

// Count returns the number of stored profiles.
func (r *PostgresRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

func (r *PostgresRepo) queryProfiles(ctx context.Context, query string, args ...any) ([]domprofile.Profile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []domprofile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domprofile.Profile, error) {
	var (
		id        string
		f         domprofile.Fields
		indexed   bool
		createdAt time.Time
	)
	err := row.Scan(
		&id, &f.Age, &f.Gender, &f.MaritalStatus, &f.Caste, &f.Sect, &f.State,
		&f.About, &f.PartnerPreference, &indexed, &createdAt,
	)
	if err != nil {
		return domprofile.Profile{}, err
	}
	return domprofile.Reconstruct(id, f, indexed, createdAt.UTC()), nil
}

func insertArgs(p *domprofile.Profile) []any {
	f := p.Fields()
	return []any{
		p.ID(), f.Age, f.Gender, f.MaritalStatus, f.Caste, f.Sect, f.State,
		f.About, f.PartnerPreference, p.Indexed(), p.CreatedAt(),
	}
}
