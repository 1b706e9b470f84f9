// Package importer bulk-loads profiles from CSV into the Profile Store.
// Imported profiles are unindexed; the next indexer run embeds them.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// DefaultBatchSize is the number of rows written per CreateMany call.
const DefaultBatchSize = 500

// Columns recognised in the header, matched case-insensitively.
const (
	colAge               = "age"
	colGender            = "gender"
	colMaritalStatus     = "marital_status"
	colCaste             = "caste"
	colSect              = "sect"
	colState             = "state"
	colAbout             = "about"
	colPartnerPreference = "partner_preference"
)

var requiredColumns = []string{colAge, colGender}

// Rejection is a row that was not imported. Row is 1-based, header excluded.
type Rejection struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Summary reports an import run.
type Summary struct {
	Rows       int         `json:"rows"`
	Imported   int         `json:"imported"`
	Rejected   int         `json:"rejected"`
	Rejections []Rejection `json:"rejections,omitempty"`
}

func (s *Summary) reject(row int, reason string) {
	s.Rejected++
	s.Rejections = append(s.Rejections, Rejection{Row: row, Reason: reason})
}

// Service reads CSV rows and writes them as new profiles.
type Service struct {
	store     ProfileWriter
	batchSize int
	logger    *zap.Logger
	newID     func() (uuid.UUID, error)
	now       func() time.Time
}

// New creates an importer. batchSize <= 0 selects DefaultBatchSize.
func New(store ProfileWriter, batchSize int, logger *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		batchSize: batchSize,
		logger:    logger,
		newID:     uuid.NewV7,
		now:       time.Now,
	}
}

type pendingRow struct {
	row     int
	profile profile.Profile
}

// Import consumes r to the end. Invalid rows are rejected and skipped; a
// store failure stops the import and returns the summary so far.
func (s *Service) Import(ctx context.Context, r io.Reader) (Summary, error) {
	var sum Summary

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return sum, domain.Invalid("file", "empty CSV")
	}
	if err != nil {
		return sum, domain.Invalid("file", fmt.Sprintf("read header: %v", err))
	}
	cols, err := mapColumns(header)
	if err != nil {
		return sum, err
	}

	batch := make([]pendingRow, 0, s.batchSize)
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("import: %w", err)
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		sum.Rows++
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			sum.reject(row, perr.Err.Error())
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("read row %d: %w", row, err)
		}

		p, err := s.parseRow(rec, cols)
		if err != nil {
			sum.reject(row, reasonOf(err))
			continue
		}
		batch = append(batch, pendingRow{row: row, profile: p})
		if len(batch) == s.batchSize {
			if err := s.flush(ctx, batch, &sum); err != nil {
				return sum, err
			}
			batch = batch[:0]
		}
	}
	if err := s.flush(ctx, batch, &sum); err != nil {
		return sum, err
	}

	s.logger.Info("import finished",
		zap.Int("rows", sum.Rows),
		zap.Int("imported", sum.Imported),
		zap.Int("rejected", sum.Rejected),
	)
	return sum, nil
}

// flush writes a batch in one call and falls back to row-by-row writes when
// the batch is refused, so one bad row does not sink its neighbours.
func (s *Service) flush(ctx context.Context, batch []pendingRow, sum *Summary) error {
	if len(batch) == 0 {
		return nil
	}
	ps := make([]profile.Profile, len(batch))
	for i := range batch {
		ps[i] = batch[i].profile
	}
	err := s.store.CreateMany(ctx, ps)
	if err == nil {
		sum.Imported += len(batch)
		s.logger.Debug("batch imported", zap.Int("size", len(batch)), zap.Int("last_row", batch[len(batch)-1].row))
		return nil
	}
	if ctx.Err() != nil {
		return domain.Unavailable("import batch", err)
	}
	s.logger.Warn("batch insert failed, retrying row by row",
		zap.Int("size", len(batch)), zap.Error(err))

	for i := range batch {
		err := s.store.Create(ctx, &batch[i].profile)
		switch {
		case err == nil:
			sum.Imported++
		case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrInvalidRequest):
			sum.reject(batch[i].row, reasonOf(err))
		default:
			return domain.Unavailable(fmt.Sprintf("import row %d", batch[i].row), err)
		}
	}
	return nil
}

func (s *Service) parseRow(rec []string, cols map[string]int) (profile.Profile, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	age, err := parseAge(get(colAge))
	if err != nil {
		return profile.Profile{}, err
	}
	id, err := s.newID()
	if err != nil {
		return profile.Profile{}, fmt.Errorf("generate id: %w", err)
	}
	return profile.New(id.String(), profile.Fields{
		Age:               age,
		Gender:            get(colGender),
		MaritalStatus:     get(colMaritalStatus),
		Caste:             get(colCaste),
		Sect:              get(colSect),
		State:             get(colState),
		About:             get(colAbout),
		PartnerPreference: get(colPartnerPreference),
	}, s.now())
}

func reasonOf(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Field + " " + ve.Reason
	}
	return err.Error()
}

// parseAge accepts integers and integral floats ("29", "29.0").
func parseAge(s string) (int, error) {
	if s == "" {
		return 0, domain.Invalid("Age", "is required")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, domain.Invalid("Age", fmt.Sprintf("not an integer: %q", s))
	}
	return int(f), nil
}

func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, req := range requiredColumns {
		if _, ok := cols[req]; !ok {
			return nil, domain.Invalid("file", fmt.Sprintf("missing column %q", req))
		}
	}
	return cols, nil
}
