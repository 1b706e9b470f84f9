// Package indexing holds the value types of an Embedding Indexer run.
package indexing

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/matchdex/internal/domain"
)

// Defaults for a run.
const (
	DefaultBatchSize = 100
	MaxBatchSize     = 1000
)

// Options controls one indexer run.
type Options struct {
	// Limit caps profiles processed in this run; 0 means no cap.
	Limit int
	// BatchSize bounds memory and embedding call size per batch.
	BatchSize int
	// Resume continues after the saved checkpoint instead of the beginning.
	Resume bool
	// Force re-embeds profiles whose stored text hash is unchanged.
	Force bool
}

// Normalize clamps the batch size into [1, MaxBatchSize] and rejects a negative limit.
func (o Options) Normalize() (Options, error) {
	if o.Limit < 0 {
		return Options{}, domain.Invalid("limit", fmt.Sprintf("must not be negative, got %d", o.Limit))
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	o.BatchSize = min(o.BatchSize, MaxBatchSize)
	return o, nil
}

// Failure records one profile that could not be indexed.
type Failure struct {
	ProfileID string `json:"profile_id"`
	Reason    string `json:"reason"`
}

// Summary is the outcome of a run.
// Skipped = SkippedEmpty + SkippedUnchanged.
type Summary struct {
	Processed        int       `json:"processed"`
	Embedded         int       `json:"embedded"`
	Skipped          int       `json:"skipped"`
	SkippedEmpty     int       `json:"skipped_empty"`
	SkippedUnchanged int       `json:"skipped_unchanged"`
	Failed           int       `json:"failed"`
	Failures         []Failure `json:"failures"`
	LastID           string    `json:"last_id"`
	Aborted          bool      `json:"aborted"`
	AbortReason      string    `json:"abort_reason,omitempty"`
}

// Outcome is the per-profile result inside a batch.
type Outcome int

const (
	// OutcomeEmbedded means a vector was written.
	OutcomeEmbedded Outcome = iota
	// OutcomeSkippedEmpty means the profile has no free text.
	OutcomeSkippedEmpty
	// OutcomeSkippedUnchanged means the stored vector is current.
	OutcomeSkippedUnchanged
	// OutcomeFailed means retries were exhausted.
	OutcomeFailed
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeEmbedded:
		return "embedded"
	case OutcomeSkippedEmpty:
		return "skipped_empty"
	case OutcomeSkippedUnchanged:
		return "skipped_unchanged"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Record counts one processed profile.
func (s *Summary) Record(profileID string, o Outcome, reason string) {
	s.Processed++
	switch o {
	case OutcomeEmbedded:
		s.Embedded++
	case OutcomeSkippedEmpty:
		s.Skipped++
		s.SkippedEmpty++
	case OutcomeSkippedUnchanged:
		s.Skipped++
		s.SkippedUnchanged++
	case OutcomeFailed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{ProfileID: profileID, Reason: reason})
	}
}

// Err returns ErrPartialIndexFailure when any profile failed.
func (s *Summary) Err() error {
	if s.Failed == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d profiles: %w", s.Failed, s.Processed, domain.ErrPartialIndexFailure)
}

// Checkpoint is the last fully processed position of an indexer run.
type Checkpoint struct {
	LastID    string    `json:"last_id"`
	Processed int       `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
}
