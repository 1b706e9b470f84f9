package match

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// Mode selects how the search vector is obtained.
type Mode string

const (
	// ModeText embeds free query text (mode A).
	ModeText Mode = "text"
	// ModeProfile seeds the search from a stored profile (mode B).
	ModeProfile Mode = "profile"
)

// MaxQueryLength is the maximum free-text query length in bytes.
const MaxQueryLength = 4096

// FallbackQueryText is embedded for a seed profile with no stored vector and no free text.
const FallbackQueryText = "looking for suitable partner"

// Limits bound request parameters.
type Limits struct {
	DefaultTopK         int
	MaxTopK             int
	DefaultAgeTolerance int
	MaxAgeTolerance     int
}

// DefaultLimits returns the stock request limits.
func DefaultLimits() Limits {
	return Limits{
		DefaultTopK:         10,
		MaxTopK:             100,
		DefaultAgeTolerance: 5,
		MaxAgeTolerance:     20,
	}
}

// Params is the raw match request. Nil pointers mean "not supplied".
type Params struct {
	Text         string
	SeedID       string
	AgeTolerance *int
	SameGender   bool
	Filters      Filters
	TopK         *int
}

// Query is a validated match request.
type Query struct {
	mode         Mode
	text         string
	seedID       string
	ageTolerance int
	sameGender   bool
	filters      Filters
	topK         int
}

// NewQuery validates params. A seed id takes precedence over text; text is then ignored.
// top_k is clamped to [0, MaxTopK]; age tolerance outside [0, MaxAgeTolerance] is rejected.
func NewQuery(p Params, l Limits) (Query, error) {
	q := Query{
		text:       strings.TrimSpace(p.Text),
		seedID:     strings.TrimSpace(p.SeedID),
		sameGender: p.SameGender,
		filters:    p.Filters,
	}

	switch {
	case q.seedID != "":
		q.mode = ModeProfile
		q.text = ""
	case q.text != "":
		q.mode = ModeText
	default:
		return Query{}, domain.Invalid("query", "either query or user_id is required")
	}

	if len(q.text) > MaxQueryLength {
		return Query{}, domain.Invalid("query", fmt.Sprintf("too long (max %d chars)", MaxQueryLength))
	}

	q.topK = l.DefaultTopK
	if p.TopK != nil {
		q.topK = min(max(*p.TopK, 0), l.MaxTopK)
	}

	q.ageTolerance = l.DefaultAgeTolerance
	if p.AgeTolerance != nil {
		if *p.AgeTolerance < 0 || *p.AgeTolerance > l.MaxAgeTolerance {
			return Query{}, domain.Invalid("age_tolerance",
				fmt.Sprintf("must be between 0 and %d, got %d", l.MaxAgeTolerance, *p.AgeTolerance))
		}
		q.ageTolerance = *p.AgeTolerance
	}

	if err := q.filters.Validate(); err != nil {
		return Query{}, err
	}

	return q, nil
}

// Mode returns the query mode.
func (q *Query) Mode() Mode { return q.mode }

// Text returns the free query text (mode A only).
func (q *Query) Text() string { return q.text }

// SeedID returns the seed profile id (mode B only).
func (q *Query) SeedID() string { return q.seedID }

// AgeTolerance returns the mode B age window half-width.
func (q *Query) AgeTolerance() int { return q.ageTolerance }

// SameGender reports whether mode B searches the seed's own gender.
func (q *Query) SameGender() bool { return q.sameGender }

// Filters returns the explicit request filters.
func (q *Query) Filters() Filters { return q.filters }

// TopK returns the clamped result count.
func (q *Query) TopK() int { return q.topK }

// SeededFilters derives mode B filters from the seed profile.
// Explicit gender wins over the pairing policy; any explicit age bound disables
// the derived window. The derived lower bound never drops below profile.MinAge.
func (q *Query) SeededFilters(seed *profile.Profile) Filters {
	f := q.filters

	if f.Gender == nil {
		g := profile.PairingFor(q.sameGender)(seed.Gender())
		f.Gender = &g
	}

	if f.MinAge == nil && f.MaxAge == nil {
		lo := max(profile.MinAge, seed.Age()-q.ageTolerance)
		hi := seed.Age() + q.ageTolerance
		f.MinAge = &lo
		f.MaxAge = &hi
	}

	return f
}

// SeedQueryText picks the text embedded for a seed without a stored vector.
func SeedQueryText(seed *profile.Profile) string {
	if t := seed.PartnerPreference(); t != "" {
		return t
	}
	if t := seed.About(); t != "" {
		return t
	}
	return FallbackQueryText
}
