package match

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// Filters is the structured predicate a candidate must satisfy.
// Nil fields are unconstrained.
type Filters struct {
	Gender        *profile.Gender `json:"gender,omitempty"`
	MinAge        *int            `json:"min_age,omitempty"`
	MaxAge        *int            `json:"max_age,omitempty"`
	Caste         *string         `json:"caste,omitempty"`
	Sect          *string         `json:"sect,omitempty"`
	MaritalStatus *string         `json:"marital_status,omitempty"`
	State         *string         `json:"state,omitempty"`
}

// Validate checks age bounds. String fields are free-form.
func (f *Filters) Validate() error {
	if f.MinAge != nil && *f.MinAge < 0 {
		return domain.Invalid("min_age", "must not be negative")
	}
	if f.MaxAge != nil && *f.MaxAge < 0 {
		return domain.Invalid("max_age", "must not be negative")
	}
	if f.MinAge != nil && f.MaxAge != nil && *f.MinAge > *f.MaxAge {
		return domain.Invalid("min_age", fmt.Sprintf("must not exceed max_age (%d > %d)", *f.MinAge, *f.MaxAge))
	}
	return nil
}

// Matches reports whether p satisfies every specified constraint.
// String comparisons are case-insensitive exact matches.
func (f *Filters) Matches(p *profile.Profile) bool {
	if f.Gender != nil && !equalTag(string(*f.Gender), string(p.Gender())) {
		return false
	}
	if f.MinAge != nil && p.Age() < *f.MinAge {
		return false
	}
	if f.MaxAge != nil && p.Age() > *f.MaxAge {
		return false
	}
	if f.Caste != nil && !equalTag(*f.Caste, p.Caste()) {
		return false
	}
	if f.Sect != nil && !equalTag(*f.Sect, p.Sect()) {
		return false
	}
	if f.MaritalStatus != nil && !equalTag(*f.MaritalStatus, string(p.MaritalStatus())) {
		return false
	}
	if f.State != nil && !equalTag(*f.State, p.State()) {
		return false
	}
	return true
}

// IsEmpty reports whether no constraint is set.
func (f *Filters) IsEmpty() bool {
	return f.Gender == nil && f.MinAge == nil && f.MaxAge == nil &&
		f.Caste == nil && f.Sect == nil && f.MaritalStatus == nil && f.State == nil
}

// NormalizeTag is the canonical form used for equality and index metadata.
func NormalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func equalTag(a, b string) bool {
	return NormalizeTag(a) == NormalizeTag(b)
}
