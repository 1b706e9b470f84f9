package profile

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/matchdex/internal/domain"
)

// Gender of a profile.
type Gender string

// Known genders.
const (
	Male   Gender = "Male"
	Female Gender = "Female"
	Other  Gender = "Other"
)

var genders = map[string]Gender{
	"male":   Male,
	"m":      Male,
	"female": Female,
	"f":      Female,
	"other":  Other,
}

// ParseGender parses a gender case-insensitively.
func ParseGender(s string) (Gender, error) {
	if g, ok := genders[strings.ToLower(strings.TrimSpace(s))]; ok {
		return g, nil
	}
	return "", domain.Invalid("Gender", fmt.Sprintf("must be one of Male, Female, Other, got %q", s))
}

// MaritalStatus of a profile.
type MaritalStatus string

// Known marital statuses. New values only need an entry in maritalStatuses.
const (
	NeverMarried MaritalStatus = "Never Married"
	Divorced     MaritalStatus = "Divorced"
	Widowed      MaritalStatus = "Widowed"
)

var maritalStatuses = map[string]MaritalStatus{
	"never married": NeverMarried,
	"never_married": NeverMarried,
	"single":        NeverMarried,
	"divorced":      Divorced,
	"widowed":       Widowed,
}

// ParseMaritalStatus parses a marital status case-insensitively.
func ParseMaritalStatus(s string) (MaritalStatus, error) {
	if ms, ok := maritalStatuses[strings.ToLower(strings.TrimSpace(s))]; ok {
		return ms, nil
	}
	return "", domain.Invalid("Marital_Status", fmt.Sprintf("must be one of Never Married, Divorced, Widowed, got %q", s))
}
