package profile

import (
	"strconv"
	"time"

	domprofile "github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// Hash field names.
const (
	fieldAge               = "age"
	fieldGender            = "gender"
	fieldMaritalStatus     = "marital_status"
	fieldCaste             = "caste"
	fieldSect              = "sect"
	fieldState             = "state"
	fieldAbout             = "about"
	fieldPartnerPreference = "partner_preference"
	fieldIndexed           = "indexed"
	fieldCreatedAt         = "created_at"
)

func toHash(p *domprofile.Profile) map[string]string {
	f := p.Fields()
	return map[string]string{
		fieldAge:               strconv.Itoa(f.Age),
		fieldGender:            f.Gender,
		fieldMaritalStatus:     f.MaritalStatus,
		fieldCaste:             f.Caste,
		fieldSect:              f.Sect,
		fieldState:             f.State,
		fieldAbout:             f.About,
		fieldPartnerPreference: f.PartnerPreference,
		fieldIndexed:           formatBool(p.Indexed()),
		fieldCreatedAt:         strconv.FormatInt(p.CreatedAt().UnixMilli(), 10),
	}
}

// fromHash is lenient: malformed numbers decode as zero.
func fromHash(id string, m map[string]string) domprofile.Profile {
	age, _ := strconv.Atoi(m[fieldAge])
	var createdAt time.Time
	if ms, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64); err == nil && ms > 0 {
		createdAt = time.UnixMilli(ms).UTC()
	}
	return domprofile.Reconstruct(id, domprofile.Fields{
		Age:               age,
		Gender:            m[fieldGender],
		MaritalStatus:     m[fieldMaritalStatus],
		Caste:             m[fieldCaste],
		Sect:              m[fieldSect],
		State:             m[fieldState],
		About:             m[fieldAbout],
		PartnerPreference: m[fieldPartnerPreference],
	}, m[fieldIndexed] == "1", createdAt)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
