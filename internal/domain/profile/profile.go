// Package profile holds the Profile aggregate and the policies derived from it:
// embedding text, source hashing, and gender pairing.
package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/matchdex/internal/domain"
)

// Field limits.
const (
	MinAge        = 18
	MaxAge        = 100
	MaxTextLength = 4000
	MaxTagLength  = 100
	MaxIDLength   = 64
)

// Profile is a registered person's structured and free-text attributes.
type Profile struct {
	id                string
	age               int
	gender            Gender
	maritalStatus     MaritalStatus
	caste             string
	sect              string
	state             string
	about             string
	partnerPreference string
	indexed           bool
	createdAt         time.Time
}

// Fields is the mutable input used to create a Profile.
type Fields struct {
	Age               int
	Gender            string
	MaritalStatus     string
	Caste             string
	Sect              string
	State             string
	About             string
	PartnerPreference string
}

// New validates fields and creates an unindexed Profile with the given id.
func New(id string, f Fields, now time.Time) (Profile, error) {
	if strings.TrimSpace(id) == "" {
		return Profile{}, domain.Invalid("user_id", "is required")
	}
	if !validID(id) {
		return Profile{}, domain.Invalid("user_id", fmt.Sprintf("must be 1-%d chars of [A-Za-z0-9_.-]", MaxIDLength))
	}
	if f.Age < MinAge || f.Age > MaxAge {
		return Profile{}, domain.Invalid("Age", fmt.Sprintf("must be between %d and %d, got %d", MinAge, MaxAge, f.Age))
	}
	g, err := ParseGender(f.Gender)
	if err != nil {
		return Profile{}, err
	}
	var ms MaritalStatus
	if strings.TrimSpace(f.MaritalStatus) != "" {
		if ms, err = ParseMaritalStatus(f.MaritalStatus); err != nil {
			return Profile{}, err
		}
	}
	for _, tf := range []struct{ name, value string }{
		{"Caste", f.Caste}, {"Sect", f.Sect}, {"State", f.State},
	} {
		if len(tf.value) > MaxTagLength {
			return Profile{}, domain.Invalid(tf.name, fmt.Sprintf("too long (max %d chars)", MaxTagLength))
		}
	}
	if len(f.About) > MaxTextLength {
		return Profile{}, domain.Invalid("About", fmt.Sprintf("too long (max %d chars)", MaxTextLength))
	}
	if len(f.PartnerPreference) > MaxTextLength {
		return Profile{}, domain.Invalid("Partner_Preference", fmt.Sprintf("too long (max %d chars)", MaxTextLength))
	}

	return Profile{
		id:                id,
		age:               f.Age,
		gender:            g,
		maritalStatus:     ms,
		caste:             strings.TrimSpace(f.Caste),
		sect:              strings.TrimSpace(f.Sect),
		state:             strings.TrimSpace(f.State),
		about:             strings.TrimSpace(f.About),
		partnerPreference: strings.TrimSpace(f.PartnerPreference),
		createdAt:         now.UTC(),
	}, nil
}

func validID(id string) bool {
	if len(id) > MaxIDLength {
		return false
	}
	for _, r := range id {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '_' || r == '-' || r == '.'
		if !ok {
			return false
		}
	}
	return true
}

// Reconstruct creates a Profile without validation (storage hydration).
func Reconstruct(id string, f Fields, indexed bool, createdAt time.Time) Profile {
	return Profile{
		id:                id,
		age:               f.Age,
		gender:            Gender(f.Gender),
		maritalStatus:     MaritalStatus(f.MaritalStatus),
		caste:             f.Caste,
		sect:              f.Sect,
		state:             f.State,
		about:             f.About,
		partnerPreference: f.PartnerPreference,
		indexed:           indexed,
		createdAt:         createdAt,
	}
}

// ID returns the profile identifier.
func (p *Profile) ID() string { return p.id }

// Age returns the age in years.
func (p *Profile) Age() int { return p.age }

// Gender returns the gender.
func (p *Profile) Gender() Gender { return p.gender }

// MaritalStatus returns the marital status, empty if unknown.
func (p *Profile) MaritalStatus() MaritalStatus { return p.maritalStatus }

// Caste returns the caste.
func (p *Profile) Caste() string { return p.caste }

// Sect returns the sect.
func (p *Profile) Sect() string { return p.sect }

// State returns the state.
func (p *Profile) State() string { return p.state }

// About returns the self-description.
func (p *Profile) About() string { return p.about }

// PartnerPreference returns the desired-partner description.
func (p *Profile) PartnerPreference() string { return p.partnerPreference }

// Indexed reports whether the profile has a current embedding record.
func (p *Profile) Indexed() bool { return p.indexed }

// CreatedAt returns the creation timestamp.
func (p *Profile) CreatedAt() time.Time { return p.createdAt }

// Fields returns the profile attributes as a Fields value.
func (p *Profile) Fields() Fields {
	return Fields{
		Age:               p.age,
		Gender:            string(p.gender),
		MaritalStatus:     string(p.maritalStatus),
		Caste:             p.caste,
		Sect:              p.sect,
		State:             p.state,
		About:             p.about,
		PartnerPreference: p.partnerPreference,
	}
}

// WithIndexed returns a copy with the indexed flag set.
func (p Profile) WithIndexed(indexed bool) Profile {
	p.indexed = indexed
	return p
}

// EmbeddingText is the deterministic text embedded for this profile:
// labelled non-empty free-text fields joined by newline. Empty when both are blank.
func (p *Profile) EmbeddingText() string {
	return EmbeddingText(p.about, p.partnerPreference)
}

// EmbeddingText builds the embedding text from the two free-text fields.
func EmbeddingText(about, partnerPreference string) string {
	parts := make([]string, 0, 2)
	if a := strings.TrimSpace(about); a != "" {
		parts = append(parts, "About: "+a)
	}
	if pp := strings.TrimSpace(partnerPreference); pp != "" {
		parts = append(parts, "Seeks: "+pp)
	}
	return strings.Join(parts, "\n")
}

// TextHash returns the hex sha256 of text, used to detect stale embeddings.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embedding is the vector record kept for a profile. Profile, when set,
// supplies the metadata snapshot stored next to the vector.
type Embedding struct {
	ProfileID string
	Vector    []float32
	TextHash  string
	Profile   *Profile
}
