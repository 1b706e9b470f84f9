package matchdex

import (
	"time"

	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

// Gender values accepted by ProfileInput and MatchRequest (case-insensitive).
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// ProfileInput is the data needed to register a profile.
// ID is optional; an empty ID gets a generated time-ordered UUID.
type ProfileInput struct {
	ID                string
	Age               int
	Gender            string
	MaritalStatus     string
	Caste             string
	Sect              string
	State             string
	About             string
	PartnerPreference string
}

// Profile is a stored profile snapshot.
type Profile struct {
	ID                string
	Age               int
	Gender            string
	MaritalStatus     string
	Caste             string
	Sect              string
	State             string
	About             string
	PartnerPreference string
	Indexed           bool
	CreatedAt         time.Time
}

// RegisterResult reports a registration. Deferred means the profile was
// stored but embedding failed; it stays filter-only until reindexed.
type RegisterResult struct {
	Profile  Profile
	Indexed  bool
	Deferred bool
}

// MatchRequest selects free-text mode (Query) or profile-seeded mode (UserID).
// UserID wins when both are set. Nil pointers fall back to defaults.
type MatchRequest struct {
	Query  string
	UserID string

	AgeTolerance *int
	SameGender   bool
	TopK         *int

	Gender        *string
	MinAge        *int
	MaxAge        *int
	Caste         *string
	Sect          *string
	MaritalStatus *string
	State         *string
}

// MatchMode names the query entry point that served a request.
type MatchMode string

// Match modes.
const (
	ModeText    MatchMode = "text"
	ModeProfile MatchMode = "profile"
)

// Match is one ranked candidate.
type Match struct {
	Profile Profile
	Score   float64
	Rank    int
}

// MatchResponse is the answer to a match query.
// QueryText is the text that was embedded; empty when a stored vector was reused.
type MatchResponse struct {
	Mode       MatchMode
	QueryText  string
	Candidates int
	Took       time.Duration
	Results    []Match
}

// Int returns a pointer to v, for optional request fields.
func Int(v int) *int { return &v }

// String returns a pointer to v, for optional request fields.
func String(v string) *string { return &v }

func fromDomainProfile(p *profile.Profile) Profile {
	return Profile{
		ID:                p.ID(),
		Age:               p.Age(),
		Gender:            string(p.Gender()),
		MaritalStatus:     string(p.MaritalStatus()),
		Caste:             p.Caste(),
		Sect:              p.Sect(),
		State:             p.State(),
		About:             p.About(),
		PartnerPreference: p.PartnerPreference(),
		Indexed:           p.Indexed(),
		CreatedAt:         p.CreatedAt(),
	}
}

func (in *ProfileInput) fields() profile.Fields {
	return profile.Fields{
		Age:               in.Age,
		Gender:            in.Gender,
		MaritalStatus:     in.MaritalStatus,
		Caste:             in.Caste,
		Sect:              in.Sect,
		State:             in.State,
		About:             in.About,
		PartnerPreference: in.PartnerPreference,
	}
}

func (r *MatchRequest) params() (dommatch.Params, error) {
	p := dommatch.Params{
		Text:         r.Query,
		SeedID:       r.UserID,
		AgeTolerance: r.AgeTolerance,
		SameGender:   r.SameGender,
		TopK:         r.TopK,
		Filters: dommatch.Filters{
			MinAge:        r.MinAge,
			MaxAge:        r.MaxAge,
			Caste:         r.Caste,
			Sect:          r.Sect,
			MaritalStatus: r.MaritalStatus,
			State:         r.State,
		},
	}
	if r.Gender != nil {
		g, err := profile.ParseGender(*r.Gender)
		if err != nil {
			return dommatch.Params{}, err
		}
		p.Filters.Gender = &g
	}
	return p, nil
}

func fromOutcome(o *dommatch.Outcome) MatchResponse {
	results := make([]Match, 0, len(o.Results))
	for i := range o.Results {
		r := &o.Results[i]
		results = append(results, Match{
			Profile: fromDomainProfile(&r.Profile),
			Score:   r.Score,
			Rank:    r.Rank,
		})
	}
	return MatchResponse{
		Mode:       MatchMode(o.Mode),
		QueryText:  o.QueryText,
		Candidates: o.Candidates,
		Took:       o.Took,
		Results:    results,
	}
}
