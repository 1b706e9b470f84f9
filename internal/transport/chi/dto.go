package chi

import (
	"net/url"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kailas-cloud/matchdex/internal/domain"
	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	domusage "github.com/kailas-cloud/matchdex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/matchdex/internal/usecase/health"
)

// RegisterRequest is the POST /users body. Keys keep the dataset's column names.
type RegisterRequest struct {
	UserID            string `json:"user_id,omitempty"`
	Age               int    `json:"Age"`
	Gender            string `json:"Gender"`
	MaritalStatus     string `json:"Marital_Status"`
	Caste             string `json:"Caste"`
	Sect              string `json:"Sect"`
	State             string `json:"State"`
	About             string `json:"About"`
	PartnerPreference string `json:"Partner_Preference"`
}

func (r *RegisterRequest) fields() profile.Fields {
	return profile.Fields{
		Age:               r.Age,
		Gender:            r.Gender,
		MaritalStatus:     r.MaritalStatus,
		Caste:             r.Caste,
		Sect:              r.Sect,
		State:             r.State,
		About:             r.About,
		PartnerPreference: r.PartnerPreference,
	}
}

// RegisterResponse answers POST /users.
type RegisterResponse struct {
	UserID  string `json:"user_id"`
	Indexed bool   `json:"indexed"`
}

// ProfileResponse is a stored profile snapshot.
type ProfileResponse struct {
	UserID            string    `json:"user_id"`
	Age               int       `json:"Age"`
	Gender            string    `json:"Gender"`
	MaritalStatus     string    `json:"Marital_Status,omitempty"`
	Caste             string    `json:"Caste,omitempty"`
	Sect              string    `json:"Sect,omitempty"`
	State             string    `json:"State,omitempty"`
	About             string    `json:"About,omitempty"`
	PartnerPreference string    `json:"Partner_Preference,omitempty"`
	Indexed           bool      `json:"indexed"`
	CreatedAt         time.Time `json:"created_at"`
}

func profileToResponse(p *profile.Profile) ProfileResponse {
	return ProfileResponse{
		UserID:            p.ID(),
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

// MatchParams are the GET /match query parameters.
type MatchParams struct {
	Query         *string `form:"query"`
	UserID        *string `form:"user_id"`
	Gender        *string `form:"gender"`
	SameGender    *bool   `form:"same_gender"`
	MinAge        *int    `form:"min_age"`
	MaxAge        *int    `form:"max_age"`
	Caste         *string `form:"caste"`
	Sect          *string `form:"sect"`
	State         *string `form:"state"`
	MaritalStatus *string `form:"marital_status"`
	AgeTolerance  *int    `form:"age_tolerance"`
	TopK          *int    `form:"top_k"`
}

// bindMatchParams decodes query parameters with the OpenAPI form style.
func bindMatchParams(q url.Values) (MatchParams, error) {
	var p MatchParams
	binds := []struct {
		name string
		dest any
	}{
		{"query", &p.Query},
		{"user_id", &p.UserID},
		{"gender", &p.Gender},
		{"same_gender", &p.SameGender},
		{"min_age", &p.MinAge},
		{"max_age", &p.MaxAge},
		{"caste", &p.Caste},
		{"sect", &p.Sect},
		{"state", &p.State},
		{"marital_status", &p.MaritalStatus},
		{"age_tolerance", &p.AgeTolerance},
		{"top_k", &p.TopK},
	}
	for _, b := range binds {
		if err := runtime.BindQueryParameter("form", true, false, b.name, q, b.dest); err != nil {
			return MatchParams{}, domain.Invalid(b.name, "has invalid format")
		}
	}
	return p, nil
}

// toDomain converts bound parameters. Blank strings count as absent.
func (p *MatchParams) toDomain() (dommatch.Params, error) {
	out := dommatch.Params{
		Text:         deref(p.Query),
		SeedID:       deref(p.UserID),
		AgeTolerance: p.AgeTolerance,
		TopK:         p.TopK,
		SameGender:   p.SameGender != nil && *p.SameGender,
		Filters: dommatch.Filters{
			MinAge:        p.MinAge,
			MaxAge:        p.MaxAge,
			Caste:         nonBlank(p.Caste),
			Sect:          nonBlank(p.Sect),
			State:         nonBlank(p.State),
			MaritalStatus: nonBlank(p.MaritalStatus),
		},
	}
	if g := nonBlank(p.Gender); g != nil {
		gender, err := profile.ParseGender(*g)
		if err != nil {
			return dommatch.Params{}, err
		}
		out.Filters.Gender = &gender
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// MatchResult is one ranked candidate.
type MatchResult struct {
	UserID  string          `json:"user_id"`
	Score   float64         `json:"score"`
	Rank    int             `json:"rank"`
	Profile ProfileResponse `json:"profile"`
}

// MatchResponse answers GET /match.
type MatchResponse struct {
	Query      string           `json:"query"`
	Mode       string           `json:"mode"`
	Filters    dommatch.Filters `json:"filters"`
	Candidates int              `json:"candidates"`
	TookMS     int64            `json:"took_ms"`
	Results    []MatchResult    `json:"results"`
}

func outcomeToResponse(o *dommatch.Outcome) MatchResponse {
	results := make([]MatchResult, len(o.Results))
	for i := range o.Results {
		r := &o.Results[i]
		results[i] = MatchResult{
			UserID:  r.Profile.ID(),
			Score:   r.Score,
			Rank:    r.Rank,
			Profile: profileToResponse(&r.Profile),
		}
	}
	return MatchResponse{
		Query:      o.QueryText,
		Mode:       string(o.Mode),
		Filters:    o.Filters,
		Candidates: o.Candidates,
		TookMS:     o.Took.Milliseconds(),
		Results:    results,
	}
}

// BudgetStatus is the token budget part of UsageResponse.
type BudgetStatus struct {
	TokensLimit     int64     `json:"tokens_limit"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensRemaining int64     `json:"tokens_remaining"`
	IsExhausted     bool      `json:"is_exhausted"`
	ResetsAt        time.Time `json:"resets_at"`
}

// UsageResponse answers GET /usage.
type UsageResponse struct {
	Period        string       `json:"period"`
	PeriodStartAt time.Time    `json:"period_start_at"`
	PeriodEndAt   time.Time    `json:"period_end_at"`
	Provider      string       `json:"provider"`
	Model         string       `json:"model"`
	Budget        BudgetStatus `json:"budget"`
}

func usageToResponse(r *domusage.Report) UsageResponse {
	b := r.Budget()
	return UsageResponse{
		Period:        string(r.Period()),
		PeriodStartAt: time.UnixMilli(r.PeriodStart()).UTC(),
		PeriodEndAt:   time.UnixMilli(r.PeriodEnd()).UTC(),
		Provider:      r.Provider(),
		Model:         r.Model(),
		Budget: BudgetStatus{
			TokensLimit:     b.TokensLimit,
			TokensUsed:      b.TokensUsed,
			TokensRemaining: b.TokensRemaining,
			IsExhausted:     b.Exhausted,
			ResetsAt:        time.UnixMilli(b.ResetsAt).UTC(),
		},
	}
}

// HealthResponse answers GET /health. Profiles is omitted when the count failed.
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Profiles *int64            `json:"profiles,omitempty"`
}

func healthToResponse(r *healthuc.Report) HealthResponse {
	checks := make(map[string]string, len(r.Checks))
	for k, v := range r.Checks {
		checks[k] = string(v)
	}
	resp := HealthResponse{Status: string(r.Status), Checks: checks}
	if r.Profiles >= 0 {
		n := r.Profiles
		resp.Profiles = &n
	}
	return resp
}
