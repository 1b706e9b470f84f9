package matchdex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/matchdex/internal/domain"
	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	domusage "github.com/kailas-cloud/matchdex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/matchdex/internal/usecase/health"
	registrationuc "github.com/kailas-cloud/matchdex/internal/usecase/registration"
)

var created = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func storedProfile(id string, indexed bool) profile.Profile {
	return profile.Reconstruct(id, profile.Fields{
		Age:               28,
		Gender:            "Female",
		MaritalStatus:     "Never Married",
		Caste:             "Syed",
		State:             "Telangana",
		About:             "Software engineer in Hyderabad",
		PartnerPreference: "Educated and kind",
	}, indexed, created)
}

// --- Register ---

func TestClient_Register(t *testing.T) {
	mock := &mockRegistrationUC{
		registerFn: func(_ context.Context, id string, f profile.Fields) (registrationuc.Result, error) {
			if id != "" {
				t.Errorf("id = %q, want empty", id)
			}
			if f.Age != 28 || f.Gender != "female" || f.About != "Software engineer in Hyderabad" {
				t.Errorf("unexpected fields: %+v", f)
			}
			return registrationuc.Result{Profile: storedProfile("u-1", true), Indexed: true}, nil
		},
	}

	c := testClient(mock, nil)
	res, err := c.Register(context.Background(), ProfileInput{
		Age:    28,
		Gender: "female",
		About:  "Software engineer in Hyderabad",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Profile.ID != "u-1" || !res.Indexed || res.Deferred {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Profile.Gender != GenderFemale || !res.Profile.CreatedAt.Equal(created) {
		t.Errorf("profile not converted: %+v", res.Profile)
	}
}

func TestClient_Register_Deferred(t *testing.T) {
	mock := &mockRegistrationUC{
		registerFn: func(context.Context, string, profile.Fields) (registrationuc.Result, error) {
			return registrationuc.Result{Profile: storedProfile("u-2", false), Deferred: true}, nil
		},
	}

	res, err := testClient(mock, nil).Register(context.Background(), ProfileInput{Age: 30, Gender: "Male"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Indexed || !res.Deferred || res.Profile.Indexed {
		t.Errorf("expected deferred registration, got %+v", res)
	}
}

func TestClient_Register_Invalid(t *testing.T) {
	mock := &mockRegistrationUC{
		registerFn: func(context.Context, string, profile.Fields) (registrationuc.Result, error) {
			return registrationuc.Result{}, domain.Invalid("Age", "must be between 18 and 100")
		},
	}

	_, err := testClient(mock, nil).Register(context.Background(), ProfileInput{Age: 12})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

// --- Profile ---

func TestClient_Profile(t *testing.T) {
	mock := &mockRegistrationUC{
		getFn: func(_ context.Context, id string) (profile.Profile, error) {
			return storedProfile(id, true), nil
		},
	}

	p, err := testClient(mock, nil).Profile(context.Background(), "u-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "u-9" || p.State != "Telangana" || !p.Indexed {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestClient_Profile_NotFound(t *testing.T) {
	mock := &mockRegistrationUC{
		getFn: func(context.Context, string) (profile.Profile, error) {
			return profile.Profile{}, domain.ErrNotFound
		},
	}

	_, err := testClient(mock, nil).Profile(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Match ---

func TestClient_Match_ConvertsRequestAndOutcome(t *testing.T) {
	var got dommatch.Params
	mock := &mockMatchUC{
		matchFn: func(_ context.Context, p dommatch.Params) (dommatch.Outcome, error) {
			got = p
			return dommatch.Outcome{
				Mode:       dommatch.ModeProfile,
				Candidates: 7,
				Took:       12 * time.Millisecond,
				Results: []dommatch.Result{
					{Profile: storedProfile("u-3", true), Score: 0.91, Rank: 1},
					{Profile: storedProfile("u-4", true), Score: 0.72, Rank: 2},
				},
			}, nil
		},
	}

	resp, err := testClient(nil, mock).Match(context.Background(), MatchRequest{
		UserID:       "seed",
		AgeTolerance: Int(3),
		TopK:         Int(2),
		Gender:       String("male"),
		Caste:        String("Syed"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.SeedID != "seed" || *got.AgeTolerance != 3 || *got.TopK != 2 {
		t.Errorf("params not forwarded: %+v", got)
	}
	if got.Filters.Gender == nil || *got.Filters.Gender != profile.Male {
		t.Errorf("gender filter = %v, want Male", got.Filters.Gender)
	}
	if *got.Filters.Caste != "Syed" {
		t.Errorf("caste filter = %v", got.Filters.Caste)
	}

	if resp.Mode != ModeProfile || resp.Candidates != 7 || len(resp.Results) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Results[0].Profile.ID != "u-3" || resp.Results[0].Rank != 1 || resp.Results[1].Score != 0.72 {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
}

func TestClient_Match_InvalidGender(t *testing.T) {
	mock := &mockMatchUC{
		matchFn: func(context.Context, dommatch.Params) (dommatch.Outcome, error) {
			t.Fatal("engine should not be called")
			return dommatch.Outcome{}, nil
		},
	}

	_, err := testClient(nil, mock).Match(context.Background(), MatchRequest{Query: "x", Gender: String("robot")})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestClient_Match_EngineError(t *testing.T) {
	mock := &mockMatchUC{
		matchFn: func(context.Context, dommatch.Params) (dommatch.Outcome, error) {
			return dommatch.Outcome{}, domain.ErrServiceUnavailable
		},
	}

	_, err := testClient(nil, mock).Match(context.Background(), MatchRequest{Query: "kind"})
	if !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}
}

// --- Health / Usage ---

func TestClient_Health(t *testing.T) {
	c := &Client{healthSvc: &mockHealthUC{report: healthuc.Report{
		Status:   healthuc.Healthy,
		Checks:   map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckOK},
		Profiles: 42,
	}}}

	h := c.Health(context.Background())
	if h.Status != "ok" || h.Checks["database"] != "ok" || h.Profiles != 42 {
		t.Errorf("unexpected health: %+v", h)
	}
}

func TestClient_Usage(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	mock := &mockUsageUC{report: domusage.NewReport(
		domusage.PeriodMonth, start.UnixMilli(), end.UnixMilli(), "sdk", "",
		domusage.Budget{TokensLimit: 1000, TokensUsed: 250, TokensRemaining: 750, ResetsAt: end.UnixMilli()},
	)}
	c := &Client{usageSvc: mock}

	u := c.Usage(context.Background(), PeriodMonth)
	if mock.got != domusage.PeriodMonth {
		t.Errorf("period = %q, want month", mock.got)
	}
	if !u.PeriodStart.Equal(start) || !u.PeriodEnd.Equal(end) {
		t.Errorf("bounds = %v..%v", u.PeriodStart, u.PeriodEnd)
	}
	if u.Budget.TokensUsed != 250 || u.Budget.TokensRemaining != 750 || u.Budget.IsExhausted {
		t.Errorf("unexpected budget: %+v", u.Budget)
	}
}
