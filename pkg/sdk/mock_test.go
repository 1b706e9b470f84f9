package matchdex

import (
	"context"

	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	domusage "github.com/kailas-cloud/matchdex/internal/domain/usage"
	healthuc "github.com/kailas-cloud/matchdex/internal/usecase/health"
	registrationuc "github.com/kailas-cloud/matchdex/internal/usecase/registration"
)

// --- registrationUseCase mock ---

type mockRegistrationUC struct {
	registerFn func(ctx context.Context, id string, f profile.Fields) (registrationuc.Result, error)
	getFn      func(ctx context.Context, id string) (profile.Profile, error)
}

func (m *mockRegistrationUC) Register(ctx context.Context, id string, f profile.Fields) (registrationuc.Result, error) {
	return m.registerFn(ctx, id, f)
}

func (m *mockRegistrationUC) Get(ctx context.Context, id string) (profile.Profile, error) {
	return m.getFn(ctx, id)
}

// --- matchUseCase mock ---

type mockMatchUC struct {
	matchFn func(ctx context.Context, p dommatch.Params) (dommatch.Outcome, error)
}

func (m *mockMatchUC) Match(ctx context.Context, p dommatch.Params) (dommatch.Outcome, error) {
	return m.matchFn(ctx, p)
}

// --- healthUseCase / usageUseCase mocks ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

type mockUsageUC struct {
	report domusage.Report
	got    domusage.Period
}

func (m *mockUsageUC) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	m.got = period
	return m.report
}

// --- helpers ---

func testClient(reg registrationUseCase, match matchUseCase) *Client {
	return &Client{
		regSvc:   reg,
		matchSvc: match,
	}
}
