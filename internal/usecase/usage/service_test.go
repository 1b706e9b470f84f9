package usage

import (
	"context"
	"testing"
	"time"

	domusage "github.com/kailas-cloud/matchdex/internal/domain/usage"
)

// --- Mock ---

type mockBudgetReader struct {
	day   domusage.Budget
	month domusage.Budget
}

func (m *mockBudgetReader) Snapshot(p domusage.Period) domusage.Budget {
	if p == domusage.PeriodDay {
		return m.day
	}
	return m.month
}

func fixedService(br BudgetReader) *Service {
	svc := New(br, "openai", "text-embedding-3-small")
	svc.now = func() time.Time { return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC) }
	return svc
}

// --- Tests ---

func TestGetReport_DailyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		day:   domusage.Budget{TokensLimit: 10000, TokensUsed: 3000, TokensRemaining: 7000},
		month: domusage.Budget{TokensLimit: 100000, TokensUsed: 50000, TokensRemaining: 50000},
	}
	r := fixedService(br).GetReport(context.Background(), domusage.PeriodDay)

	if r.Period() != domusage.PeriodDay {
		t.Errorf("expected period %q, got %q", domusage.PeriodDay, r.Period())
	}
	dayStart := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != dayStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", dayStart.UnixMilli(), r.PeriodStart())
	}
	if r.PeriodEnd() != dayStart.Add(24*time.Hour).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd())
	}
	if r.Budget().TokensUsed != 3000 || r.Budget().TokensLimit != 10000 {
		t.Errorf("unexpected budget %+v", r.Budget())
	}
	if r.Provider() != "openai" || r.Model() != "text-embedding-3-small" {
		t.Errorf("provider/model = %q/%q", r.Provider(), r.Model())
	}
}

func TestGetReport_MonthlyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		month: domusage.Budget{TokensLimit: 100000, TokensUsed: 100000, TokensRemaining: 0, Exhausted: true},
	}
	r := fixedService(br).GetReport(context.Background(), domusage.PeriodMonth)

	monthStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != monthStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", monthStart.UnixMilli(), r.PeriodStart())
	}
	if r.PeriodEnd() != time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("unexpected period end %d", r.PeriodEnd())
	}
	if !r.Budget().Exhausted {
		t.Error("expected exhausted budget")
	}
}

func TestGetReport_UnknownPeriodIsMonth(t *testing.T) {
	r := fixedService(&mockBudgetReader{}).GetReport(context.Background(), domusage.Period("total"))
	if r.Period() != domusage.PeriodMonth {
		t.Errorf("expected %q, got %q", domusage.PeriodMonth, r.Period())
	}
}

func TestGetReport_NilBudget(t *testing.T) {
	r := fixedService(nil).GetReport(context.Background(), domusage.PeriodDay)

	if r.Budget().TokensLimit != 0 {
		t.Errorf("expected unlimited, got %d", r.Budget().TokensLimit)
	}
	if r.Budget().TokensRemaining != -1 {
		t.Errorf("expected -1 remaining, got %d", r.Budget().TokensRemaining)
	}
	if r.Budget().ResetsAt != r.PeriodEnd() {
		t.Errorf("resets_at %d != period end %d", r.Budget().ResetsAt, r.PeriodEnd())
	}
}
