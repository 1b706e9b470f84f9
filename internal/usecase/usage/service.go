package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/matchdex/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br       BudgetReader
	provider string
	model    string
	now      func() time.Time
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader, provider, model string) *Service {
	return &Service{br: br, provider: provider, model: model, now: time.Now}
}

// GetReport builds a usage report for the given period. Unknown periods are
// reported as a month.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now().UTC()
	var start, end time.Time

	switch period {
	case domusage.PeriodDay:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
	default:
		period = domusage.PeriodMonth
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
	}

	b := domusage.Budget{TokensRemaining: -1, ResetsAt: end.UnixMilli()}
	if s.br != nil {
		b = s.br.Snapshot(period)
	}

	return domusage.NewReport(period, start.UnixMilli(), end.UnixMilli(), s.provider, s.model, b)
}
