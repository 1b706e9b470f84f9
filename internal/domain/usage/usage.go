package usage

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// Budget is an embedding token budget snapshot for the current period.
// A zero limit means unlimited.
type Budget struct {
	TokensLimit     int64
	TokensUsed      int64
	TokensRemaining int64
	Exhausted       bool
	ResetsAt        int64 // unix millis
}

// Report summarizes embedding provider usage for one period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	provider    string
	model       string
	budget      Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, provider, model string, b Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		provider:    provider,
		model:       model,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// Provider returns the embedding provider name.
func (r *Report) Provider() string { return r.provider }

// Model returns the embedding model name.
func (r *Report) Model() string { return r.model }

// Budget returns the budget snapshot.
func (r *Report) Budget() Budget { return r.budget }
