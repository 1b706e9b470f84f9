package matchdex

import "context"

// HealthStatus represents the aggregated system health.
// Profiles is -1 when the count could not be read.
type HealthStatus struct {
	Status   string            // "ok", "degraded", "error"
	Checks   map[string]string // component → "ok"/"error"
	Profiles int64
}

// Health checks the database and reports the stored profile count.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status:   string(report.Status),
		Checks:   checks,
		Profiles: report.Profiles,
	}
}
