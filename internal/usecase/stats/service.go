// Package stats streams the Profile Store and reports on its population:
// categorical distributions used to pick filter values, and an inspection
// of how far the Vector Index lags behind.
package stats

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
)

const (
	defaultPageSize = 500
	// DefaultTopN is the number of buckets kept per field.
	DefaultTopN = 10
)

// Bucket is one value of a categorical field.
type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Distribution summarises one categorical field. Values are grouped
// case-insensitively; the first spelling seen is reported.
type Distribution struct {
	Field    string   `json:"field"`
	Total    int      `json:"total"`
	Missing  int      `json:"missing"`
	Distinct int      `json:"distinct"`
	Top      []Bucket `json:"top"`
}

// AgeStats summarises ages. Zero when there are no profiles.
type AgeStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
}

// Report is the output of Stats.
type Report struct {
	Profiles      int            `json:"profiles"`
	Indexed       int            `json:"indexed"`
	Age           AgeStats       `json:"age"`
	Distributions []Distribution `json:"distributions"`
}

// Inspection is the output of Inspect. Vectors is -1 when no index is attached.
type Inspection struct {
	Profiles int64             `json:"profiles"`
	Vectors  int64             `json:"vectors"`
	Pending  int               `json:"pending"`
	Sample   []profile.Profile `json:"-"`
}

type field struct {
	name string
	get  func(p *profile.Profile) string
}

var fields = []field{
	{"gender", func(p *profile.Profile) string { return string(p.Gender()) }},
	{"marital_status", func(p *profile.Profile) string { return string(p.MaritalStatus()) }},
	{"caste", (*profile.Profile).Caste},
	{"sect", (*profile.Profile).Sect},
	{"state", (*profile.Profile).State},
}

// Service computes population reports.
type Service struct {
	profiles ProfilePager
	vectors  VectorCounter
	pageSize int
	logger   *zap.Logger
}

// New creates a Service. vectors may be nil.
func New(profiles ProfilePager, vectors VectorCounter, pageSize int, logger *zap.Logger) *Service {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{profiles: profiles, vectors: vectors, pageSize: pageSize, logger: logger}
}

// walk calls fn for every stored profile in id order.
func (s *Service) walk(ctx context.Context, fn func(p *profile.Profile)) error {
	after := ""
	for {
		page, err := s.profiles.Page(ctx, after, s.pageSize)
		if err != nil {
			return domain.Unavailable("read profiles", err)
		}
		if len(page) == 0 {
			return nil
		}
		for i := range page {
			fn(&page[i])
		}
		after = page[len(page)-1].ID()
		s.logger.Debug("stats page", zap.String("after", after))
	}
}

type counter struct {
	counts  map[string]int
	label   map[string]string
	missing int
}

// Stats computes distributions of the categorical fields (top N buckets each)
// and age statistics.
func (s *Service) Stats(ctx context.Context, topN int) (Report, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	counters := make([]counter, len(fields))
	for i := range counters {
		counters[i] = counter{counts: map[string]int{}, label: map[string]string{}}
	}

	var rep Report
	var ageSum int
	err := s.walk(ctx, func(p *profile.Profile) {
		rep.Profiles++
		if p.Indexed() {
			rep.Indexed++
		}
		if rep.Profiles == 1 || p.Age() < rep.Age.Min {
			rep.Age.Min = p.Age()
		}
		rep.Age.Max = max(rep.Age.Max, p.Age())
		ageSum += p.Age()

		for i, f := range fields {
			c := &counters[i]
			raw := f.get(p)
			key := match.NormalizeTag(raw)
			if key == "" {
				c.missing++
				continue
			}
			if _, ok := c.label[key]; !ok {
				c.label[key] = raw
			}
			c.counts[key]++
		}
	})
	if err != nil {
		return Report{}, err
	}
	if rep.Profiles > 0 {
		rep.Age.Mean = float64(ageSum) / float64(rep.Profiles)
	}

	rep.Distributions = make([]Distribution, len(fields))
	for i, f := range fields {
		rep.Distributions[i] = counters[i].distribution(f.name, rep.Profiles, topN)
	}
	return rep, nil
}

func (c *counter) distribution(name string, total, topN int) Distribution {
	buckets := make([]Bucket, 0, len(c.counts))
	for k, n := range c.counts {
		buckets = append(buckets, Bucket{Value: c.label[k], Count: n})
	}
	slices.SortFunc(buckets, func(a, b Bucket) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return Distribution{
		Field:    name,
		Total:    total,
		Missing:  c.missing,
		Distinct: len(buckets),
		Top:      buckets[:min(topN, len(buckets))],
	}
}

// Inspect reports stored counts, profiles still waiting for an embedding and
// the first sampleSize profiles by id.
func (s *Service) Inspect(ctx context.Context, sampleSize int) (Inspection, error) {
	total, err := s.profiles.Count(ctx)
	if err != nil {
		return Inspection{}, domain.Unavailable("count profiles", err)
	}
	out := Inspection{Profiles: total, Vectors: -1}
	if s.vectors != nil {
		n, err := s.vectors.Count(ctx)
		if err != nil {
			return Inspection{}, domain.Unavailable("count vectors", err)
		}
		out.Vectors = n
	}

	err = s.walk(ctx, func(p *profile.Profile) {
		if !p.Indexed() {
			out.Pending++
		}
		if len(out.Sample) < sampleSize {
			out.Sample = append(out.Sample, *p)
		}
	})
	if err != nil {
		return Inspection{}, fmt.Errorf("inspect: %w", err)
	}
	return out, nil
}
