// Package match is the Query Engine: it turns a match request into ranked candidates.
package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/matchdex/internal/domain"
	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	"github.com/kailas-cloud/matchdex/internal/metrics"
)

// Config tunes oversampling and request bounds.
type Config struct {
	Limits           dommatch.Limits
	OversampleFactor int
	MaxRetries       int
	MaxCandidates    int
	Timeout          time.Duration
}

// DefaultConfig returns the stock engine settings.
func DefaultConfig() Config {
	return Config{
		Limits:           dommatch.DefaultLimits(),
		OversampleFactor: 4,
		MaxRetries:       3,
		MaxCandidates:    1000,
	}
}

// Service answers free-text and profile-seeded match queries.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	profiles ProfileReader
	vectors  VectorIndex
	embed    Embedder
	cfg      Config
	logger   *zap.Logger
}

// New creates a Query Engine. Zero config fields fall back to DefaultConfig.
func New(profiles ProfileReader, vectors VectorIndex, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	def := DefaultConfig()
	if cfg.Limits == (dommatch.Limits{}) {
		cfg.Limits = def.Limits
	}
	if cfg.OversampleFactor <= 0 {
		cfg.OversampleFactor = def.OversampleFactor
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{profiles: profiles, vectors: vectors, embed: embed, cfg: cfg, logger: logger}
}

// Limits returns the request bounds used for validation.
func (s *Service) Limits() dommatch.Limits { return s.cfg.Limits }

// Match validates params and runs the query. Finding nothing is not an error:
// the outcome then has no results and zero candidates.
func (s *Service) Match(ctx context.Context, p dommatch.Params) (dommatch.Outcome, error) {
	start := time.Now()

	q, err := dommatch.NewQuery(p, s.cfg.Limits)
	if err != nil {
		metrics.MatchRequestsTotal.WithLabelValues("invalid", "error").Inc()
		return dommatch.Outcome{}, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var out dommatch.Outcome
	switch q.Mode() {
	case dommatch.ModeText:
		out, err = s.matchText(ctx, &q)
	case dommatch.ModeProfile:
		out, err = s.matchProfile(ctx, &q)
	default:
		err = fmt.Errorf("unsupported match mode: %s", q.Mode())
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.MatchRequestsTotal.WithLabelValues(string(q.Mode()), status).Inc()
	if err != nil {
		return dommatch.Outcome{}, err
	}

	out.Mode = q.Mode()
	out.Took = time.Since(start)
	metrics.MatchResultsReturned.Observe(float64(len(out.Results)))
	return out, nil
}

func (s *Service) matchText(ctx context.Context, q *dommatch.Query) (dommatch.Outcome, error) {
	out := dommatch.Outcome{QueryText: q.Text(), Filters: q.Filters(), Results: []dommatch.Result{}}
	if q.TopK() == 0 {
		return out, nil
	}

	emb, err := s.embed.Embed(ctx, q.Text())
	if err != nil {
		return dommatch.Outcome{}, domain.Unavailable("vectorize query", err)
	}

	out.Results, out.Candidates, err = s.search(ctx, emb.Embedding, &out.Filters, q.TopK(), "")
	if err != nil {
		return dommatch.Outcome{}, err
	}
	return out, nil
}

func (s *Service) matchProfile(ctx context.Context, q *dommatch.Query) (dommatch.Outcome, error) {
	var (
		seed   profile.Profile
		stored []float32
	)

	// seed fields and its stored vector are independent reads
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.profiles.Get(gctx, q.SeedID())
		if err != nil {
			return domain.Unavailable("get seed profile", err)
		}
		seed = p
		return nil
	})
	g.Go(func() error {
		v, err := s.vectors.GetVector(gctx, q.SeedID())
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil
		case err != nil:
			return domain.Unavailable("get seed vector", err)
		}
		stored = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return dommatch.Outcome{}, err
	}

	out := dommatch.Outcome{Filters: q.SeededFilters(&seed), Results: []dommatch.Result{}}
	if q.TopK() == 0 {
		return out, nil
	}

	// A vector left from an earlier write does not describe an unindexed seed.
	vec := stored
	if !seed.Indexed() {
		vec = nil
	}
	if len(vec) == 0 {
		out.QueryText = dommatch.SeedQueryText(&seed)
		emb, err := s.embed.Embed(ctx, out.QueryText)
		if err != nil {
			return dommatch.Outcome{}, domain.Unavailable("vectorize seed text", err)
		}
		vec = emb.Embedding
	}

	var err error
	out.Results, out.Candidates, err = s.search(ctx, vec, &out.Filters, q.TopK(), seed.ID())
	if err != nil {
		return dommatch.Outcome{}, err
	}
	return out, nil
}

// search oversamples the index, post-filters hydrated profiles and widens the
// pool until topK candidates qualify, the index runs dry or retries are spent.
func (s *Service) search(
	ctx context.Context, vec []float32, f *dommatch.Filters, topK int, exclude string,
) ([]dommatch.Result, int, error) {
	factor := s.cfg.OversampleFactor
	var (
		eligible []dommatch.Result
		rounds   int
	)

	for {
		rounds++
		k := min(topK*factor, s.cfg.MaxCandidates)
		if exclude != "" && k < s.cfg.MaxCandidates {
			k++ // room for the seed itself
		}

		hits, err := s.vectors.Search(ctx, vec, k, f)
		if err != nil {
			return nil, 0, domain.Unavailable("vector search", err)
		}

		eligible, err = s.hydrate(ctx, hits, f, exclude)
		if err != nil {
			return nil, 0, err
		}

		exhausted := len(hits) < k
		s.logger.Debug("Match round",
			zap.Int("round", rounds),
			zap.Int("k", k),
			zap.Int("hits", len(hits)),
			zap.Int("eligible", len(eligible)),
		)
		if len(eligible) >= topK || exhausted || rounds > s.cfg.MaxRetries || k >= s.cfg.MaxCandidates {
			break
		}
		factor *= 2
	}

	metrics.MatchOversampleRounds.Observe(float64(rounds))
	metrics.MatchCandidates.Observe(float64(len(eligible)))
	return dommatch.Rank(eligible, topK), len(eligible), nil
}

// hydrate loads hit profiles and keeps those passing the authoritative post-filter.
// Hits without a stored profile are dropped, and so are unindexed profiles:
// their vector record may still hold text from a previous write.
func (s *Service) hydrate(ctx context.Context, hits []dommatch.Hit, f *dommatch.Filters, exclude string) ([]dommatch.Result, error) {
	ids := make([]string, 0, len(hits))
	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if h.ProfileID == exclude {
			continue
		}
		if prev, dup := scores[h.ProfileID]; dup {
			scores[h.ProfileID] = max(prev, h.Score)
			continue
		}
		scores[h.ProfileID] = h.Score
		ids = append(ids, h.ProfileID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, domain.Unavailable("hydrate candidates", err)
	}

	out := make([]dommatch.Result, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		if p.ID() == exclude || !p.Indexed() || !f.Matches(p) {
			continue
		}
		out = append(out, dommatch.Result{Profile: *p, Score: scores[p.ID()]})
	}
	return out, nil
}
