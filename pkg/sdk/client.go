package matchdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/matchdex/internal/db"
	dbRedis "github.com/kailas-cloud/matchdex/internal/db/redis"
	"github.com/kailas-cloud/matchdex/internal/domain"
	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	domusage "github.com/kailas-cloud/matchdex/internal/domain/usage"
	profilerepo "github.com/kailas-cloud/matchdex/internal/repository/profile"
	vectorrepo "github.com/kailas-cloud/matchdex/internal/repository/vector"
	embeddinguc "github.com/kailas-cloud/matchdex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/matchdex/internal/usecase/health"
	matchuc "github.com/kailas-cloud/matchdex/internal/usecase/match"
	registrationuc "github.com/kailas-cloud/matchdex/internal/usecase/registration"
	usageuc "github.com/kailas-cloud/matchdex/internal/usecase/usage"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "matchdex:"
	defaultDimensions       = 1536
	sdkProvider             = "sdk"
)

// Внутренние интерфейсы для подмены в тестах.
type registrationUseCase interface {
	Register(ctx context.Context, id string, f profile.Fields) (registrationuc.Result, error)
	Get(ctx context.Context, id string) (profile.Profile, error)
}

type matchUseCase interface {
	Match(ctx context.Context, p dommatch.Params) (dommatch.Outcome, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type usageUseCase interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// Client is the matchdex SDK entry point. It is safe for concurrent use.
type Client struct {
	store     db.Store
	regSvc    registrationUseCase
	matchSvc  matchUseCase
	healthSvc healthUseCase
	usageSvc  usageUseCase
	obs       *observer
}

// New creates a Client, connects to Redis and ensures the vector index exists.
// The provided context is used for the readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		keyPrefix:        defaultKeyPrefix,
		vectorDimensions: defaultDimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("matchdex: database address required (use WithRedis)")
	}
	if cfg.vectorDimensions <= 0 {
		return nil, fmt.Errorf("matchdex: vector dimensions must be positive, got %d", cfg.vectorDimensions)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("matchdex: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("matchdex: database not ready: %w", err)
	}

	c, err := wireClient(ctx, store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	algo := db.VectorHNSW
	if cfg.flatIndex {
		algo = db.VectorFlat
	}
	vectors := vectorrepo.New(store, cfg.keyPrefix, vectorrepo.Config{
		Dimensions:  cfg.vectorDimensions,
		Algorithm:   algo,
		M:           cfg.hnswM,
		EFConstruct: cfg.hnswEFConstruct,
	})
	if err := vectors.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("matchdex: ensure vector index: %w", err)
	}
	profiles := profilerepo.New(store, cfg.keyPrefix)

	// Без embedder профили сохраняются filter-only, text-запросы вернут ошибку.
	var base domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		base = &embedderAdapter{inner: cfg.embedder}
	}

	// Zero limits still count tokens for Usage.
	budget := embeddinguc.NewBudgetTracker(embeddinguc.BudgetConfig{
		Provider:     sdkProvider,
		DailyLimit:   cfg.dailyTokenLimit,
		MonthlyLimit: cfg.monthlyTokenLimit,
		Action:       embeddinguc.BudgetActionReject,
	}, nil)
	embedder := domain.NewDimensionGuard(
		embeddinguc.NewInstrumentedEmbedder(base, sdkProvider, "", budget, nil),
		cfg.vectorDimensions,
	)

	return &Client{
		store:     store,
		regSvc:    registrationuc.New(profiles, vectors, embedder, nil),
		matchSvc:  matchuc.New(profiles, vectors, embedder, matchuc.DefaultConfig(), nil),
		healthSvc: healthuc.New(store, nil, profiles),
		usageSvc:  usageuc.New(budget, sdkProvider, ""),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Register validates and stores a profile, then embeds it. An embedding
// failure is not an error: the result is Deferred and the profile stays
// filter-only.
func (c *Client) Register(ctx context.Context, in ProfileInput) (res RegisterResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("profile.register", start, err, "indexed", res.Indexed) }()

	r, err := c.regSvc.Register(ctx, in.ID, in.fields())
	if err != nil {
		return RegisterResult{}, fmt.Errorf("register: %w", err)
	}
	return RegisterResult{
		Profile:  fromDomainProfile(&r.Profile),
		Indexed:  r.Indexed,
		Deferred: r.Deferred,
	}, nil
}

// Profile returns a stored profile. Unknown ids yield ErrNotFound.
func (c *Client) Profile(ctx context.Context, id string) (p Profile, err error) {
	start := time.Now()
	defer func() { c.obs.observe("profile.get", start, err) }()

	dp, err := c.regSvc.Get(ctx, id)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %s: %w", id, err)
	}
	return fromDomainProfile(&dp), nil
}

// Match runs a free-text or profile-seeded query.
func (c *Client) Match(ctx context.Context, req MatchRequest) (resp MatchResponse, err error) {
	start := time.Now()
	defer func() {
		c.obs.observe("match", start, err, "mode", resp.Mode, "results", len(resp.Results))
	}()

	params, err := req.params()
	if err != nil {
		return MatchResponse{}, err
	}
	out, err := c.matchSvc.Match(ctx, params)
	if err != nil {
		return MatchResponse{}, fmt.Errorf("match: %w", err)
	}
	return fromOutcome(&out), nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder fails every call (used when no embedder is configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"matchdex: embedder not configured (use WithEmbedder): %w", domain.ErrEmbeddingProviderError,
	)
}
