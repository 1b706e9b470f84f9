// Package app wires the storage, embedding and repository stack shared by the
// API server and the indexer CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/config"
	"github.com/kailas-cloud/matchdex/internal/db"
	dbRedis "github.com/kailas-cloud/matchdex/internal/db/redis"
	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	"github.com/kailas-cloud/matchdex/internal/metrics"
	budgetrepo "github.com/kailas-cloud/matchdex/internal/repository/budget"
	"github.com/kailas-cloud/matchdex/internal/repository/checkpoint"
	"github.com/kailas-cloud/matchdex/internal/repository/embcache"
	profilerepo "github.com/kailas-cloud/matchdex/internal/repository/profile"
	vectorrepo "github.com/kailas-cloud/matchdex/internal/repository/vector"
	langchainEmb "github.com/kailas-cloud/matchdex/internal/transport/langchain"
	openaiEmb "github.com/kailas-cloud/matchdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/matchdex/internal/usecase/embedding"
)

// Budget counters outlive their period so a late reader still sees the total.
const (
	budgetDailyTTL   = 48 * time.Hour
	budgetMonthlyTTL = 62 * 24 * time.Hour
)

// ProfileStore is the Profile Store surface both backends implement.
type ProfileStore interface {
	Create(ctx context.Context, p *profile.Profile) error
	Save(ctx context.Context, p *profile.Profile) error
	CreateMany(ctx context.Context, ps []profile.Profile) error
	Get(ctx context.Context, id string) (profile.Profile, error)
	GetMany(ctx context.Context, ids []string) ([]profile.Profile, error)
	SetIndexed(ctx context.Context, id string, indexed bool) error
	Page(ctx context.Context, after string, limit int) ([]profile.Profile, error)
	Count(ctx context.Context) (int64, error)
}

// Embedder vectorizes single texts and batches.
type Embedder interface {
	domain.Embedder
	domain.BatchEmbedder
}

// App holds the wired dependencies. Close releases every connection it opened.
type App struct {
	Config config.Config
	Logger *zap.Logger

	Store       *dbRedis.Store
	Profiles    ProfileStore
	Vectors     *vectorrepo.Repo
	Checkpoints *checkpoint.Store

	// Budget is nil when no token limit is configured.
	Budget *embeddinguc.BudgetTracker

	DocEmbedder   Embedder
	QueryEmbedder Embedder

	provider domain.Embedder
	pingers  []db.Pinger
	closers  []func()
}

// New connects to Redis (and Postgres when configured), ensures the vector
// index and profile schema exist, and builds the embedder chains.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}
	a.Store = store
	a.pingers = append(a.pingers, store)
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		a.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

	if err := a.openProfiles(ctx); err != nil {
		a.Close()
		return nil, err
	}

	prefix := cfg.Storage.KeyPrefix
	a.Vectors = vectorrepo.New(store, prefix, vectorrepo.Config{
		IndexName:   cfg.Index.Name,
		Dimensions:  cfg.Embedding.Dimensions,
		Algorithm:   db.ParseVectorAlgorithm(cfg.Index.Algorithm),
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
		EFRuntime:   cfg.Index.HNSWEFRuntime,
	})
	if err := a.Vectors.EnsureIndex(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("ensure vector index: %w", err)
	}
	a.Checkpoints = checkpoint.New(store, cfg.Indexer.CheckpointKey)

	if err := a.buildEmbedders(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) openProfiles(ctx context.Context) error {
	cfg := a.Config
	if cfg.Profiles.Driver != config.ProfilesPostgres {
		a.Profiles = profilerepo.New(a.Store, cfg.Storage.KeyPrefix)
		return nil
	}

	pg, err := profilerepo.OpenPostgres(ctx, cfg.Profiles.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres profile store: %w", err)
	}
	a.closers = append(a.closers, func() { _ = pg.Close() })
	if err := pg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure profile schema: %w", err)
	}
	a.Profiles = pg
	a.pingers = append(a.pingers, pg)
	a.Logger.Info("Using postgres profile store")
	return nil
}

// buildEmbedders assembles the decorator chain:
// provider -> cache -> instrumented (budget + metrics) -> instruction -> dimension guard.
func (a *App) buildEmbedders(ctx context.Context) error {
	cfg := a.Config
	e := cfg.Embedding

	metrics.RegisterEmbeddingMetrics()

	base, err := newProvider(e, a.Logger)
	if err != nil {
		return err
	}
	a.provider = base

	if b := e.Budget; b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0 {
		action := embeddinguc.BudgetActionWarn
		if b.Action == string(embeddinguc.BudgetActionReject) {
			action = embeddinguc.BudgetActionReject
		}
		a.Budget = embeddinguc.NewBudgetTracker(embeddinguc.BudgetConfig{
			Provider:     e.Provider,
			DailyLimit:   b.DailyTokenLimit,
			MonthlyLimit: b.MonthlyTokenLimit,
			Action:       action,
		}, a.Logger)
		a.Budget.WithStore(ctx, budgetrepo.New(a.Store, cfg.Storage.KeyPrefix, budgetDailyTTL, budgetMonthlyTTL))
	}

	// (*BudgetTracker)(nil) inside the interface would not compare equal to nil.
	var budget embeddinguc.BudgetChecker
	if a.Budget != nil {
		budget = a.Budget
	}

	var inner domain.Embedder = base
	if e.CacheTTLSec >= 0 {
		inner = embcache.New(base, a.Store, embcache.Options{
			KeyPrefix: cfg.Storage.KeyPrefix,
			Model:     e.Model,
			TTL:       time.Duration(e.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, a.Logger)
	}
	instrumented := embeddinguc.NewInstrumentedEmbedder(inner, e.Provider, e.Model, budget, a.Logger).
		WithMaxBatchSize(e.MaxBatchSize)

	a.DocEmbedder = decorate(instrumented, e.DocumentInstruction, e.Dimensions)
	a.QueryEmbedder = decorate(instrumented, e.QueryInstruction, e.Dimensions)

	a.Logger.Info("Embedders created",
		zap.String("provider", e.Provider),
		zap.String("model", e.Model),
		zap.Int("dimensions", e.Dimensions),
		zap.Bool("cache", e.CacheTTLSec >= 0),
		zap.Bool("budget", a.Budget != nil),
	)
	return nil
}

func newProvider(e config.EmbeddingConfig, logger *zap.Logger) (domain.Embedder, error) {
	switch e.Provider {
	case config.ProviderLangchain:
		emb, err := langchainEmb.NewEmbedder(&langchainEmb.Config{
			BaseURL:  e.BaseURL,
			Token:    e.APIKey,
			Model:    e.Model,
			Provider: e.Provider,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create langchain embedder: %w", err)
		}
		return emb, nil
	default:
		return openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     e.APIKey,
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			Provider:   e.Provider,
			Timeout:    time.Duration(e.TimeoutSec) * time.Second,
			Logger:     logger,
		}), nil
	}
}

// decorate adds the instruction prefix (outermost after the guard, so cache
// keys include it) and the dimension check.
func decorate(inner Embedder, instruction string, dim int) Embedder {
	return asBatch(domain.NewDimensionGuard(domain.NewInstructionEmbedder(inner, instruction), dim))
}

type batchFallback struct {
	domain.Embedder
}

func (b batchFallback) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, b.Embedder, texts)
}

func asBatch(e domain.Embedder) Embedder {
	if be, ok := e.(Embedder); ok {
		return be
	}
	return batchFallback{e}
}

// Ping checks every backing store.
func (a *App) Ping(ctx context.Context) error {
	var errs []error
	for _, p := range a.pingers {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HealthCheck probes the embedding provider when it supports it.
func (a *App) HealthCheck(ctx context.Context) error {
	if hc, ok := a.provider.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
