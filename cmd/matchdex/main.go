package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/app"
	"github.com/kailas-cloud/matchdex/internal/config"
	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	logpkg "github.com/kailas-cloud/matchdex/internal/logger"
	"github.com/kailas-cloud/matchdex/internal/metrics"
	chiTransport "github.com/kailas-cloud/matchdex/internal/transport/chi"
	healthuc "github.com/kailas-cloud/matchdex/internal/usecase/health"
	matchuc "github.com/kailas-cloud/matchdex/internal/usecase/match"
	registrationuc "github.com/kailas-cloud/matchdex/internal/usecase/registration"
	usageuc "github.com/kailas-cloud/matchdex/internal/usecase/usage"
	"github.com/kailas-cloud/matchdex/internal/version"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting matchdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("profiles_driver", cfg.Profiles.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	ctx := context.Background()
	deps, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialise dependencies", zap.Error(err))
	}
	defer deps.Close()

	metrics.RegisterMatchMetrics()

	m := cfg.Matching
	matchSvc := matchuc.New(deps.Profiles, deps.Vectors, deps.QueryEmbedder, matchuc.Config{
		Limits: dommatch.Limits{
			DefaultTopK:         m.DefaultTopK,
			MaxTopK:             m.MaxTopK,
			DefaultAgeTolerance: m.DefaultAgeTolerance,
			MaxAgeTolerance:     m.MaxAgeTolerance,
		},
		OversampleFactor: m.OversampleFactor,
		MaxRetries:       m.MaxOversampleRetries,
		MaxCandidates:    m.MaxCandidates,
		Timeout:          time.Duration(m.RequestTimeoutMS) * time.Millisecond,
	}, logger)
	regSvc := registrationuc.New(deps.Profiles, deps.Vectors, deps.DocEmbedder, logger)

	// Nil interface, not a typed nil pointer, when no budget is configured.
	var budgetReader usageuc.BudgetReader
	if deps.Budget != nil {
		budgetReader = deps.Budget
	}
	usageSvc := usageuc.New(budgetReader, cfg.Embedding.Provider, cfg.Embedding.Model)
	healthSvc := healthuc.New(deps, deps, deps.Profiles)

	server := chiTransport.NewServer(matchSvc, regSvc, usageSvc, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
