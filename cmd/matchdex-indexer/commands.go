package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/app"
	"github.com/kailas-cloud/matchdex/internal/config"
	"github.com/kailas-cloud/matchdex/internal/domain/indexing"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	logpkg "github.com/kailas-cloud/matchdex/internal/logger"
	"github.com/kailas-cloud/matchdex/internal/metrics"
	importeruc "github.com/kailas-cloud/matchdex/internal/usecase/importer"
	indexeruc "github.com/kailas-cloud/matchdex/internal/usecase/indexer"
	statsuc "github.com/kailas-cloud/matchdex/internal/usecase/stats"
)

// Exit codes of the index command. The summary is printed in every case.
const (
	exitAborted = 2 // the run stopped early
	exitPartial = 3 // the run finished but some profiles failed to index
)

type commandFunc func(ctx context.Context, c *cli.Context, deps *app.App) error

// withDeps loads config, builds the logger and the dependency graph, and
// cancels the command context on SIGINT/SIGTERM.
func withDeps(fn commandFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		env := c.String("env")
		cfg, err := config.Load(env)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		level := cfg.Logging.Level
		if l := c.String("log-level"); l != "" {
			level = l
		}
		logger, err := logpkg.NewLogger(env, level)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		deps, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer deps.Close()

		return fn(ctx, c, deps)
	}
}

func indexCommand(ctx context.Context, c *cli.Context, deps *app.App) error {
	cfg := deps.Config
	metrics.RegisterIndexerMetrics()

	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		batchSize = cfg.Indexer.BatchSize
	}

	force := c.Bool("force")
	if c.Bool("recreate-index") {
		if err := deps.Vectors.RecreateIndex(ctx); err != nil {
			return err
		}
		deps.Logger.Info("Vector index recreated", zap.String("index", deps.Vectors.IndexName()))
		force = true
	}

	svc := indexeruc.New(deps.Profiles, deps.Vectors, deps.DocEmbedder, deps.Checkpoints, indexeruc.Config{
		Workers:     cfg.Indexer.Workers,
		MaxAttempts: cfg.Indexer.MaxAttempts,
		RetryBase:   time.Duration(cfg.Indexer.RetryBaseMS) * time.Millisecond,
	}, deps.Logger)

	start := time.Now()
	sum, err := svc.Run(ctx, indexing.Options{
		Limit:     c.Int("limit"),
		BatchSize: batchSize,
		Resume:    c.Bool("resume"),
		Force:     force,
	})
	if perr := printJSON(c.App.Writer, sum); perr != nil {
		return perr
	}
	deps.Logger.Info("Indexer finished",
		zap.Int("processed", sum.Processed),
		zap.Int("embedded", sum.Embedded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return indexExit(&sum, err)
}

// indexExit maps a run outcome to the process exit status.
func indexExit(sum *indexing.Summary, runErr error) error {
	switch {
	case runErr != nil:
		return cli.Exit(fmt.Sprintf("indexing stopped: %v", runErr), exitAborted)
	case sum.Aborted:
		return cli.Exit("indexing aborted: "+sum.AbortReason, exitAborted)
	}
	if err := sum.Err(); err != nil {
		return cli.Exit(fmt.Sprintf("indexing incomplete: %v", err), exitPartial)
	}
	return nil
}

func importCommand(ctx context.Context, c *cli.Context, deps *app.App) error {
	path := filepath.Clean(c.String("file"))
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	svc := importeruc.New(deps.Profiles, c.Int("batch-size"), deps.Logger)
	sum, err := svc.Import(ctx, f)
	if perr := printJSON(c.App.Writer, sum); perr != nil {
		return perr
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("import stopped: %v", err), exitAborted)
	}
	return nil
}

// inspectOutput adds a readable sample to the inspection counts.
type inspectOutput struct {
	statsuc.Inspection
	Sample []sampleProfile `json:"sample"`
}

type sampleProfile struct {
	UserID            string `json:"user_id"`
	Age               int    `json:"age"`
	Gender            string `json:"gender"`
	MaritalStatus     string `json:"marital_status"`
	Caste             string `json:"caste,omitempty"`
	Sect              string `json:"sect,omitempty"`
	State             string `json:"state,omitempty"`
	About             string `json:"about,omitempty"`
	PartnerPreference string `json:"partner_preference,omitempty"`
	Indexed           bool   `json:"indexed"`
}

func toSample(ps []profile.Profile) []sampleProfile {
	out := make([]sampleProfile, 0, len(ps))
	for i := range ps {
		p := &ps[i]
		out = append(out, sampleProfile{
			UserID:            p.ID(),
			Age:               p.Age(),
			Gender:            string(p.Gender()),
			MaritalStatus:     string(p.MaritalStatus()),
			Caste:             p.Caste(),
			Sect:              p.Sect(),
			State:             p.State(),
			About:             p.About(),
			PartnerPreference: p.PartnerPreference(),
			Indexed:           p.Indexed(),
		})
	}
	return out
}

func inspectCommand(ctx context.Context, c *cli.Context, deps *app.App) error {
	svc := statsuc.New(deps.Profiles, deps.Vectors, deps.Config.Indexer.BatchSize, deps.Logger)
	ins, err := svc.Inspect(ctx, c.Int("sample"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, inspectOutput{Inspection: ins, Sample: toSample(ins.Sample)})
}

func statsCommand(ctx context.Context, c *cli.Context, deps *app.App) error {
	svc := statsuc.New(deps.Profiles, deps.Vectors, deps.Config.Indexer.BatchSize, deps.Logger)
	rep, err := svc.Stats(ctx, c.Int("top"))
	if err != nil {
		return err
	}
	return printJSON(c.App.Writer, rep)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
