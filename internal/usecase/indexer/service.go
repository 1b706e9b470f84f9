// Package indexer is the Embedding Indexer: it walks the Profile Store in
// bounded batches and keeps the Vector Index in step with it.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/indexing"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	"github.com/kailas-cloud/matchdex/internal/metrics"
)

// Config tunes concurrency and retries.
type Config struct {
	Workers     int
	MaxAttempts int
	RetryBase   time.Duration
}

// Service runs indexer passes. A Service is not meant for concurrent Run calls.
type Service struct {
	profiles    ProfileSource
	vectors     VectorStore
	embed       Embedder
	checkpoints Checkpoints
	cfg         Config
	logger      *zap.Logger
	now         func() time.Time
}

// New creates an indexer. checkpoints may be nil (no resume support).
func New(
	profiles ProfileSource, vectors VectorStore, embed Embedder, checkpoints Checkpoints,
	cfg Config, logger *zap.Logger,
) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		profiles:    profiles,
		vectors:     vectors,
		embed:       embed,
		checkpoints: checkpoints,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// itemResult is the fate of one profile in a batch. attempted=false means the
// batch was aborted before the profile was touched.
type itemResult struct {
	attempted bool
	outcome   indexing.Outcome
	reason    string
}

// Run processes profiles after the cursor until the store is exhausted, the
// limit is reached or the embedding provider is out. Per-profile failures are
// recorded in the summary; the returned error covers aborts and store reads only.
func (s *Service) Run(ctx context.Context, opts indexing.Options) (indexing.Summary, error) {
	opts, err := opts.Normalize()
	if err != nil {
		return indexing.Summary{}, err
	}

	after, err := s.startCursor(ctx, opts.Resume)
	if err != nil {
		return indexing.Summary{}, err
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return indexing.Summary{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	sum := indexing.Summary{LastID: after, Failures: []indexing.Failure{}}
	s.logger.Info("Indexer started",
		zap.String("after", after),
		zap.Int("limit", opts.Limit),
		zap.Int("batch_size", opts.BatchSize),
		zap.Bool("force", opts.Force),
	)

	exhausted := false
	for batchNo := 1; ; batchNo++ {
		size := opts.BatchSize
		if opts.Limit > 0 {
			size = min(size, opts.Limit-sum.Processed)
			if size <= 0 {
				break
			}
		}

		page, err := s.profiles.Page(ctx, after, size)
		if err != nil {
			return sum, domain.Unavailable("read profiles", err)
		}
		if len(page) == 0 {
			exhausted = true
			break
		}

		start := time.Now()
		results, abortErr := s.runBatch(ctx, pool, page, opts.Force)
		for i, r := range results {
			if !r.attempted {
				continue
			}
			sum.Record(page[i].ID(), r.outcome, r.reason)
			metrics.IndexerItemsTotal.WithLabelValues(r.outcome.String()).Inc()
			if r.outcome == indexing.OutcomeFailed {
				s.logger.Warn("Profile not indexed",
					zap.String("profile_id", page[i].ID()),
					zap.String("reason", r.reason),
				)
			}
		}

		if abortErr == nil && ctx.Err() != nil {
			abortErr = ctx.Err()
		}
		if abortErr != nil {
			sum.Aborted = true
			sum.AbortReason = abortErr.Error()
			s.logger.Error("Indexer aborted",
				zap.Int("batch", batchNo),
				zap.String("last_id", sum.LastID),
				zap.Error(abortErr),
			)
			return sum, fmt.Errorf("batch %d: %w", batchNo, abortErr)
		}

		after = page[len(page)-1].ID()
		sum.LastID = after
		if err := s.saveCheckpoint(ctx, &sum); err != nil {
			s.logger.Warn("Checkpoint not saved", zap.Error(err))
		}

		metrics.IndexerBatchesTotal.Inc()
		metrics.IndexerBatchDuration.Observe(time.Since(start).Seconds())
		s.logger.Info("Batch indexed",
			zap.Int("batch", batchNo),
			zap.Int("size", len(page)),
			zap.Int("processed", sum.Processed),
			zap.Int("embedded", sum.Embedded),
			zap.Int("skipped", sum.Skipped),
			zap.Int("failed", sum.Failed),
			zap.String("cursor", after),
			zap.Duration("duration", time.Since(start)),
		)
	}

	if exhausted && s.checkpoints != nil {
		if err := s.checkpoints.Clear(ctx); err != nil {
			s.logger.Warn("Checkpoint not cleared", zap.Error(err))
		}
	}

	s.logger.Info("Indexer finished",
		zap.Int("processed", sum.Processed),
		zap.Int("embedded", sum.Embedded),
		zap.Int("skipped", sum.Skipped),
		zap.Int("skipped_empty", sum.SkippedEmpty),
		zap.Int("skipped_unchanged", sum.SkippedUnchanged),
		zap.Int("failed", sum.Failed),
		zap.String("last_id", sum.LastID),
	)
	return sum, nil
}

func (s *Service) startCursor(ctx context.Context, resume bool) (string, error) {
	if !resume || s.checkpoints == nil {
		return "", nil
	}
	cp, ok, err := s.checkpoints.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return "", nil
	}
	return cp.LastID, nil
}

func (s *Service) saveCheckpoint(ctx context.Context, sum *indexing.Summary) error {
	if s.checkpoints == nil {
		return nil
	}
	return s.checkpoints.Save(ctx, indexing.Checkpoint{
		LastID:    sum.LastID,
		Processed: sum.Processed,
		UpdatedAt: s.now().UTC(),
	})
}

// runBatch classifies the page, embeds what needs it in one call when possible
// and writes records through the worker pool.
func (s *Service) runBatch(
	ctx context.Context, pool *ants.Pool, page []profile.Profile, force bool,
) ([]itemResult, error) {
	results := make([]itemResult, len(page))
	pending := make([]int, 0, len(page))
	texts := make([]string, 0, len(page))

	for i := range page {
		p := &page[i]
		text := p.EmbeddingText()
		if text == "" {
			results[i] = itemResult{attempted: true, outcome: indexing.OutcomeSkippedEmpty}
			continue
		}
		if !force {
			current, err := s.isCurrent(ctx, p, text)
			if err != nil {
				results[i] = itemResult{attempted: true, outcome: indexing.OutcomeFailed, reason: err.Error()}
				continue
			}
			if current {
				results[i] = itemResult{attempted: true, outcome: indexing.OutcomeSkippedUnchanged}
				continue
			}
		}
		pending = append(pending, i)
		texts = append(texts, text)
	}
	if len(pending) == 0 {
		return results, nil
	}

	vecs, err := s.embedBatch(ctx, texts)
	if err != nil {
		if isAbort(err) {
			return results, err
		}
		s.logger.Debug("Batch embed failed, embedding one by one", zap.Error(err))
		vecs = nil
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		abortErr error
	)
	for n, i := range pending {
		var vec []float32
		if vecs != nil {
			vec = vecs[n]
		}
		p, text := &page[i], texts[n]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if workCtx.Err() != nil {
				return
			}
			err := s.indexOne(workCtx, p, text, vec)
			switch {
			case err == nil:
				results[i] = itemResult{attempted: true, outcome: indexing.OutcomeEmbedded}
			case workCtx.Err() != nil && domain.IsTimeout(err):
				// cut short by an abort elsewhere in the batch
			default:
				if isAbort(err) {
					once.Do(func() {
						abortErr = err
						cancel()
					})
				}
				results[i] = itemResult{attempted: true, outcome: indexing.OutcomeFailed, reason: err.Error()}
			}
		})
		if submitErr != nil {
			wg.Done()
			results[i] = itemResult{attempted: true, outcome: indexing.OutcomeFailed, reason: submitErr.Error()}
		}
	}
	wg.Wait()

	return results, abortErr
}

// isCurrent reports whether the stored record was built from the same text.
// A current record on an unflagged profile gets the flag repaired.
func (s *Service) isCurrent(ctx context.Context, p *profile.Profile, text string) (bool, error) {
	hash, err := s.vectors.GetTextHash(ctx, p.ID())
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read text hash: %w", err)
	}
	if hash != profile.TextHash(text) {
		return false, nil
	}
	if !p.Indexed() {
		if err := s.profiles.SetIndexed(ctx, p.ID(), true); err != nil {
			return false, fmt.Errorf("mark indexed: %w", err)
		}
	}
	return true, nil
}

func (s *Service) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	err := s.withRetry(ctx, func(ctx context.Context) error {
		res, err := s.embed.BatchEmbed(ctx, texts)
		if err != nil {
			return err
		}
		if len(res.Embeddings) != len(texts) {
			return fmt.Errorf("batch embed returned %d vectors for %d texts: %w",
				len(res.Embeddings), len(texts), domain.ErrEmbeddingProviderError)
		}
		vecs = res.Embeddings
		return nil
	})
	return vecs, err
}

// indexOne embeds (unless vec is given), upserts and flags one profile.
func (s *Service) indexOne(ctx context.Context, p *profile.Profile, text string, vec []float32) error {
	if vec == nil {
		err := s.withRetry(ctx, func(ctx context.Context) error {
			res, err := s.embed.Embed(ctx, text)
			if err != nil {
				return err
			}
			vec = res.Embedding
			return nil
		})
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
	}

	rec := &profile.Embedding{ProfileID: p.ID(), Vector: vec, TextHash: profile.TextHash(text), Profile: p}
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.vectors.Upsert(ctx, rec)
	}); err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}

	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.profiles.SetIndexed(ctx, p.ID(), true)
	}); err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}
	return nil
}

// withRetry runs fn up to MaxAttempts times with Fibonacci backoff.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(uint64(s.cfg.MaxAttempts-1), retry.NewFibonacci(s.cfg.RetryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// retryable excludes errors a second attempt cannot fix.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrEmbeddingQuotaExceeded) &&
		!errors.Is(err, domain.ErrInvalidRequest) &&
		!errors.Is(err, domain.ErrVectorDimMismatch) &&
		!errors.Is(err, context.Canceled)
}

// isAbort reports provider-wide failures that doom the rest of the run.
func isAbort(err error) bool {
	return errors.Is(err, domain.ErrEmbeddingQuotaExceeded) ||
		errors.Is(err, domain.ErrRateLimited) ||
		errors.Is(err, domain.ErrServiceUnavailable)
}
