// Package langchain adapts langchaingo embedders to the domain embedding contract.
// Used for local OpenAI-compatible servers (Ollama, vLLM, LM Studio) that need no API key.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/metrics"
)

// Config holds settings for the langchain-backed provider.
type Config struct {
	BaseURL  string
	Token    string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// Embedder implements domain.Embedder and domain.BatchEmbedder on top of langchaingo.
// Token usage is not reported by langchaingo, so results carry zero counts.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	provider string
	logger   *zap.Logger
}

// NewEmbedder creates an embedder against an OpenAI-compatible endpoint.
func NewEmbedder(cfg *Config) (*Embedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("langchain embedder: model is required")
	}
	token := cfg.Token
	if token == "" {
		// local servers ignore the token but the client refuses an empty one
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}

	inner, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create langchain embedder: %w", err)
	}
	return newWithEmbedder(inner, cfg), nil
}

func newWithEmbedder(inner embeddings.Embedder, cfg *Config) *Embedder {
	provider := cfg.Provider
	if provider == "" {
		provider = "langchain"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{
		embedder: inner,
		model:    cfg.Model,
		provider: provider,
		logger:   logger,
	}
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

// BatchEmbed implements domain.BatchEmbedder.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	duration := time.Since(start)
	if err != nil {
		classified, kind := classifyError(err)
		metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, kind).Inc()
		e.logger.Debug("Embedding call failed",
			zap.String("provider", e.provider),
			zap.String("error_type", kind),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.BatchEmbeddingResult{}, classified
	}

	if len(vecs) != len(texts) {
		metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "count_mismatch").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"embedder returned %d vectors for %d inputs: %w",
			len(vecs), len(texts), domain.ErrEmbeddingProviderError)
	}
	for i, v := range vecs {
		if len(v) == 0 {
			metrics.EmbeddingErrorsTotal.WithLabelValues(e.provider, e.model, "empty_response").Inc()
			return domain.BatchEmbeddingResult{}, fmt.Errorf("empty embedding at %d: %w", i, domain.ErrEmbeddingProviderError)
		}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(e.provider, e.model, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(e.provider, e.model).Observe(duration.Seconds())
	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

// HealthCheck embeds a short probe string.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.embedder.EmbedQuery(ctx, "ping"); err != nil {
		c, _ := classifyError(err)
		return fmt.Errorf("probe embed: %w", c)
	}
	return nil
}

var statusRe = regexp.MustCompile(`status code: (\d{3})`)

// classifyError maps langchaingo errors onto the domain taxonomy.
// The client only exposes the HTTP status inside the error text.
func classifyError(err error) (error, string) {
	if domain.IsTimeout(err) {
		return fmt.Errorf("embedding request: %w: %w", domain.ErrServiceUnavailable, err), "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("embedding request: %w: %w", domain.ErrServiceUnavailable, err), "unavailable"
	}

	msg := err.Error()
	status := 0
	if m := statusRe.FindStringSubmatch(msg); m != nil {
		status, _ = strconv.Atoi(m[1])
	}

	switch {
	case strings.Contains(msg, "insufficient_quota"):
		return fmt.Errorf("embedding request: %v: %w", err, domain.ErrEmbeddingQuotaExceeded), "quota"
	case status == 429:
		return fmt.Errorf("embedding request: %v: %w", err, domain.ErrRateLimited), "rate_limited"
	case status >= 500:
		return fmt.Errorf("embedding request: %v: %w", err, domain.ErrServiceUnavailable), "unavailable"
	case strings.Contains(msg, "connection refused"):
		return fmt.Errorf("embedding request: %v: %w", err, domain.ErrServiceUnavailable), "unavailable"
	default:
		return fmt.Errorf("embedding request: %v: %w", err, domain.ErrEmbeddingProviderError), "api_error"
	}
}
