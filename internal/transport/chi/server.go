// Package chi is the HTTP surface: registration, match, usage, health and
// metrics routes on a chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain"
	dommatch "github.com/kailas-cloud/matchdex/internal/domain/match"
	"github.com/kailas-cloud/matchdex/internal/domain/profile"
	domusage "github.com/kailas-cloud/matchdex/internal/domain/usage"
	"github.com/kailas-cloud/matchdex/internal/metrics"
	healthuc "github.com/kailas-cloud/matchdex/internal/usecase/health"
	registrationuc "github.com/kailas-cloud/matchdex/internal/usecase/registration"
)

// maxBodyBytes caps request bodies; profiles are two short texts plus tags.
const maxBodyBytes = 64 << 10

// Matcher answers match queries.
type Matcher interface {
	Match(ctx context.Context, p dommatch.Params) (dommatch.Outcome, error)
}

// Registrar writes and reads profiles.
type Registrar interface {
	Register(ctx context.Context, id string, f profile.Fields) (registrationuc.Result, error)
	Get(ctx context.Context, id string) (profile.Profile, error)
}

// UsageReporter builds token usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	match   Matcher
	users   Registrar
	usage   UsageReporter
	health  HealthChecker
	logger  *zap.Logger
	metrics http.Handler
}

// NewServer creates an HTTP API server.
func NewServer(
	match Matcher,
	users Registrar,
	usage UsageReporter,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		match:   match,
		users:   users,
		usage:   usage,
		health:  health,
		logger:  logger,
		metrics: promhttp.Handler(),
	}
}

const metricsPath = "/metrics"

// Router mounts all routes with the middleware chain. Empty apiKeys disables auth.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware(metricsPath))

	r.Get("/health", s.HealthCheck)
	r.Get(metricsPath, s.Metrics)
	r.Post("/users", s.RegisterUser)
	r.Get("/users/{id}", s.GetUser)
	r.Get("/match", s.Match)
	r.Get("/usage", s.GetUsage)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})
	return r
}

// RegisterUser handles POST /users.
// 201 when the profile is searchable (or has no text to embed), 202 when it
// was stored but embedding is deferred to the indexer.
func (s *Server) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.users.Register(ctx, req.UserID, req.fields())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	id := res.Profile.ID()
	annotate(r.Context(),
		zap.String("user_id", id),
		zap.Bool("indexed", res.Indexed),
		zap.Bool("deferred", res.Deferred),
		zap.Int("embedding_tokens", usage.TotalTokens()),
	)
	setEmbeddingHeaders(w, usage)
	w.Header().Set("Location", "/users/"+id)

	status := http.StatusCreated
	if res.Deferred {
		status = http.StatusAccepted
	}
	writeJSON(w, status, RegisterResponse{UserID: id, Indexed: res.Indexed})
}

// GetUser handles GET /users/{id}.
func (s *Server) GetUser(w http.ResponseWriter, r *http.Request) {
	p, err := s.users.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profileToResponse(&p))
}

// Match handles GET /match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	params, err := bindMatchParams(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	mp, err := params.toDomain()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	out, err := s.match.Match(ctx, mp)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	annotate(r.Context(),
		zap.String("mode", string(out.Mode)),
		zap.Int("candidates", out.Candidates),
		zap.Int("results", len(out.Results)),
		zap.Int("embedding_tokens", usage.TotalTokens()),
	)
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, outcomeToResponse(&out))
}

// GetUsage handles GET /usage?period=day|month (default month).
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period := domusage.PeriodMonth
	switch v := r.URL.Query().Get("period"); v {
	case "", string(domusage.PeriodMonth):
	case string(domusage.PeriodDay):
		period = domusage.PeriodDay
	default:
		s.handleDomainError(w, r, domain.Invalid("period", fmt.Sprintf("must be day or month, got %q", v)))
		return
	}

	report := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, usageToResponse(&report))
}

// HealthCheck handles GET /health. Only a database outage yields 503; a
// degraded embedding provider still serves filter-only traffic.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthToResponse(&report))
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ServeHTTP(w, r)
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}
