package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeUnauthorized     = "unauthorized"
	CodeNotFound         = "not_found"
	CodeAlreadyExists    = "already_exists"
	CodeRateLimited      = "rate_limited"
	CodeQuotaExceeded    = "embedding_quota_exceeded"
	CodeUnavailable      = "service_unavailable"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeInternal         = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// errorMapping binds a sentinel to a status and code. Order matters: the first
// match wins, so quota and rate limits are checked before the generic outage.
type errorMapping struct {
	sentinel error
	status   int
	code     string
}

var errorTable = []errorMapping{
	{domain.ErrInvalidRequest, http.StatusBadRequest, CodeInvalidRequest},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests, CodeQuotaExceeded},
	{domain.ErrServiceUnavailable, http.StatusServiceUnavailable, CodeUnavailable},
	{domain.ErrEmbeddingProviderError, http.StatusServiceUnavailable, CodeUnavailable},
}

// mapError resolves err to a status and a client-safe body. Internal details
// never leak: the message is the sentinel text or the validation reason.
func mapError(err error) (int, ErrorResponse) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ErrorResponse{
			Code:    CodeInvalidRequest,
			Message: ve.Field + " " + ve.Reason,
			Field:   ve.Field,
		}
	}
	for _, m := range errorTable {
		if errors.Is(err, m.sentinel) {
			return m.status, ErrorResponse{Code: m.code, Message: m.sentinel.Error()}
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Message: "internal error"}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(err)
	log := s.requestLogger(r)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Warn("domain error", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
