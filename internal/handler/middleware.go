package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"pdf-watermark-api/internal/domain"
	apperrors "pdf-watermark-api/pkg/errors"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-ID"

// AuthMiddleware checks the static API key sent as a bearer token
type AuthMiddleware struct {
	apiKey []byte
	logger domain.Logger
	// onReject is called for every rejected request, used for metrics.
	onReject func()
}

// NewAuthMiddleware creates a new API key middleware
func NewAuthMiddleware(apiKey string, logger domain.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		apiKey:   []byte(apiKey),
		logger:   logger,
		onReject: func() {},
	}
}

// OnReject registers a callback invoked whenever a request is rejected.
func (m *AuthMiddleware) OnReject(fn func()) *AuthMiddleware {
	if fn != nil {
		m.onReject = fn
	}
	return m
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.authenticate(r); err != nil {
			if errors.Is(err, domain.ErrInvalidAPIKey) {
				m.logger.Warn("API key rejected", "path", r.URL.Path, "request_id", GetRequestIDFromContext(r))
			}
			m.onReject()
			writeAppError(w, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authenticate checks the bearer token against the configured key.
func (m *AuthMiddleware) authenticate(r *http.Request) error {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorizedError("Authorization header required", nil)
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return apperrors.NewUnauthorizedError("Invalid authorization header format", nil)
	}

	token := parts[1]
	if token == "" {
		return apperrors.NewUnauthorizedError("Token required", nil)
	}

	// An unset key never matches, even an empty token.
	if len(m.apiKey) == 0 || subtle.ConstantTimeCompare([]byte(token), m.apiKey) != 1 {
		return apperrors.NewUnauthorizedError("Invalid API key", domain.ErrInvalidAPIKey)
	}
	return nil
}

// RequestIDMiddleware reuses an incoming X-Request-ID or generates one,
// stores it in the request context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// AccessLogMiddleware logs one line per request once the handler returns.
func AccessLogMiddleware(logger domain.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", GetRequestIDFromContext(r),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("Request completed with server error", fields...)
				return
			}
			logger.Info("Request completed", fields...)
		})
	}
}
