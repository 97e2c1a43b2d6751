package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/logging"
)

// APITokenConfig configures RequireAPIToken.
type APITokenConfig struct {
	// Hash is the argon2id hash of the accepted token. An empty hash disables the check.
	Hash   string
	Audit  application.AuditSink
	Now    func() time.Time
	Logger *slog.Logger
}

// RequireAPIToken rejects requests that do not carry the configured API token, either as a
// bearer token or in the X-API-Token header. Every rejection is audited as
// schedule_access_denied.
func RequireAPIToken(cfg APITokenConfig) func(http.Handler) http.Handler {
	responder := newResponder(cfg.Logger)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return func(next http.Handler) http.Handler {
		if strings.TrimSpace(cfg.Hash) == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractTokenFromRequest(r)
			if token == "" {
				recordAccessDenied(r, cfg.Audit, responder, now(), "missing_token")
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingAPIToken)
				return
			}

			if err := application.VerifyToken(cfg.Hash, token); err != nil {
				if !errors.Is(err, application.ErrTokenMismatch) {
					responder.loggerFor(r.Context()).ErrorContext(r.Context(), "api token verification failed", "error", err)
				}
				recordAccessDenied(r, cfg.Audit, responder, now(), "invalid_token")
				responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
					ErrorCode: "AUTH_INVALID_TOKEN",
					Message:   errInvalidAPIToken.Error(),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func recordAccessDenied(r *http.Request, sink application.AuditSink, responder responder, at time.Time, cause string) {
	if sink == nil {
		return
	}
	conferenceID, _ := ConferenceIDFromContext(r.Context())
	event := application.AuditEvent{
		Type:      application.AuditScheduleAccessDenied,
		RelatedID: conferenceID,
		Details: map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"cause":  cause,
		},
		OccurredAt: at,
	}
	if err := sink.Record(context.WithoutCancel(r.Context()), event); err != nil {
		responder.loggerFor(r.Context()).WarnContext(r.Context(), "audit sink rejected event",
			"audit_event", string(event.Type),
			"error", err,
		)
	}
}

func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(header, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(header, prefix))
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Token"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	if s.status == 0 {
		s.status = status
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(p)
}

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := logging.ContextWithLogger(r.Context(), logger)
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w}
			logger.InfoContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}
