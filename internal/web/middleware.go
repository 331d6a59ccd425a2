package web

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/matzehuels/dbdev/pkg/auth"
	"github.com/matzehuels/dbdev/pkg/session"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeySession   ctxKey = "session"
)

// sessionCookie holds the ID of the signed-in session.
const sessionCookie = "dbdev_session"

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// SessionFromContext returns the signed-in session, or nil.
func SessionFromContext(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(ctxKeySession).(*session.Session)
	return sess
}

func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := requestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).Round(time.Microsecond),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// sessionMiddleware attaches the signed-in session, if any, and its access
// token to the request context.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := s.deps.Sessions.Get(r.Context(), c.Value)
		if err != nil {
			s.logger.Error("session lookup failed", "error", err)
		}
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeySession, sess)
		ctx = auth.WithAccessToken(ctx, sess.Tokens.AccessToken)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireOwner lets the request through only for the signed-in owner of
// the {handle} in the path. Anonymous users are sent to sign in.
func (s *Server) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromContext(r.Context())
		if sess == nil {
			http.Redirect(w, r, "/sign-in?next="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
			return
		}
		if sess.Handle() != chi.URLParam(r, "handle") {
			s.renderError(w, r, http.StatusForbidden, "You can only edit your own profile.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
