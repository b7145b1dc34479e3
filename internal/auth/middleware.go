package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

type contextKey string

const sessionKey contextKey = "session"

// SessionResolver turns a raw token into the active session it names.
// Implemented by service.AuthService.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.Session, error)
}

// RequireSession is the Session Guard. Requests without an active session
// never reach next: API clients get 401 JSON, browser navigations are
// redirected to loginPath.
//
// Only an Unauthorized (or AuthRequired) error from the resolver means "no
// session". Any other error is a backend failure and is answered with 503
// for persistence errors and 500 otherwise, without a redirect.
func RequireSession(resolver SessionResolver, loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				reject(w, r, loginPath)
				return
			}

			session, err := resolver.ResolveSession(r.Context(), token)
			switch {
			case err == nil:
			case errors.Is(err, apperror.ErrUnauthorized), errors.Is(err, apperror.ErrAuthRequired):
				reject(w, r, loginPath)
				return
			default:
				fail(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// WithSession returns ctx carrying session.
func WithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session the guard attached, if any.
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok && s != nil
}

// TokenFromRequest reads the token from the session cookie, falling back to
// an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func reject(w http.ResponseWriter, r *http.Request, loginPath string) {
	if wantsHTML(r) && loginPath != "" {
		http.Redirect(w, r, loginPath, http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": "an active session is required",
	})
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := http.StatusInternalServerError, "internal_error"
	if errors.Is(err, apperror.ErrPersistence) {
		status, kind = http.StatusServiceUnavailable, "persistence_error"
	}
	slog.ErrorContext(r.Context(), "resolving session failed", slog.String("error", err.Error()))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": "could not check the session",
	})
}

// wantsHTML reports a top-level browser navigation, as opposed to an API
// call or a WebSocket upgrade.
func wantsHTML(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
