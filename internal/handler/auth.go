package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/auth"
	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler manages both login strategies and the session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignup         → create a credentials account and log it in
//   - HandleLogin          → email-or-username + password login
//   - HandleLogout         → revoke the session and clear the cookie
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it for a user, start a session
//   - HandleMe             → return the currently logged-in user's profile
//
// github is nil when no OAuth client is configured; the GitHub routes then
// answer 404.
type AuthHandler struct {
	auth   *service.AuthService
	github *auth.GitHubProvider
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(authService *service.AuthService, github *auth.GitHubProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		github: github,
		logger: logger,
	}
}

// LoginResponse is returned by signup and login. The token is also set as
// an HttpOnly cookie; API clients may send it back as a Bearer header.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// HandleSignup registers a credentials account.
//
// HTTP: POST /auth/signup
// REQUEST BODY: {"username": "reader", "email": "reader@example.com", "password": "...", "confirmPassword": "..."}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Signup(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.finishLogin(w, res)
	writeJSON(w, http.StatusCreated, loginResponse(res))
}

// HandleLogin acquires a session.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"identifier": "reader@example.com", "password": "..."}
//
// "email" or "username" are accepted in place of "identifier".
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}

	res, err := h.auth.Login(r.Context(), identifier, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("user logged in", slog.String("userID", res.User.ID))
	h.finishLogin(w, res)
	writeJSON(w, http.StatusOK, loginResponse(res))
}

// HandleLogout revokes the caller's session, if it still has one, and
// deletes the cookie.
//
// HTTP: POST /auth/logout
//
// Logout is not behind the session guard: an expired or unknown token
// still gets its cookie cleared and a 200. A session store failure is
// reported as such and the cookie is kept.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromRequest(r); token != "" {
		session, err := h.auth.ResolveSession(r.Context(), token)
		switch {
		case err == nil:
			if err := h.auth.Logout(r.Context(), session); err != nil {
				writeError(w, err)
				return
			}
		case !errors.Is(err, apperror.ErrUnauthorized):
			// The session may still be live; don't report it as logged out.
			writeError(w, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state is stored in a short-lived cookie and checked on callback.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Create or refresh the account and start a session
//  4. Set the session cookie and redirect to the app
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if h.github == nil {
		http.NotFound(w, r)
		return
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single-use
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 3: Account + session ---
	res, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// --- Step 4: Cookie + redirect ---
	h.finishLogin(w, res)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireSession puts the session in the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, apperror.AuthRequired())
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), session.UserID)
	if err != nil {
		h.logger.Error("HandleMe: user not found", slog.String("userID", session.UserID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// finishLogin sets the session cookie. It lives exactly as long as the
// session does.
//
// Secure should be true in production (HTTPS only). It stays false for
// local development.
func (h *AuthHandler) finishLogin(w http.ResponseWriter, res *service.AuthResult) {
	maxAge := int(time.Until(res.Session.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func loginResponse(res *service.AuthResult) LoginResponse {
	return LoginResponse{
		Token:     res.Token,
		ExpiresAt: res.Session.ExpiresAt,
		User:      res.User,
	}
}
