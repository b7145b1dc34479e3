package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/auth"
	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/repository"
)

// DefaultSessionTTL is used when no session lifetime is configured.
const DefaultSessionTTL = 7 * 24 * time.Hour

// AuthService implements both login strategies (credentials and GitHub) on
// top of one session lifecycle:
//
//	acquire    → Signup, Login, LoginOrRegisterGitHub store a session and sign a token
//	use        → ResolveSession maps a token back to the active session
//	invalidate → Logout revokes it; the token stops working immediately
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
	onRevoke  []func(sessionID string)
}

var _ auth.SessionResolver = (*AuthService)(nil)

// NewAuthService wires the session lifecycle to its stores. A ttl of zero
// or less falls back to DefaultSessionTTL.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	ttl time.Duration,
	logger *slog.Logger,
) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		passwords: passwords,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
	}
}

// OnRevoke registers fn to run with the session id after every Logout.
// The server uses it to end the session's open streams. Call it during
// setup, before serving.
func (s *AuthService) OnRevoke(fn func(sessionID string)) {
	s.onRevoke = append(s.onRevoke, fn)
}

// AuthResult bundles what a handler needs to finish a login: the account,
// the new session and its signed token.
type AuthResult struct {
	User    *model.User
	Session *model.Session
	Token   string
}

// SignupInput is the signup form.
type SignupInput struct {
	Username        string `json:"username" validate:"required,min=3,max=32"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// Signup creates a credentials account and logs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, in.Username, in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID), slog.String("username", user.Username))
	return s.acquire(ctx, user)
}

// Login checks an email-or-username and password. Unknown accounts and
// wrong passwords get the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperror.ValidationFailed("identifier", "email or username and password are required")
	}

	user, err := s.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("service/auth: looking up %q: %w", identifier, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("failed login", slog.String("userID", user.ID))
			return nil, apperror.Unauthorized("invalid credentials")
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	return s.acquire(ctx, user)
}

// LoginOrRegisterGitHub finishes the OAuth callback: the GitHub account is
// created on first login and refreshed afterwards.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)

	return s.acquire(ctx, user)
}

// ResolveSession validates the token and returns its session if it is
// still active. A bad token or a dead session is Unauthorized; a session
// store failure is Persistence, so callers can tell the two apart.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthorized("invalid or expired token")
	}

	session, err := s.sessions.GetSession(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("unknown session")
		}
		return nil, apperror.Persistence("load session", err)
	}

	if session.UserID != claims.UserID || !session.Active(s.now()) {
		return nil, apperror.Unauthorized("session expired or revoked")
	}
	return session, nil
}

// Logout revokes the session server-side and marks the caller's copy
// invalid. Logging out twice is not an error.
func (s *AuthService) Logout(ctx context.Context, session *model.Session) error {
	if session == nil {
		return nil
	}
	if err := s.sessions.RevokeSession(ctx, session.ID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return apperror.Persistence("revoke session", err)
	}
	session.Invalidate(s.now())
	for _, fn := range s.onRevoke {
		fn(session.ID)
	}

	s.logger.Info("user logged out", slog.String("userID", session.UserID))
	return nil
}

// EnsureDemoUser creates the configured demo account unless an account with
// that username or email already exists.
func (s *AuthService) EnsureDemoUser(ctx context.Context, username, email, password string) (*model.User, error) {
	for _, identifier := range []string{email, username} {
		if identifier == "" {
			continue
		}
		existing, err := s.users.GetUserByIdentifier(ctx, identifier)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up demo user: %w", err)
		}
	}

	user, err := s.createUser(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("demo user created", slog.String("userID", user.ID), slog.String("email", user.Email))
	return user, nil
}

// GetUserByID returns the user for /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, username, email, password string) (*model.User, error) {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// acquire starts a session for user and signs its token.
func (s *AuthService) acquire(ctx context.Context, user *model.User) (*AuthResult, error) {
	now := s.now().UTC()
	session := &model.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: storing session: %w", err)
	}

	token, err := s.tokens.Generate(user.ID, session.ID, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Session: session, Token: token}, nil
}
