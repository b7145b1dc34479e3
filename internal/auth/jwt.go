// Package auth holds the authentication collaborators: signed session
// tokens, password hashing, the GitHub identity provider, and the Session
// Guard middleware that turns a request token into an active session.
//
// A token is a HS256 JWT:
//
//	sub → user id
//	jti → session id (the server-side record that logout revokes)
//	exp → session expiry
//
// The signature proves the token was issued here; whether the session is
// still usable is decided by the session record, not by the token alone.
//
// REQUEST FLOW:
//
//	cookie "token" or "Authorization: Bearer"
//	  → TokenFromRequest
//	  → SessionResolver.ResolveSession (service.AuthService)
//	  → WithSession(ctx) → handler reads SessionFromContext
//
// The guard answers "no session" (401 JSON, or a 303 to the login page for
// a browser navigation) only for Unauthorized errors. A failing session
// store is reported as a server error instead.
//
// PASSWORDS:
// bcrypt hashes with a per-hash salt. Inputs longer than MaxPasswordLength
// are rejected rather than truncated.
//
// GITHUB:
// GitHubProvider runs the OAuth2 authorization-code flow with
// golang.org/x/oauth2 and reads the user from the GitHub REST API. Which
// local account the GitHub user maps to is decided by the service layer.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "manhwee"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

// TokenService signs and verifies session tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService returns a service signing with secret, which must be at
// least MinSecretLength bytes.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", MinSecretLength)
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// Claims is what a valid token says about its bearer.
type Claims struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}

// Generate signs a token for the given session, valid for ttl.
func (s *TokenService) Generate(userID, sessionID string, ttl time.Duration) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("auth: user and session id are required")
	}

	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate checks signature, algorithm, issuer and expiry and returns the
// token's claims.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	if c.ID == "" {
		return nil, fmt.Errorf("auth: token has no session id")
	}

	return &Claims{
		UserID:    c.Subject,
		SessionID: c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
