package model

import "time"

// Session is an authenticated owner's handle on the application.
//
// Lifecycle: acquired at login, passed explicitly into the collection
// store and the view pipeline while in use, invalidated at logout. It
// replaces any ambient "current user" lookup: code that needs the owner
// gets the Session as an argument.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// Active reports whether the session may be used at time now.
// A nil session is never active.
func (s *Session) Active(now time.Time) bool {
	if s == nil || s.UserID == "" {
		return false
	}
	if s.RevokedAt != nil {
		return false
	}
	return now.Before(s.ExpiresAt)
}

// Invalidate marks the session revoked at time now. Idempotent.
func (s *Session) Invalidate(now time.Time) {
	if s.RevokedAt == nil {
		s.RevokedAt = &now
	}
}

// OwnerID returns the owning user's id, or "" for a nil session.
func (s *Session) OwnerID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}
