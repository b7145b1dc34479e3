package model

import "time"

// User is the owner of a collection.
//
// Two identity strategies feed the same table: demo credentials
// (Username/Email + bcrypt PasswordHash) and GitHub OAuth (GitHubID).
// An account created through GitHub has no password hash and cannot use
// the password login.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	GitHubID     int64     `json:"githubId,omitempty"`
	Login        string    `json:"login,omitempty"` // GitHub username
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName picks the best available handle for greetings and logs.
func (u *User) DisplayName() string {
	switch {
	case u.Username != "":
		return u.Username
	case u.Login != "":
		return u.Login
	default:
		return u.Email
	}
}
