// Package repository declares the persistence contracts the services depend
// on. Backends live in sub-packages (sqlite, jsonfile, memory) and are
// selected by configuration; services never import a backend directly.
package repository

import (
	"context"

	"github.com/sakif/manhwee/internal/model"
)

// ItemRepository is the persistence collaborator behind the collection store.
//
// Load returns every item owned by ownerID in backend order. Save inserts or
// replaces the item with item.ID (last write wins) and fills in timestamps.
// Remove returns apperror.ErrNotFound when ownerID owns no item with id.
type ItemRepository interface {
	Load(ctx context.Context, ownerID string) ([]model.Item, error)
	Save(ctx context.Context, item *model.Item) error
	Remove(ctx context.Context, ownerID, id string) error
}

// SnapshotPublisher is implemented by backends that push changes, like a
// realtime document store. Every callback carries the owner's complete
// collection; subscribers replace their copy, they never merge.
type SnapshotPublisher interface {
	SubscribeSnapshots(ownerID string, fn func(items []model.Item)) (unsubscribe func())
}

// UserRepository stores accounts for both login strategies.
//
// Upsert inserts or updates a GitHub account keyed by its GitHub id.
// Create inserts a credentials account and returns apperror.ErrConflict
// when the username or email is taken. Lookups return apperror.ErrNotFound
// for unknown accounts.
type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	Create(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByIdentifier looks a user up by email or username. An email
	// match takes precedence over a username match.
	GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error)
}

// SessionRepository stores the server-side session records that tokens
// point at. GetSession returns revoked and expired sessions too; deciding
// whether one is still usable is up to the caller. GetSession and
// RevokeSession return apperror.ErrNotFound for unknown ids.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	RevokeSession(ctx context.Context, id string) error
}
