package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
)

func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "sessions")
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	s := &model.Session{
		ID:        "4f1c2b1e-8f5a-4c36-9e0e-0d7f7f0f1a11",
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := db.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	got, err := db.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", got.UserID, user.ID)
	}
	if got.RevokedAt != nil {
		t.Error("new session should not be revoked")
	}
	if !got.Active(now) {
		t.Error("new session should be active")
	}

	if err := db.RevokeSession(ctx, s.ID); err != nil {
		t.Fatalf("RevokeSession() error = %v", err)
	}
	// revoking again is fine
	if err := db.RevokeSession(ctx, s.ID); err != nil {
		t.Fatalf("second RevokeSession() error = %v", err)
	}

	got, err = db.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("GetSession() after revoke error = %v", err)
	}
	if got.RevokedAt == nil {
		t.Fatal("RevokedAt should be set after revoke")
	}
	if got.Active(now) {
		t.Error("revoked session must not be active")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetSession(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetSession() error = %v, want ErrNotFound", err)
	}
	if err := db.RevokeSession(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("RevokeSession() error = %v, want ErrNotFound", err)
	}
}
