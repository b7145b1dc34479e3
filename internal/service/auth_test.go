package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/auth"
	"github.com/sakif/manhwee/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	byGHID map[int64]*model.User
	nextID int
	// set to a non-nil error to simulate a database failure
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		byGHID: make(map[int64]*model.User),
	}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if (user.Email != "" && strings.EqualFold(u.Email, user.Email)) ||
			(user.Username != "" && u.Username == user.Username) {
			return apperror.Conflict("user", user.Email)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	if user.GitHubID != 0 {
		f.byGHID[user.GitHubID] = &copied
	}
	return nil
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.byGHID[user.GitHubID]; ok {
		existing.Login = user.Login
		if user.Email != "" {
			existing.Email = user.Email
		}
		existing.AvatarURL = user.AvatarURL
		*user = *existing
		return nil
	}
	return f.Create(ctx, user)
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByIdentifier(_ context.Context, identifier string) (*model.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, identifier) || u.Username == identifier {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", identifier)
}

// fakeSessionRepo is an in-memory repository.SessionRepository.
type fakeSessionRepo struct {
	sessions  map[string]model.Session
	createErr error
	getErr    error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]model.Session)}
}

func (f *fakeSessionRepo) CreateSession(_ context.Context, s *model.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeSessionRepo) GetSession(_ context.Context, id string) (*model.Session, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, apperror.NotFound("session", id)
	}
	return &s, nil
}

func (f *fakeSessionRepo) RevokeSession(_ context.Context, id string) error {
	s, ok := f.sessions[id]
	if !ok {
		return apperror.NotFound("session", id)
	}
	s.Invalidate(time.Now())
	f.sessions[id] = s
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestAuthService wires an AuthService with fakes and a fast bcrypt cost.
func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *fakeSessionRepo) {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	users, sessions := newFakeUserRepo(), newFakeSessionRepo()
	svc := NewAuthService(users, sessions, ts, auth.NewPasswordServiceWithCost(bcrypt.MinCost), time.Hour, testLogger())
	return svc, users, sessions
}

func validSignup() SignupInput {
	return SignupInput{
		Username:        "reader",
		Email:           "reader@example.com",
		Password:        "manhwa123",
		ConfirmPassword: "manhwa123",
	}
}

// =========================================================================
// SIGNUP / LOGIN TESTS
// =========================================================================

func TestSignup_CreatesAccountAndSession(t *testing.T) {
	svc, users, sessions := newTestAuthService(t)

	result, err := svc.Signup(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if result.Token == "" || result.Session == nil {
		t.Fatal("Signup() should log the new account in")
	}
	stored := users.users[result.User.ID]
	if stored.PasswordHash == "" || stored.PasswordHash == "manhwa123" {
		t.Errorf("password must be stored hashed, got %q", stored.PasswordHash)
	}
	if _, ok := sessions.sessions[result.Session.ID]; !ok {
		t.Error("session was not persisted")
	}
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*SignupInput)
		field string
	}{
		{"missing username", func(in *SignupInput) { in.Username = "  " }, "username"},
		{"bad email", func(in *SignupInput) { in.Email = "not-an-email" }, "email"},
		{"short password", func(in *SignupInput) { in.Password, in.ConfirmPassword = "abc", "abc" }, "password"},
		{"mismatched confirmation", func(in *SignupInput) { in.ConfirmPassword = "different" }, "confirmPassword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestAuthService(t)
			in := validSignup()
			tt.edit(&in)

			_, err := svc.Signup(context.Background(), in)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("Signup() error = %v, want ErrValidation", err)
			}
			var appErr *apperror.AppError
			if errors.As(err, &appErr) && appErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.field)
			}
		})
	}
}

func TestSignup_Duplicate(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	if _, err := svc.Signup(context.Background(), validSignup()); err != nil {
		t.Fatalf("first Signup() error = %v", err)
	}

	_, err := svc.Signup(context.Background(), validSignup())
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Signup() error = %v, want ErrConflict", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	if _, err := svc.Signup(context.Background(), validSignup()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{"by email", "reader@example.com", "manhwa123", nil},
		{"by username", "reader", "manhwa123", nil},
		{"wrong password", "reader", "nope", apperror.ErrUnauthorized},
		{"unknown account", "ghost", "manhwa123", apperror.ErrUnauthorized},
		{"blank", "", "", apperror.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.Login(context.Background(), tt.identifier, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Login() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login() error = %v", err)
			}
			if result.User.Username != "reader" {
				t.Errorf("Username = %q, want reader", result.User.Username)
			}
		})
	}
}

// =========================================================================
// SESSION LIFECYCLE TESTS
// =========================================================================

func TestResolveSession_AcquireUseInvalidate(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	result, err := svc.Signup(ctx, validSignup())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	session, err := svc.ResolveSession(ctx, result.Token)
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if session.UserID != result.User.ID {
		t.Errorf("UserID = %q, want %q", session.UserID, result.User.ID)
	}

	if err := svc.Logout(ctx, session); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if session.Active(time.Now()) {
		t.Error("Logout() should invalidate the caller's session")
	}

	_, err = svc.ResolveSession(ctx, result.Token)
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("ResolveSession() after logout error = %v, want ErrUnauthorized", err)
	}

	if err := svc.Logout(ctx, session); err != nil {
		t.Errorf("second Logout() error = %v", err)
	}
}

func TestResolveSession_Expired(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()
	result, _ := svc.Signup(ctx, validSignup())

	// The token itself is still valid; the session record decides.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := svc.ResolveSession(ctx, result.Token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("ResolveSession() error = %v, want ErrUnauthorized", err)
	}
}

func TestResolveSession_UnknownSessionOrGarbage(t *testing.T) {
	svc, _, sessions := newTestAuthService(t)
	ctx := context.Background()
	result, _ := svc.Signup(ctx, validSignup())

	delete(sessions.sessions, result.Session.ID)

	for _, token := range []string{result.Token, "this.is.garbage"} {
		if _, err := svc.ResolveSession(ctx, token); !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("ResolveSession(%q) error = %v, want ErrUnauthorized", token, err)
		}
	}
}

func TestResolveSession_StoreFailureIsNotUnauthorized(t *testing.T) {
	svc, _, sessions := newTestAuthService(t)
	ctx := context.Background()
	result, _ := svc.Signup(ctx, validSignup())

	sessions.getErr = errors.New("database is locked")

	_, err := svc.ResolveSession(ctx, result.Token)
	if !errors.Is(err, apperror.ErrPersistence) {
		t.Fatalf("ResolveSession() error = %v, want ErrPersistence", err)
	}
	if errors.Is(err, apperror.ErrUnauthorized) {
		t.Error("a store failure must not look like a dead session")
	}
}

func TestLogout_NotifiesRevokeHooks(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()
	result, _ := svc.Signup(ctx, validSignup())

	var revoked []string
	svc.OnRevoke(func(id string) { revoked = append(revoked, id) })

	if err := svc.Logout(ctx, result.Session); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if len(revoked) != 1 || revoked[0] != result.Session.ID {
		t.Errorf("revoked = %v, want [%s]", revoked, result.Session.ID)
	}
}

func TestAcquire_SessionStoreFailure(t *testing.T) {
	svc, _, sessions := newTestAuthService(t)
	sessions.createErr = errors.New("disk full")

	if _, err := svc.Signup(context.Background(), validSignup()); err == nil {
		t.Fatal("Signup() should fail when the session cannot be stored")
	}
}

// =========================================================================
// GITHUB TESTS
// =========================================================================

func TestLoginOrRegisterGitHub_NewThenExisting(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "old-login", Email: "old@email.com"})
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}
	second, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "new-login"})
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("user ID changed: %q → %q", first.User.ID, second.User.ID)
	}
	if second.User.Login != "new-login" {
		t.Errorf("Login = %q, want refreshed", second.User.Login)
	}
	if second.Session.ID == first.Session.ID {
		t.Error("each login must start a new session")
	}

	session, err := svc.ResolveSession(ctx, second.Token)
	if err != nil {
		t.Fatalf("ResolveSession() error = %v", err)
	}
	if session.UserID != first.User.ID {
		t.Errorf("session owner = %q, want %q", session.UserID, first.User.ID)
	}
}

func TestLoginOrRegisterGitHub_Errors(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	if _, err := svc.LoginOrRegisterGitHub(context.Background(), nil); err == nil {
		t.Fatal("LoginOrRegisterGitHub() should return error for nil GitHubUser")
	}

	users.upsertErr = errors.New("database is on fire")
	if _, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "user"}); err == nil {
		t.Fatal("LoginOrRegisterGitHub() should propagate repository errors")
	}
}

// =========================================================================
// DEMO USER / LOOKUP TESTS
// =========================================================================

func TestEnsureDemoUser_Idempotent(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.EnsureDemoUser(ctx, "demo", "demo@manhwee.app", "demo1234")
	if err != nil {
		t.Fatalf("EnsureDemoUser() error = %v", err)
	}
	second, err := svc.EnsureDemoUser(ctx, "demo", "demo@manhwee.app", "demo1234")
	if err != nil {
		t.Fatalf("second EnsureDemoUser() error = %v", err)
	}

	if first.ID != second.ID || len(users.users) != 1 {
		t.Fatalf("EnsureDemoUser() created a duplicate account")
	}
	if _, err := svc.Login(ctx, "demo@manhwee.app", "demo1234"); err != nil {
		t.Errorf("demo login failed: %v", err)
	}
}

func TestGetUserByID(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	result, _ := svc.Signup(context.Background(), validSignup())

	user, err := svc.GetUserByID(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Email != "reader@example.com" {
		t.Errorf("Email = %q", user.Email)
	}

	if _, err := svc.GetUserByID(context.Background(), ""); err == nil {
		t.Error("GetUserByID() should reject an empty ID")
	}
	if _, err := svc.GetUserByID(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}
