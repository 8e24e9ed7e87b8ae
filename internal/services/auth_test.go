package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"quizforge-backend/internal/models"
)

type stubUserStore struct {
	users map[string]*models.User
}

func (s *stubUserStore) GetOrCreate(ctx context.Context, username string) (*models.User, error) {
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	u := &models.User{ID: uuid.New(), Username: username}
	s.users[username] = u
	return u, nil
}

type stubTokenIssuer struct {
	lastUser uuid.UUID
	lastRole string
}

func (s *stubTokenIssuer) GenerateToken(userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	s.lastUser = userID
	s.lastRole = role
	return "token-" + role, nil
}

func newTestAuthService(t *testing.T) (*AuthService, *stubUserStore, *stubTokenIssuer) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	users := &stubUserStore{users: map[string]*models.User{}}
	tokens := &stubTokenIssuer{}
	svc, err := NewAuthService(users, tokens, AdminCredentials{Username: "admin", PasswordHash: string(hash)}, time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc, users, tokens
}

func TestAuthService_AdminLogin(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)

	tok, err := svc.AdminLogin(context.Background(), models.AdminLoginRequest{Username: "admin", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Role != models.RoleAdmin || tokens.lastRole != models.RoleAdmin {
		t.Fatalf("expected admin role, got %q", tok.Role)
	}
	if tok.ExpiresIn != 3600 {
		t.Fatalf("expected expires_in 3600, got %d", tok.ExpiresIn)
	}

	first := tokens.lastUser
	svc.AdminLogin(context.Background(), models.AdminLoginRequest{Username: "admin", Password: "s3cret-pass"})
	if tokens.lastUser != first {
		t.Fatal("expected a stable admin id across logins")
	}
}

func TestAuthService_AdminLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	for _, req := range []models.AdminLoginRequest{
		{Username: "admin", Password: "wrong"},
		{Username: "root", Password: "s3cret-pass"},
	} {
		_, err := svc.AdminLogin(context.Background(), req)
		var uerr *UnauthorizedError
		if !errors.As(err, &uerr) {
			t.Fatalf("expected UnauthorizedError for %q, got %v", req.Username, err)
		}
	}
}

func TestAuthService_UserLoginCreatesOnce(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.UserLogin(ctx, models.UserLoginRequest{Username: "  alice_01 "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.UserLogin(ctx, models.UserLoginRequest{Username: "alice_01"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.User.ID != second.User.ID || len(users.users) != 1 {
		t.Fatal("expected the same user on repeat login")
	}
	if first.Role != models.RoleUser {
		t.Fatalf("expected user role, got %q", first.Role)
	}
}

func TestAuthService_UserLoginRejectsBadNames(t *testing.T) {
	svc, _, _ := newTestAuthService(t)

	for _, name := range []string{"ab", "bad name!"} {
		_, err := svc.UserLogin(context.Background(), models.UserLoginRequest{Username: name})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError for %q, got %v", name, err)
		}
	}
}

func TestNewAuthService_RejectsMalformedHash(t *testing.T) {
	_, err := NewAuthService(&stubUserStore{}, &stubTokenIssuer{}, AdminCredentials{Username: "admin", PasswordHash: "not-a-hash"}, time.Hour)
	if err == nil {
		t.Fatal("expected error for malformed hash")
	}
}
