package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"quizforge-backend/internal/models"
)

const bcryptCost = 12

type userStore interface {
	GetOrCreate(ctx context.Context, username string) (*models.User, error)
}

type tokenIssuer interface {
	GenerateToken(userID uuid.UUID, role string, ttl time.Duration) (string, error)
}

// AdminCredentials configure the single admin account. When PasswordHash is
// empty, Password is hashed once at construction.
type AdminCredentials struct {
	Username     string
	Password     string
	PasswordHash string
}

type AuthService struct {
	users     userStore
	tokens    tokenIssuer
	adminUser string
	adminHash []byte
	adminID   uuid.UUID
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthService(users userStore, tokens tokenIssuer, admin AdminCredentials, ttl time.Duration) (*AuthService, error) {
	hash := []byte(admin.PasswordHash)
	if len(hash) == 0 {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(admin.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid admin password hash: %w", err)
	}

	return &AuthService{
		users:     users,
		tokens:    tokens,
		adminUser: admin.Username,
		adminHash: hash,
		adminID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("quizforge-admin:"+admin.Username)),
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

func (s *AuthService) AdminLogin(ctx context.Context, req models.AdminLoginRequest) (*models.AuthToken, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.adminUser)) == 1
	passErr := bcrypt.CompareHashAndPassword(s.adminHash, []byte(req.Password))
	if !userOK || passErr != nil {
		log.Warn().Str("username", req.Username).Msg("admin login failed")
		return nil, &UnauthorizedError{Message: "Invalid username or password"}
	}

	return s.issue(s.adminID, models.RoleAdmin, nil)
}

// UserLogin signs a quiz taker in by username, creating the account on first use.
func (s *AuthService) UserLogin(ctx context.Context, req models.UserLoginRequest) (*models.AuthToken, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if !ValidUsername(req.Username) {
		return nil, fieldError("username", "may only contain letters, digits, underscores and hyphens")
	}

	user, err := s.users.GetOrCreate(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}

	return s.issue(user.ID, models.RoleUser, user)
}

func (s *AuthService) issue(userID uuid.UUID, role string, user *models.User) (*models.AuthToken, error) {
	token, err := s.tokens.GenerateToken(userID, role, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &models.AuthToken{
		AccessToken: token,
		ExpiresIn:   int(s.ttl.Seconds()),
		Role:        role,
		User:        user,
		IssuedAt:    s.now(),
	}, nil
}
