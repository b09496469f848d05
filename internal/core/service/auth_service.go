package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/port"
)

const sessionTTL = 24 * time.Hour

// AuthService issues opaque bearer tokens backed by the cache. A token maps
// to a Session for sessionTTL; logout revokes it immediately.
type AuthService struct {
	users  port.UserRepository
	cache  port.CacheRepository
	logger *zap.Logger
}

func NewAuthService(users port.UserRepository, cache port.CacheRepository, logger *zap.Logger) *AuthService {
	return &AuthService{users: users, cache: cache, logger: logger}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Role     domain.Role
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("a valid email is required: %w", domain.ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", domain.ErrValidation)
	}
	if in.Role == "" {
		in.Role = domain.RoleCustomer
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q: %w", in.Role, domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: string(hash),
		FullName:     in.FullName,
		Role:         in.Role,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.String("user_id", u.ID),
		zap.String("role", string(u.Role)))
	return u, nil
}

// Login verifies credentials and returns a fresh bearer token. Unknown email
// and wrong password both come back as domain.ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}

	token := uuid.NewString()
	session := domain.Session{UserID: u.ID, Role: u.Role}
	if err := s.cache.SaveSession(ctx, token, session, sessionTTL); err != nil {
		return "", nil, fmt.Errorf("failed to save session: %w", err)
	}
	return token, u, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.cache.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its session, or
// domain.ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	session, err := s.cache.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session expired or revoked: %w", domain.ErrUnauthorized)
	}
	return session, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetUserByID(ctx, userID)
}
