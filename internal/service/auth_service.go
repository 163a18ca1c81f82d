package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// AuthService coordinates registration, login and token resolution.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// RegisterInput describes a self-service sign up.
type RegisterInput struct {
	Name       string
	Surname    string
	Email      string
	Password   string
	Department string
	Phone      string
}

// Session is an issued access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterUser creates a reporter account and signs it in.
func (s *AuthService) RegisterUser(ctx context.Context, input RegisterInput) (*Session, error) {
	user, err := newAccount(input, domain.RoleUser, s.bcryptCost, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, errorutil.NewConflict("email already registered", map[string]any{"email": user.Email})
		}
		return nil, errorutil.NewStorageError(fmt.Errorf("create user: %w", err))
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return s.issue(user)
}

// LoginUser authenticates an account by email and password.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errorutil.NewUnauthenticated("invalid credentials")
		}
		return nil, errorutil.NewStorageError(fmt.Errorf("load user: %w", err))
	}
	if !user.Active {
		return nil, errorutil.NewUnauthenticated("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Debug("login rejected", zap.String("user_id", user.ID))
		return nil, errorutil.NewUnauthenticated("invalid credentials")
	}
	return s.issue(user)
}

// ResolveActor maps a bearer token to the account's current identity and
// role. Role changes take effect without reissuing tokens.
func (s *AuthService) ResolveActor(ctx context.Context, token string) (domain.Actor, error) {
	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return domain.Actor{}, errorutil.NewUnauthenticated("invalid token")
	}
	user, err := s.users.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Actor{}, errorutil.NewUnauthenticated("account not found")
		}
		return domain.Actor{}, errorutil.NewStorageError(fmt.Errorf("load user: %w", err))
	}
	if !user.Active {
		return domain.Actor{}, errorutil.NewUnauthenticated("account disabled")
	}
	return domain.Actor{ID: user.ID, Role: user.Role}, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Actor, currentPassword, newPassword string) error {
	if actor.IsZero() {
		return errorutil.NewUnauthenticated("actor required")
	}
	if len(newPassword) < auth.MinPasswordLength {
		return errorutil.NewValidationError("password too short", map[string]any{"min_length": auth.MinPasswordLength})
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errorutil.NewNotFound("user", map[string]any{"id": actor.ID})
		}
		return errorutil.NewStorageError(fmt.Errorf("load user: %w", err))
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return errorutil.NewUnauthenticated("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return errorutil.NewStorageError(err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return errorutil.NewStorageError(fmt.Errorf("update user: %w", err))
	}
	return nil
}

// EnsureAdmin creates an admin account for email unless one already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("look up bootstrap admin: %w", err)
	}
	admin, err := newAccount(RegisterInput{Name: "Administrator", Email: email, Password: password}, domain.RoleAdmin, s.bcryptCost, s.now().UTC())
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", zap.String("user_id", admin.ID))
	return nil
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, errorutil.NewStorageError(fmt.Errorf("sign token: %w", err))
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

// newAccount validates input and builds an active account with a hashed
// password.
func newAccount(input RegisterInput, role domain.Role, cost int, now time.Time) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errorutil.NewValidationError("name is required", map[string]any{"field": "name"})
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, errorutil.NewValidationError("invalid email", map[string]any{"field": "email"})
	}
	if len(input.Password) < auth.MinPasswordLength {
		return nil, errorutil.NewValidationError("password too short", map[string]any{"min_length": auth.MinPasswordLength})
	}
	hash, err := auth.HashPassword(input.Password, cost)
	if err != nil {
		return nil, errorutil.NewStorageError(err)
	}
	return &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Surname:      strings.TrimSpace(input.Surname),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Department:   strings.TrimSpace(input.Department),
		Phone:        strings.TrimSpace(input.Phone),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
