package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/policy"
	"github.com/spec-kit/incident-service/internal/repository"
	"github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// AccountService manages user accounts under the UserAccount rules, where
// ownership means the actor is the account itself.
type AccountService struct {
	users      repository.UserRepository
	policy     Authorizer
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// CreateAccountInput describes an account created by an administrator.
type CreateAccountInput struct {
	RegisterInput
	Role domain.Role
}

// ProfilePatch lists editable profile fields; nil leaves a field untouched.
type ProfilePatch struct {
	Name       *string
	Surname    *string
	Department *string
	Phone      *string
}

// NewAccountService constructs the service.
func NewAccountService(users repository.UserRepository, authorizer Authorizer, bcryptCost int, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{users: users, policy: authorizer, bcryptCost: bcryptCost, logger: logger, now: time.Now}
}

// GetAccount returns one account.
func (s *AccountService) GetAccount(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if err := authorize(s.policy, actor, policy.ActionView, policy.KindUserAccount, actor.ID == id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// ListAccounts pages through every account. Admin only.
func (s *AccountService) ListAccounts(ctx context.Context, actor domain.Actor, limit, offset int) ([]domain.User, error) {
	if err := authorize(s.policy, actor, policy.ActionView, policy.KindUserAccount, false); err != nil {
		return nil, err
	}
	limit, offset = repository.NormalizePage(limit, offset)
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, s.storageError("list users", err)
	}
	return users, nil
}

// CreateAccount creates an account with any role. Admin only.
func (s *AccountService) CreateAccount(ctx context.Context, actor domain.Actor, input CreateAccountInput) (*domain.User, error) {
	if err := authorize(s.policy, actor, policy.ActionCreate, policy.KindUserAccount, false); err != nil {
		return nil, err
	}
	role, err := domain.ParseRole(string(input.Role))
	if err != nil {
		return nil, errorutil.NewValidationError(err.Error(), map[string]any{"field": "role"})
	}
	user, err := newAccount(input.RegisterInput, role, s.bcryptCost, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, errorutil.NewConflict("email already registered", map[string]any{"email": user.Email})
		}
		return nil, s.storageError("create user", err)
	}
	s.logger.Info("account created", zap.String("user_id", user.ID), zap.String("role", string(role)), zap.String("actor_id", actor.ID))
	return user, nil
}

// UpdateProfile edits profile fields of the actor's own account, or any
// account for admins.
func (s *AccountService) UpdateProfile(ctx context.Context, actor domain.Actor, id string, patch ProfilePatch) (*domain.User, error) {
	if err := authorize(s.policy, actor, policy.ActionUpdate, policy.KindUserAccount, actor.ID == id); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, errorutil.NewValidationError("name must not be empty", map[string]any{"field": "name"})
		}
		user.Name = name
	}
	if patch.Surname != nil {
		user.Surname = strings.TrimSpace(*patch.Surname)
	}
	if patch.Department != nil {
		user.Department = strings.TrimSpace(*patch.Department)
	}
	if patch.Phone != nil {
		user.Phone = strings.TrimSpace(*patch.Phone)
	}
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.translate(err, id)
	}
	return user, nil
}

// UpdateRole changes an account's role. Self-service never covers roles, so
// only admins pass.
func (s *AccountService) UpdateRole(ctx context.Context, actor domain.Actor, id string, role domain.Role) (*domain.User, error) {
	if err := authorize(s.policy, actor, policy.ActionUpdate, policy.KindUserAccount, false); err != nil {
		return nil, err
	}
	parsed, err := domain.ParseRole(string(role))
	if err != nil {
		return nil, errorutil.NewValidationError(err.Error(), map[string]any{"field": "role"})
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := user.Role
	user.Role = parsed
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, s.translate(err, id)
	}
	s.logger.Info("account role changed",
		zap.String("user_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(parsed)),
		zap.String("actor_id", actor.ID))
	return user, nil
}

// DeleteAccount removes an account. Admins may not delete themselves.
func (s *AccountService) DeleteAccount(ctx context.Context, actor domain.Actor, id string) error {
	if err := authorize(s.policy, actor, policy.ActionDelete, policy.KindUserAccount, actor.ID == id); err != nil {
		return err
	}
	if err := requireID("user", id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return s.translate(err, id)
	}
	s.logger.Info("account deleted", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	return nil
}

func (s *AccountService) load(ctx context.Context, id string) (*domain.User, error) {
	if err := requireID("user", id); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, s.translate(err, id)
	}
	return user, nil
}

func (s *AccountService) translate(err error, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errorutil.NewNotFound("user", map[string]any{"id": id})
	}
	return s.storageError("user store", err)
}

func (s *AccountService) storageError(op string, err error) error {
	s.logger.Error("account storage failure", zap.String("op", op), zap.Error(err))
	return errorutil.NewStorageError(fmt.Errorf("%s: %w", op, err))
}
