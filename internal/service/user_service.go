package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"opsdesk/internal/access"
	"opsdesk/internal/model"
	"opsdesk/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Email    string   `json:"email" binding:"required,email"`
	FullName string   `json:"full_name" binding:"required"`
	Password string   `json:"password" binding:"required,min=6"`
	Roles    []string `json:"roles" binding:"required,min=1"`
}

type ReplaceRolesRequest struct {
	Roles []string `json:"roles" binding:"required"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Roles     []string  `json:"roles"`
	Role      string    `json:"role"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest, actor access.Subject) (*UserResponse, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, offset, limit int) ([]UserResponse, int64, error)
	ReplaceRoles(ctx context.Context, id string, req ReplaceRolesRequest, actor access.Subject) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string, actor access.Subject) error
	// EnsureAdmin creates the first administrator when no account uses email.
	EnsureAdmin(ctx context.Context, email, password string) error
}

// SuperuserChecker reports whether a subject holds superuser rights.
type SuperuserChecker interface {
	IsSuperuser(ctx context.Context, s access.Subject) bool
}

type userService struct {
	repo      repository.UserRepository
	roles     repository.PrivilegeRepository
	policy    SuperuserChecker
	txManager repository.TransactionManager
	activity  ActivityService
	log       *zap.Logger
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	roles repository.PrivilegeRepository,
	policy SuperuserChecker,
	txManager repository.TransactionManager,
	activity ActivityService,
	log *zap.Logger,
) UserService {
	return &userService{repo: repo, roles: roles, policy: policy, txManager: txManager, activity: activity, log: log.Named("users")}
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	names := user.RoleNames()
	sort.Strings(names)
	return &UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Roles:     names,
		Role:      access.ResolveRole(names),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest, actor access.Subject) (*UserResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(email) {
		return nil, validationError("invalid email format")
	}
	roles, err := s.checkRoles(ctx, req.Roles, actor)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Email:    email,
		FullName: strings.TrimSpace(req.FullName),
		Password: string(hashedPassword),
	}

	var entry *model.ActivityLog
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetByEmail(txCtx, email); err == nil {
			return fmt.Errorf("email '%s': %w", email, ErrConflict)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}

		if err := s.repo.Create(txCtx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if err := s.repo.ReplaceRoles(txCtx, user.ID, roles); err != nil {
			return fmt.Errorf("failed to assign roles: %w", err)
		}
		for _, r := range roles {
			user.Roles = append(user.Roles, model.UserRole{UserID: user.ID, RoleName: r})
		}

		entry, err = s.activity.Record(txCtx, ActivityEvent{
			Actor:       actor,
			ActionType:  model.ActionCreate,
			EntityType:  model.EntityUser,
			EntityID:    user.ID.String(),
			EntityName:  user.Email,
			Description: fmt.Sprintf("Created user '%s' with roles %s", user.Email, strings.Join(roles, ", ")),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Announce(ctx, entry)
	return mapToResponse(user), nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, offset, limit int) ([]UserResponse, int64, error) {
	users, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}

func (s *userService) ReplaceRoles(ctx context.Context, id string, req ReplaceRolesRequest, actor access.Subject) (*UserResponse, error) {
	roles, err := s.checkRoles(ctx, req.Roles, actor)
	if err != nil {
		return nil, err
	}

	var user *model.User
	var entry *model.ActivityLog
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err = s.find(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.guardTarget(txCtx, user, actor); err != nil {
			return err
		}
		if err := s.repo.ReplaceRoles(txCtx, user.ID, roles); err != nil {
			return fmt.Errorf("failed to assign roles: %w", err)
		}
		user.Roles = user.Roles[:0]
		for _, r := range roles {
			user.Roles = append(user.Roles, model.UserRole{UserID: user.ID, RoleName: r})
		}

		entry, err = s.activity.Record(txCtx, ActivityEvent{
			Actor:       actor,
			ActionType:  model.ActionUpdate,
			EntityType:  model.EntityUser,
			EntityID:    user.ID.String(),
			EntityName:  user.Email,
			Description: fmt.Sprintf("Set roles of '%s' to %s", user.Email, strings.Join(roles, ", ")),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.activity.Announce(ctx, entry)
	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string, actor access.Subject) error {
	var entry *model.ActivityLog
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.find(txCtx, id)
		if err != nil {
			return err
		}
		if user.ID.String() == actor.UserID {
			return validationError("you cannot delete your own account")
		}
		if err := s.guardTarget(txCtx, user, actor); err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		entry, err = s.activity.Record(txCtx, ActivityEvent{
			Actor:       actor,
			ActionType:  model.ActionDelete,
			EntityType:  model.EntityUser,
			EntityID:    user.ID.String(),
			EntityName:  user.Email,
			Description: fmt.Sprintf("Deleted user '%s'", user.Email),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.activity.Announce(ctx, entry)
	return nil
}

func (s *userService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check bootstrap admin: %w", err)
	}

	_, err := s.CreateUser(ctx, CreateUserRequest{
		Email:    email,
		FullName: "Administrator",
		Password: password,
		Roles:    []string{model.RoleAdmin},
	}, access.Subject{Email: "system"})
	if err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	s.log.Info("bootstrap admin created", zap.String("email", email))
	return nil
}

func (s *userService) find(ctx context.Context, id string) (*model.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, validationError("invalid user id '%s'", id)
	}
	user, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}

// checkRoles normalizes the requested role names and requires each to exist.
// Only a superuser may hand out a superuser role.
func (s *userService) checkRoles(ctx context.Context, requested []string, actor access.Subject) ([]string, error) {
	seen := make(map[string]bool, len(requested))
	roles := make([]string, 0, len(requested))
	for _, r := range requested {
		name := strings.ToLower(strings.TrimSpace(r))
		if name == "" || seen[name] {
			continue
		}
		role, err := s.roles.FindRoleByName(ctx, name)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, validationError("unknown role '%s'", name)
			}
			return nil, fmt.Errorf("failed to check role: %w", err)
		}
		if role.IsSuperuser && !s.policy.IsSuperuser(ctx, actor) {
			return nil, fmt.Errorf("assign role '%s': %w", name, ErrForbidden)
		}
		seen[name] = true
		roles = append(roles, name)
	}
	sort.Strings(roles)
	return roles, nil
}

// guardTarget refuses changes to an account holding a superuser role unless
// the actor is a superuser too.
func (s *userService) guardTarget(ctx context.Context, user *model.User, actor access.Subject) error {
	for _, name := range user.RoleNames() {
		role, err := s.roles.FindRoleByName(ctx, name)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return fmt.Errorf("failed to check role: %w", err)
		}
		if role.IsSuperuser && !s.policy.IsSuperuser(ctx, actor) {
			return fmt.Errorf("modify user '%s': %w", user.Email, ErrForbidden)
		}
	}
	return nil
}
