package service

import (
	"context"
	"errors"
	"fmt"
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

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Session   SessionResponse `json:"session"`
}

// SessionResponse is what the UI needs to render: who is signed in and which
// actions the same policy as the route gate would allow.
type SessionResponse struct {
	UserID       string                     `json:"user_id"`
	Email        string                     `json:"email"`
	FullName     string                     `json:"full_name"`
	Role         string                     `json:"role"`
	Superuser    bool                       `json:"superuser"`
	Capabilities map[string]map[string]bool `json:"capabilities"`
}

// CapabilityChecker is the decision side of the access policy.
type CapabilityChecker interface {
	IsSuperuser(ctx context.Context, s access.Subject) bool
	Capabilities(ctx context.Context, s access.Subject) map[model.Page]map[model.Operation]bool
}

type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Me(ctx context.Context, s access.Subject) (*SessionResponse, error)
}

type authService struct {
	users  repository.UserRepository
	policy CapabilityChecker
	secret []byte
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthService(users repository.UserRepository, policy CapabilityChecker, secret []byte, ttl time.Duration, log *zap.Logger) AuthService {
	return &authService{
		users:  users,
		policy: policy,
		secret: secret,
		ttl:    ttl,
		log:    log.Named("auth"),
		now:    time.Now,
	}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	subject := access.Subject{
		UserID: user.ID.String(),
		Email:  user.Email,
		Role:   access.ResolveRole(user.RoleNames()),
	}
	token, expiresAt, err := access.IssueToken(s.secret, subject, s.ttl, s.now())
	if err != nil {
		return nil, err
	}

	s.log.Info("user signed in", zap.String("email", user.Email), zap.String("role", subject.Role))

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Session:   s.session(ctx, subject, user.FullName),
	}, nil
}

func (s *authService) Me(ctx context.Context, subject access.Subject) (*SessionResponse, error) {
	id, err := uuid.Parse(subject.UserID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", subject.UserID, ErrNotFound)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", subject.UserID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	res := s.session(ctx, subject, user.FullName)
	return &res, nil
}

func (s *authService) session(ctx context.Context, subject access.Subject, fullName string) SessionResponse {
	caps := s.policy.Capabilities(ctx, subject)
	out := make(map[string]map[string]bool, len(caps))
	for page, ops := range caps {
		row := make(map[string]bool, len(ops))
		for op, ok := range ops {
			row[string(op)] = ok
		}
		out[string(page)] = row
	}
	return SessionResponse{
		UserID:       subject.UserID,
		Email:        subject.Email,
		FullName:     fullName,
		Role:         subject.Role,
		Superuser:    s.policy.IsSuperuser(ctx, subject),
		Capabilities: out,
	}
}
