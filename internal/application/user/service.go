package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bucket-api/internal/domain"
	"github.com/bucket-api/internal/observability/metrics"
	"github.com/bucket-api/internal/pkg/id"
	"github.com/bucket-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is bcrypt's input limit; the validator's max counts runes.
const maxPasswordBytes = 72

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

// userStore.Create must wrap domain.ErrConflict when the email is taken.
type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type ServiceDeps struct {
	UserRepo   userStore
	BcryptCost int
}

type service struct {
	repo       userStore
	bcryptCost int
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &service{repo: deps.UserRepo, bcryptCost: cost}
}

func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(&req); err != nil {
		metrics.AuthRegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if len(req.Password) > maxPasswordBytes {
		metrics.AuthRegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("password exceeds %d bytes: %w", maxPasswordBytes, domain.ErrBadRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("password exceeds %d bytes: %w", maxPasswordBytes, domain.ErrBadRequest)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			metrics.AuthRegistrationsTotal.WithLabelValues("conflict").Inc()
			return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
		metrics.AuthRegistrationsTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user registered", "user_id", u.UserID)
	metrics.AuthRegistrationsTotal.WithLabelValues("ok").Inc()
	return u, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}
