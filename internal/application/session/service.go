package session

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
	pkgtoken "github.com/bucket-api/internal/pkg/token"
	"github.com/bucket-api/internal/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for both an unknown email and a wrong
// password. It is always joined with a domain sentinel carrying the status.
var ErrInvalidCredentials = errors.New("invalid credentials")

// LoginResult carries the authenticated user. Bearer, RefreshToken and Session
// are set only when a token signer is configured.
type LoginResult struct {
	User         *domain.User
	Bearer       string
	RefreshToken string
	Session      *domain.Session
}

type Service interface {
	Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (bearer, newRefreshToken string, err error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
}

type jwtSigner interface {
	Sign(userID, role, sessionID string) (string, error)
}

type ServiceDeps struct {
	UserRepo        userStore
	SessionRepo     sessionStore
	JWTProvider     jwtSigner // nil disables session issuance
	RefreshTokenDur time.Duration
}

type service struct {
	userRepo        userStore
	sessionRepo     sessionStore
	jwtProvider     jwtSigner
	refreshTokenDur time.Duration
	now             func() time.Time
}

func NewService(deps ServiceDeps) Service {
	dur := deps.RefreshTokenDur
	if dur <= 0 {
		dur = 30 * 24 * time.Hour
	}
	return &service{
		userRepo:        deps.UserRepo,
		sessionRepo:     deps.SessionRepo,
		jwtProvider:     deps.JWTProvider,
		refreshTokenDur: dur,
		now:             time.Now,
	}
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*LoginResult, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(&req); err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	u, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.AuthLoginsTotal.WithLabelValues("unknown_user").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, domain.ErrBadRequest)
	}
	if err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("bad_password").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, domain.ErrUnauthorized)
	}

	res := &LoginResult{User: u}
	if s.jwtProvider != nil {
		if err := s.openSession(ctx, u, res); err != nil {
			metrics.AuthLoginsTotal.WithLabelValues("store_error").Inc()
			return nil, err
		}
	}
	slog.Info("user logged in", "user_id", u.UserID)
	metrics.AuthLoginsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

func (s *service) openSession(ctx context.Context, u *domain.User, res *LoginResult) error {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           u.UserID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	sess.User = u
	res.Bearer = bearer
	res.RefreshToken = refreshToken
	res.Session = sess
	return nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessionRepo.Disable(ctx, sessionID); err != nil {
		return fmt.Errorf("disable session: %w", err)
	}
	return nil
}

func (s *service) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("session not found: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return sess, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if refreshToken == "" {
		return "", "", fmt.Errorf("refresh_token is required: %w", domain.ErrBadRequest)
	}
	if s.jwtProvider == nil {
		return "", "", fmt.Errorf("sessions disabled: %w", domain.ErrUnauthorized)
	}
	sess, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if errors.Is(err, domain.ErrNotFound) {
		return "", "", fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return "", "", err
	}
	now := s.now()
	if !sess.Enable || sess.RefreshExpiresAt < now.Unix() {
		return "", "", fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}
	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return "", "", err
	}
	newExpiry := now.Add(s.refreshTokenDur).Unix()
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.SessionID, newToken, newExpiry); err != nil {
		return "", "", err
	}
	u, err := s.userRepo.Get(ctx, sess.UserID)
	if err != nil {
		return "", "", err
	}
	bearer, err := s.jwtProvider.Sign(u.UserID, u.Role, sess.SessionID)
	if err != nil {
		return "", "", err
	}
	return bearer, newToken, nil
}
