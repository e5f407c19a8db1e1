package http

import (
	"context"
	"io"

	"github.com/bucket-api/internal/application/otp"
	"github.com/bucket-api/internal/domain"
	jwtinfra "github.com/bucket-api/internal/infrastructure/jwt"
	"github.com/bucket-api/internal/infrastructure/smtp"
	appmiddleware "github.com/bucket-api/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
}

// ProductRepository is the minimal interface the router requires from a product store.
type ProductRepository interface {
	Put(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, productID string) (*domain.Product, error)
	List(ctx context.Context, category string) ([]domain.Product, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Product, error)
	Update(ctx context.Context, productID string, updates map[string]interface{}) error
	Delete(ctx context.Context, productID string) error
}

// ImageStore is the minimal interface the router requires from an object storage backend.
type ImageStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// EventPublisher announces catalog changes.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, p *domain.Product) error
}

// Deps holds all infrastructure dependencies for the router.
// JWTProvider, Images, Events and Metrics are optional. Without a
// RateLimiter the router builds one from config and never evicts idle clients.
type Deps struct {
	UserRepo    UserRepository
	SessionRepo SessionRepository
	ProductRepo ProductRepository
	OTPRegistry otp.Registry
	Images      ImageStore
	Events      EventPublisher
	Mailer      smtp.Mailer
	JWTProvider *jwtinfra.Provider
	Metrics     *prometheus.Registry
	RateLimiter *appmiddleware.RateLimiter
}
