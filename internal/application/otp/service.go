package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bucket-api/internal/domain"
	"github.com/bucket-api/internal/observability/metrics"
	pkgtoken "github.com/bucket-api/internal/pkg/token"
	"github.com/bucket-api/internal/pkg/validate"
)

// Code range and message content sent to the user.
const (
	codeMin     = 1000
	codeMax     = 9999
	mailSubject = "Bucket OTP Code"
	mailBody    = "Your OTP is : %s"
)

// Registry is a keyed store holding the live code for each email.
// Get must wrap domain.ErrNotFound when no record exists.
type Registry interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Get(ctx context.Context, email string) (*domain.OTPRecord, error)
	Delete(ctx context.Context, email string) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type Service interface {
	// Issue stores a fresh code for email, replacing any previous one, and mails it.
	Issue(ctx context.Context, email string) (string, error)
	// Verify reports whether code matches the live code for email.
	// Only registry failures are returned as errors.
	Verify(ctx context.Context, email, code string) (bool, error)
}

type ServiceDeps struct {
	Registry  Registry
	Mailer    mailer
	TTL       time.Duration // 0 disables expiry
	SingleUse bool
}

type service struct {
	registry  Registry
	mailer    mailer
	ttl       time.Duration
	singleUse bool

	now          func() time.Time
	generateCode func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	return &service{
		registry:     deps.Registry,
		mailer:       deps.Mailer,
		ttl:          deps.TTL,
		singleUse:    deps.SingleUse,
		now:          time.Now,
		generateCode: func() (string, error) { return pkgtoken.NewNumericCode(codeMin, codeMax) },
	}
}

func (s *service) Issue(ctx context.Context, email string) (string, error) {
	req := domain.IssueOTPRequest{Email: normalizeEmail(email)}
	if err := validate.Struct(&req); err != nil {
		metrics.OTPIssuedTotal.WithLabelValues("invalid").Inc()
		return "", err
	}
	code, err := s.generateCode()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	rec := &domain.OTPRecord{
		Email:    req.Email,
		Code:     code,
		IssuedAt: now,
	}
	if s.ttl > 0 {
		rec.ExpiresAt = now.Add(s.ttl).Unix()
	}
	if err := s.registry.Put(ctx, rec); err != nil {
		metrics.OTPIssuedTotal.WithLabelValues("store_error").Inc()
		return "", fmt.Errorf("store otp: %w", err)
	}

	// The record stays in the registry when delivery fails.
	if err := s.mailer.SendEmail(req.Email, mailSubject, fmt.Sprintf(mailBody, code)); err != nil {
		slog.Error("failed to send OTP email", "email", req.Email, "err", err)
		metrics.OTPIssuedTotal.WithLabelValues("delivery_error").Inc()
		return "", fmt.Errorf("send otp email: %w: %v", domain.ErrDelivery, err)
	}
	slog.Info("otp issued", "email", req.Email)
	metrics.OTPIssuedTotal.WithLabelValues("ok").Inc()
	return code, nil
}

func (s *service) Verify(ctx context.Context, email, code string) (bool, error) {
	email = normalizeEmail(email)
	if email == "" || code == "" {
		metrics.OTPVerificationsTotal.WithLabelValues("mismatch").Inc()
		return false, nil
	}
	rec, err := s.registry.Get(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.OTPVerificationsTotal.WithLabelValues("absent").Inc()
		return false, nil
	}
	if err != nil {
		metrics.OTPVerificationsTotal.WithLabelValues("store_error").Inc()
		return false, fmt.Errorf("load otp: %w", err)
	}
	if rec.Expired(s.now()) {
		metrics.OTPVerificationsTotal.WithLabelValues("expired").Inc()
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		metrics.OTPVerificationsTotal.WithLabelValues("mismatch").Inc()
		return false, nil
	}
	if s.singleUse {
		if err := s.registry.Delete(ctx, email); err != nil {
			slog.Warn("failed to consume OTP record", "email", email, "err", err)
		}
	}
	metrics.OTPVerificationsTotal.WithLabelValues("ok").Inc()
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
