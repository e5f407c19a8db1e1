package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bucket-api/internal/domain"
)

type SessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]domain.Session)}
}

func (r *SessionRepo) Put(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	cp.User = nil
	r.sessions[s.SessionID] = cp
	return nil
}

func (r *SessionRepo) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return &s, nil
}

func (r *SessionRepo) GetByRefreshToken(_ context.Context, token string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.RefreshToken == token {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
}

func (r *SessionRepo) RotateRefreshToken(_ context.Context, sessionID, newToken string, newExpiry int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	s.RefreshToken = newToken
	s.RefreshExpiresAt = newExpiry
	s.UpdatedAt = time.Now().UTC()
	r.sessions[sessionID] = s
	return nil
}

func (r *SessionRepo) Disable(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	s.Enable = false
	s.UpdatedAt = time.Now().UTC()
	r.sessions[sessionID] = s
	return nil
}
