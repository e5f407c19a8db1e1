package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bucket-api/internal/domain"
)

// OTPRegistry keeps one live code per email in process memory.
type OTPRegistry struct {
	mu      sync.RWMutex
	records map[string]domain.OTPRecord
}

func NewOTPRegistry() *OTPRegistry {
	return &OTPRegistry{records: make(map[string]domain.OTPRecord)}
}

func (r *OTPRegistry) Put(_ context.Context, rec *domain.OTPRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Email] = *rec
	return nil
}

func (r *OTPRegistry) Get(_ context.Context, email string) (*domain.OTPRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[email]
	if !ok {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	return &rec, nil
}

func (r *OTPRegistry) Delete(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, email)
	return nil
}

// PurgeExpired drops every record expired at now and returns how many were removed.
// Records without an expiry are kept.
func (r *OTPRegistry) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for email, rec := range r.records {
		if rec.Expired(now) {
			delete(r.records, email)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (r *OTPRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
