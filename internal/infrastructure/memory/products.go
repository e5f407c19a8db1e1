package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bucket-api/internal/domain"
)

type ProductRepo struct {
	mu       sync.RWMutex
	products map[string]domain.Product
}

func NewProductRepo() *ProductRepo {
	return &ProductRepo{products: make(map[string]domain.Product)}
}

func (r *ProductRepo) Put(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ProductID] = *p
	return nil
}

func (r *ProductRepo) Get(_ context.Context, productID string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[productID]
	if !ok {
		return nil, fmt.Errorf("product not found: %w", domain.ErrNotFound)
	}
	return &p, nil
}

// List returns every product, or only those in category when it is non-empty.
func (r *ProductRepo) List(_ context.Context, category string) ([]domain.Product, error) {
	return r.filter(func(p domain.Product) bool { return category == "" || p.Category == category }), nil
}

func (r *ProductRepo) ListByOwner(_ context.Context, userID string) ([]domain.Product, error) {
	return r.filter(func(p domain.Product) bool { return p.UserID == userID }), nil
}

func (r *ProductRepo) Update(_ context.Context, productID string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return fmt.Errorf("product not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		s, _ := v.(string)
		switch k {
		case domain.FieldTitle:
			p.Title = s
		case domain.FieldDescription:
			p.Description = s
		case domain.FieldPrice:
			p.Price = s
		case domain.FieldCategory:
			p.Category = s
		case domain.FieldImageKey:
			p.ImageKey = &s
		default:
			return fmt.Errorf("unknown product field %q: %w", k, domain.ErrBadRequest)
		}
	}
	p.UpdatedAt = time.Now().UTC()
	r.products[productID] = p
	return nil
}

func (r *ProductRepo) Delete(_ context.Context, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.products, productID)
	return nil
}

func (r *ProductRepo) filter(keep func(domain.Product) bool) []domain.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, 0, len(r.products))
	for _, p := range r.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
