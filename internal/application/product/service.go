package product

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bucket-api/internal/domain"
	"github.com/bucket-api/internal/pkg/id"
	"github.com/bucket-api/internal/pkg/validate"
	"github.com/google/uuid"
)

// Catalog event types published after a successful change.
const (
	EventCreated = "product.created"
	EventUpdated = "product.updated"
	EventDeleted = "product.deleted"
)

const defaultMaxImageBytes = 5 << 20

// imageExt maps the accepted sniffed content types to object key extensions.
var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageUpload is a product image as received from the client.
type ImageUpload struct {
	Reader   io.Reader
	Filename string
}

type Service interface {
	Create(ctx context.Context, actor domain.Actor, req domain.CreateProductRequest) (*domain.Product, error)
	List(ctx context.Context, category string) ([]domain.Product, error)
	Get(ctx context.Context, productID string) (*domain.Product, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Product, error)
	Update(ctx context.Context, actor domain.Actor, productID string, req domain.UpdateProductRequest) (*domain.Product, error)
	Delete(ctx context.Context, actor domain.Actor, productID string) error
	AttachImage(ctx context.Context, actor domain.Actor, productID string, img ImageUpload) (*domain.Product, error)
	// Image streams the stored image of a product. The caller closes the reader.
	Image(ctx context.Context, productID string) (io.ReadCloser, string, error)
}

type productStore interface {
	Put(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, productID string) (*domain.Product, error)
	List(ctx context.Context, category string) ([]domain.Product, error)
	ListByOwner(ctx context.Context, userID string) ([]domain.Product, error)
	Update(ctx context.Context, productID string, updates map[string]interface{}) error
	Delete(ctx context.Context, productID string) error
}

type imageStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

type eventPublisher interface {
	Publish(ctx context.Context, eventType string, p *domain.Product) error
}

type ServiceDeps struct {
	ProductRepo   productStore
	Images        imageStore     // nil disables image upload
	Events        eventPublisher // nil disables catalog events
	MaxImageBytes int64
}

type service struct {
	repo          productStore
	images        imageStore
	events        eventPublisher
	maxImageBytes int64
}

func NewService(deps ServiceDeps) Service {
	maxBytes := deps.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}
	return &service{
		repo:          deps.ProductRepo,
		images:        deps.Images,
		events:        deps.Events,
		maxImageBytes: maxBytes,
	}
}

func (s *service) Create(ctx context.Context, actor domain.Actor, req domain.CreateProductRequest) (*domain.Product, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	req.Price = strings.TrimSpace(req.Price)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &domain.Product{
		ProductID:   id.New(),
		UserID:      actor.UserID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("store product: %w", err)
	}
	s.publish(ctx, EventCreated, p)
	return p, nil
}

func (s *service) List(ctx context.Context, category string) ([]domain.Product, error) {
	category = strings.TrimSpace(category)
	if category == domain.CategoryAll {
		category = ""
	}
	return s.repo.List(ctx, category)
}

func (s *service) Get(ctx context.Context, productID string) (*domain.Product, error) {
	return s.repo.Get(ctx, productID)
}

func (s *service) ListByOwner(ctx context.Context, userID string) ([]domain.Product, error) {
	return s.repo.ListByOwner(ctx, userID)
}

func (s *service) Update(ctx context.Context, actor domain.Actor, productID string, req domain.UpdateProductRequest) (*domain.Product, error) {
	for _, f := range []**string{&req.Title, &req.Price, &req.Category} {
		if *f != nil {
			trimmed := strings.TrimSpace(**f)
			*f = &trimmed
		}
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	p, err := s.authorize(ctx, actor, productID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Title != nil {
		updates[domain.FieldTitle] = *req.Title
	}
	if req.Description != nil {
		updates[domain.FieldDescription] = *req.Description
	}
	if req.Price != nil {
		updates[domain.FieldPrice] = *req.Price
	}
	if req.Category != nil {
		updates[domain.FieldCategory] = *req.Category
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := s.repo.Update(ctx, productID, updates); err != nil {
		return nil, err
	}
	updated, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventUpdated, updated)
	return updated, nil
}

func (s *service) Delete(ctx context.Context, actor domain.Actor, productID string) error {
	p, err := s.authorize(ctx, actor, productID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, productID); err != nil {
		return err
	}
	if p.ImageKey != nil {
		s.removeImage(ctx, *p.ImageKey)
	}
	s.publish(ctx, EventDeleted, p)
	return nil
}

func (s *service) AttachImage(ctx context.Context, actor domain.Actor, productID string, img ImageUpload) (*domain.Product, error) {
	if s.images == nil {
		return nil, errors.New("image storage is not configured")
	}
	p, err := s.authorize(ctx, actor, productID)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(img.Reader, s.maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image is empty: %w", domain.ErrBadRequest)
	}
	if int64(len(data)) > s.maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes: %w", s.maxImageBytes, domain.ErrBadRequest)
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExt[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported image type %q: %w", contentType, domain.ErrBadRequest)
	}
	key := fmt.Sprintf("products/%s/%s%s", productID, uuid.NewString(), ext)
	if err := s.images.Upload(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, productID, map[string]interface{}{domain.FieldImageKey: key}); err != nil {
		s.removeImage(ctx, key)
		return nil, err
	}
	if p.ImageKey != nil {
		s.removeImage(ctx, *p.ImageKey)
	}
	updated, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventUpdated, updated)
	return updated, nil
}

func (s *service) Image(ctx context.Context, productID string) (io.ReadCloser, string, error) {
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, "", err
	}
	if p.ImageKey == nil || s.images == nil {
		return nil, "", fmt.Errorf("product has no image: %w", domain.ErrNotFound)
	}
	return s.images.Download(ctx, *p.ImageKey)
}

// authorize loads the product and checks that actor may change it.
func (s *service) authorize(ctx context.Context, actor domain.Actor, productID string) (*domain.Product, error) {
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !actor.CanModify(p) {
		return nil, fmt.Errorf("product belongs to another user: %w", domain.ErrForbidden)
	}
	return p, nil
}

func (s *service) removeImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		slog.Warn("failed to delete product image", "key", key, "err", err)
	}
}

func (s *service) publish(ctx context.Context, eventType string, p *domain.Product) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, p); err != nil {
		slog.Warn("failed to publish catalog event", "event", eventType, "product_id", p.ProductID, "err", err)
	}
}
