package product

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/bucket-api/internal/domain"
	"github.com/bucket-api/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, eventType string, p *domain.Product) error {
	return m.Called(ctx, eventType, p).Error(0)
}

// pngHeader is enough for http.DetectContentType to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func ptr[T any](v T) *T { return &v }

type fixture struct {
	repo   *memory.ProductRepo
	images *memory.ImageStore
	events *mockPublisher
	svc    Service
}

func newFixture() *fixture {
	f := &fixture{repo: memory.NewProductRepo(), images: memory.NewImageStore(), events: &mockPublisher{}}
	f.events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.svc = NewService(ServiceDeps{ProductRepo: f.repo, Images: f.images, Events: f.events, MaxImageBytes: 1024})
	return f
}

func shoe() domain.CreateProductRequest {
	return domain.CreateProductRequest{Title: "Runner", Description: "Light shoe", Price: "49.99", Category: "Shoes"}
}

// --- Create / List ---

func TestCreate_AssignsOwnerAndPublishes(t *testing.T) {
	f := newFixture()
	p, err := f.svc.Create(context.Background(), domain.Actor{UserID: "u1"}, shoe())

	require.NoError(t, err)
	assert.NotEmpty(t, p.ProductID)
	assert.Equal(t, "u1", p.UserID)
	assert.Equal(t, "49.99", p.Price)
	f.events.AssertCalled(t, "Publish", mock.Anything, EventCreated, p)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	req := shoe()
	req.Price = "cheap"
	_, err := f.svc.Create(context.Background(), domain.Actor{}, req)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	req = shoe()
	req.Title = "  "
	_, err = f.svc.Create(context.Background(), domain.Actor{}, req)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	f.events.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestList_AllDisablesFilter(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.svc.Create(ctx, domain.Actor{}, shoe())
	require.NoError(t, err)
	beauty := shoe()
	beauty.Category = "Beauty"
	_, err = f.svc.Create(ctx, domain.Actor{}, beauty)
	require.NoError(t, err)

	all, err := f.svc.List(ctx, domain.CategoryAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, none, 2)

	only, err := f.svc.List(ctx, "Beauty")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "Beauty", only[0].Category)
}

// --- Update / Delete ---

func TestUpdate_PartialFields(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, domain.Actor{UserID: "u1"}, shoe())
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, domain.Actor{UserID: "u1"}, p.ProductID, domain.UpdateProductRequest{Price: ptr("39.99")})
	require.NoError(t, err)
	assert.Equal(t, "39.99", updated.Price)
	assert.Equal(t, "Runner", updated.Title)
	f.events.AssertCalled(t, "Publish", mock.Anything, EventUpdated, mock.Anything)
}

func TestUpdate_BlankFieldsRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, domain.Actor{UserID: "u1"}, shoe())
	require.NoError(t, err)

	for _, req := range []domain.UpdateProductRequest{
		{Title: ptr("   ")},
		{Category: ptr("\t")},
		{Price: ptr(" ")},
	} {
		_, err := f.svc.Update(ctx, domain.Actor{UserID: "u1"}, p.ProductID, req)
		assert.True(t, errors.Is(err, domain.ErrBadRequest), "%+v", req)
	}
	stored, err := f.svc.Get(ctx, p.ProductID)
	require.NoError(t, err)
	assert.Equal(t, "Runner", stored.Title)

	updated, err := f.svc.Update(ctx, domain.Actor{UserID: "u1"}, p.ProductID, domain.UpdateProductRequest{Title: ptr("  Trail  ")})
	require.NoError(t, err)
	assert.Equal(t, "Trail", updated.Title)
}

func TestUpdate_OtherUserForbidden_AdminAllowed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, domain.Actor{UserID: "u1"}, shoe())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, domain.Actor{UserID: "u2", Role: domain.RoleUser}, p.ProductID, domain.UpdateProductRequest{Title: ptr("Mine now")})
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = f.svc.Update(ctx, domain.Actor{}, p.ProductID, domain.UpdateProductRequest{Title: ptr("Anon")})
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	updated, err := f.svc.Update(ctx, domain.Actor{UserID: "root", Role: domain.RoleAdmin}, p.ProductID, domain.UpdateProductRequest{Title: ptr("Curated")})
	require.NoError(t, err)
	assert.Equal(t, "Curated", updated.Title)
}

func TestUpdate_UnownedOpenToAnyone(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, domain.Actor{}, shoe())
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, domain.Actor{UserID: "u9"}, p.ProductID, domain.UpdateProductRequest{Category: ptr("Sale")})
	require.NoError(t, err)
	assert.Equal(t, "Sale", updated.Category)
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Update(context.Background(), domain.Actor{}, "missing", domain.UpdateProductRequest{Title: ptr("x")})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDelete_RemovesProductAndImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	owner := domain.Actor{UserID: "u1"}
	p, err := f.svc.Create(ctx, owner, shoe())
	require.NoError(t, err)
	_, err = f.svc.AttachImage(ctx, owner, p.ProductID, ImageUpload{Reader: bytes.NewReader(pngHeader), Filename: "a.png"})
	require.NoError(t, err)
	require.Len(t, f.images.Keys(), 1)

	require.NoError(t, f.svc.Delete(ctx, owner, p.ProductID))

	_, err = f.svc.Get(ctx, p.ProductID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Empty(t, f.images.Keys())
	f.events.AssertCalled(t, "Publish", mock.Anything, EventDeleted, mock.Anything)
}

func TestPublishFailure_DoesNotFailOperation(t *testing.T) {
	events := &mockPublisher{}
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("sns down"))
	svc := NewService(ServiceDeps{ProductRepo: memory.NewProductRepo(), Events: events})

	_, err := svc.Create(context.Background(), domain.Actor{}, shoe())
	assert.NoError(t, err)
	events.AssertExpectations(t)
}

// --- Images ---

func TestAttachImage_StoresUnderProductPrefix(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, domain.Actor{}, shoe())
	require.NoError(t, err)

	updated, err := f.svc.AttachImage(ctx, domain.Actor{}, p.ProductID, ImageUpload{Reader: bytes.NewReader(pngHeader), Filename: "photo.png"})
	require.NoError(t, err)
	require.NotNil(t, updated.ImageKey)
	assert.True(t, strings.HasPrefix(*updated.ImageKey, "products/"+p.ProductID+"/"))
	assert.True(t, strings.HasSuffix(*updated.ImageKey, ".png"))

	rc, contentType, err := f.svc.Image(ctx, p.ProductID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, pngHeader, body)
}

func TestAttachImage_ReplacesPreviousObject(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, domain.Actor{}, shoe())
	require.NoError(t, err)

	first, err := f.svc.AttachImage(ctx, domain.Actor{}, p.ProductID, ImageUpload{Reader: bytes.NewReader(pngHeader)})
	require.NoError(t, err)
	second, err := f.svc.AttachImage(ctx, domain.Actor{}, p.ProductID, ImageUpload{Reader: bytes.NewReader(pngHeader)})
	require.NoError(t, err)

	assert.NotEqual(t, *first.ImageKey, *second.ImageKey)
	assert.Equal(t, []string{*second.ImageKey}, f.images.Keys())
}

func TestAttachImage_RejectsNonImageAndOversize(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, domain.Actor{}, shoe())
	require.NoError(t, err)

	_, err = f.svc.AttachImage(ctx, domain.Actor{}, p.ProductID, ImageUpload{Reader: strings.NewReader("plain text, not an image")})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	big := append(append([]byte{}, pngHeader...), make([]byte, 2048)...)
	_, err = f.svc.AttachImage(ctx, domain.Actor{}, p.ProductID, ImageUpload{Reader: bytes.NewReader(big)})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	_, err = f.svc.AttachImage(ctx, domain.Actor{}, p.ProductID, ImageUpload{Reader: bytes.NewReader(nil)})
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	assert.Empty(t, f.images.Keys())
}

func TestImage_NoImage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.svc.Create(ctx, domain.Actor{}, shoe())
	require.NoError(t, err)

	_, _, err = f.svc.Image(ctx, p.ProductID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
