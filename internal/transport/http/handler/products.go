package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/bucket-api/internal/application/product"
	"github.com/bucket-api/internal/domain"
	"github.com/bucket-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// multipart framing allowance on top of the image size limit
const multipartOverhead = 1 << 20

// ProductHandler handles catalog endpoints.
type ProductHandler struct {
	svc            product.Service
	maxUploadBytes int64
}

func NewProductHandler(svc product.Service, maxImageBytes int64) *ProductHandler {
	return &ProductHandler{svc: svc, maxUploadBytes: maxImageBytes + multipartOverhead}
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		httpError(w, r, err, "Failed to fetch products")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(products))
}

func (h *ProductHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListByOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err, "Failed to fetch products")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(products))
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err, "Failed to fetch products")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.Create(r.Context(), actorFrom(r), req)
	if err != nil {
		httpError(w, r, err, "Failed to store product")
		return
	}
	writeJSON(w, http.StatusCreated, ProductEnvelope{Message: "Product added successfully", Product: p})
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.svc.Update(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		httpError(w, r, err, "Failed to update product")
		return
	}
	writeJSON(w, http.StatusOK, ProductEnvelope{Message: "Product updated successfully!", Product: p})
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), actorFrom(r), chi.URLParam(r, "id")); err != nil {
		httpError(w, r, err, "Failed to delete product")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Product deleted successfully!"})
}

func (h *ProductHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image field is required")
		return
	}
	defer file.Close()

	p, err := h.svc.AttachImage(r.Context(), actorFrom(r), chi.URLParam(r, "id"), product.ImageUpload{
		Reader:   file,
		Filename: header.Filename,
	})
	if err != nil {
		httpError(w, r, err, "Failed to update product")
		return
	}
	writeJSON(w, http.StatusOK, ProductEnvelope{Message: "Product updated successfully!", Product: p})
}

func (h *ProductHandler) Image(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.svc.Image(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, r, err, "Failed to fetch products")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		slog.WarnContext(r.Context(), "failed to stream product image", "err", err)
	}
}

// actorFrom builds the caller identity from JWT claims. Requests without
// claims act anonymously.
func actorFrom(r *http.Request) domain.Actor {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return domain.Actor{}
	}
	return domain.Actor{UserID: claims.UserID, Role: claims.Role}
}

func nonNil(products []domain.Product) []domain.Product {
	if products == nil {
		return []domain.Product{}
	}
	return products
}
