package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/bucket-api/internal/application/user"
	"github.com/bucket-api/internal/domain"
)

// UserHandler handles account registration.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		httpError(w, r, err, "Error inserting user")
		return
	}
	writeJSON(w, http.StatusCreated, CreatedEnvelope{Message: "User registered successfully", ID: u.UserID})
}
