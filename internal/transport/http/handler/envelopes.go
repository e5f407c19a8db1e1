package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bucket-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CreatedEnvelope wraps responses for newly created resources.
type CreatedEnvelope struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// AuthEnvelope wraps login/refresh responses. Token fields are empty when
// sessions are not enabled.
type AuthEnvelope struct {
	Message      string          `json:"message,omitempty"`
	Bearer       string          `json:"Bearer,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	Session      *domain.Session `json:"session,omitempty"`
}

// SessionEnvelope wraps current-session responses.
type SessionEnvelope struct {
	Session *domain.Session `json:"session,omitempty"`
	Message string          `json:"message,omitempty"`
}

// ProductEnvelope wraps single-product mutation responses.
type ProductEnvelope struct {
	Message string          `json:"message"`
	Product *domain.Product `json:"product,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
