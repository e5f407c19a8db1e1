package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bucket-api/internal/application/otp"
	"github.com/bucket-api/internal/domain"
)

// OTPHandler handles one-time code issue and verification.
type OTPHandler struct {
	svc otp.Service
}

func NewOTPHandler(svc otp.Service) *OTPHandler { return &OTPHandler{svc: svc} }

func (h *OTPHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req domain.IssueOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.svc.Issue(r.Context(), req.Email); err != nil {
		httpError(w, r, err, "Failed to send OTP")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent to your email"})
}

func (h *OTPHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ok, err := h.svc.Verify(r.Context(), req.Email, req.Code)
	if err != nil {
		httpError(w, r, err, "Server error")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid OTP")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP verified successfully"})
}
