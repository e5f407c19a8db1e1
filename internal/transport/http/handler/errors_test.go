package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bucket-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPError_MapsSentinels(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{fmt.Errorf("field 'email' failed 'required': %w", domain.ErrBadRequest), http.StatusBadRequest, "field 'email' failed 'required'"},
		{fmt.Errorf("session expired: %w", domain.ErrUnauthorized), http.StatusUnauthorized, "session expired"},
		{fmt.Errorf("product belongs to another user: %w", domain.ErrForbidden), http.StatusForbidden, "product belongs to another user"},
		{domain.ErrNotFound, http.StatusNotFound, "not found"},
		{fmt.Errorf("email already registered: %w", domain.ErrConflict), http.StatusConflict, "email already registered"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		httpError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err, "fallback")
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		var body MessageEnvelope
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, tc.message, body.Error)
	}
}

func TestHTTPError_UnclassifiedHidesDetail(t *testing.T) {
	for _, err := range []error{
		errors.New("dial tcp 10.0.0.1:5432: connection refused"),
		fmt.Errorf("send otp email: %w: smtp 421", domain.ErrDelivery),
	} {
		rr := httptest.NewRecorder()
		httpError(rr, httptest.NewRequest(http.MethodGet, "/", nil), err, "Server error")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		var body MessageEnvelope
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "Server error", body.Error)
	}
}
