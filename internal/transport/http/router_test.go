package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bucket-api/internal/config"
	"github.com/bucket-api/internal/domain"
	"github.com/bucket-api/internal/infrastructure/memory"
	"github.com/bucket-api/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var codePattern = regexp.MustCompile(`\b\d{4}\b`)

// captureMailer records the last code mailed to each address.
type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendEmail(to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = codePattern.FindString(body)
	return nil
}

func (m *captureMailer) last(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

func newTestServer(t *testing.T) (*httptest.Server, *captureMailer) {
	t.Helper()
	cfg := &config.Config{
		AllowedOrigins:     []string{"*"},
		OTPTTL:             10 * time.Minute,
		BcryptCost:         bcrypt.MinCost,
		RefreshTokenExpiry: time.Hour,
		RateLimitRPS:       100,
		RateLimitBurst:     100,
		MaxImageBytes:      1 << 20,
	}
	mailer := &captureMailer{codes: make(map[string]string)}
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	srv := httptest.NewServer(NewRouter(cfg, &Deps{
		UserRepo:    memory.NewUserRepo(),
		SessionRepo: memory.NewSessionRepo(),
		ProductRepo: memory.NewProductRepo(),
		OTPRegistry: memory.NewOTPRegistry(),
		Images:      memory.NewImageStore(),
		Mailer:      mailer,
		Metrics:     reg,
	}))
	t.Cleanup(srv.Close)
	return srv, mailer
}

func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestOTP_ReissueInvalidatesPreviousCode(t *testing.T) {
	srv, mailer := newTestServer(t)
	api := srv.URL + "/api/v1"

	resp, body := doJSON(t, http.MethodPost, api+"/otp/issue", map[string]string{"email": "a@b.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OTP sent to your email", body["message"])
	first := mailer.last("a@b.com")
	require.Len(t, first, 4)

	// Force a different second code.
	var second string
	for i := 0; i < 20; i++ {
		resp, _ = doJSON(t, http.MethodPost, api+"/otp/issue", map[string]string{"email": "a@b.com"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		if second = mailer.last("a@b.com"); second != first {
			break
		}
	}
	require.NotEqual(t, first, second)

	resp, body = doJSON(t, http.MethodPost, api+"/otp/verify", map[string]string{"email": "a@b.com", "code": first})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid OTP", body["error"])

	resp, body = doJSON(t, http.MethodPost, api+"/otp/verify", map[string]string{"email": "a@b.com", "code": second})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OTP verified successfully", body["message"])
}

func TestOTP_IssueRejectsBadEmail(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/otp/issue", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	api := srv.URL + "/api/v1"
	creds := map[string]string{"email": "u@x.com", "password": "pw123"}

	resp, body := doJSON(t, http.MethodPost, api+"/users", creds)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.NotEmpty(t, body["id"])

	resp, _ = doJSON(t, http.MethodPost, api+"/users", creds)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, api+"/sessions", creds)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Login successful", body["message"])
	assert.Nil(t, body["Bearer"], "no tokens without a key pair")

	resp, body = doJSON(t, http.MethodPost, api+"/sessions", map[string]string{"email": "u@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", body["error"])

	resp, body = doJSON(t, http.MethodPost, api+"/sessions", map[string]string{"email": "nobody@x.com", "password": "pw123"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid email or password", body["error"])
}

func TestRegister_EmptyFields(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, creds := range []map[string]string{
		{"email": "", "password": "pw123"},
		{"email": "u@x.com", "password": ""},
	} {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", creds)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Email and password are required", body["error"])
	}
}

func TestRegister_MultibytePasswordOverBcryptLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/users", map[string]string{
		"email":    "m@x.com",
		"password": strings.Repeat("€", 30),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEqual(t, "Error inserting user", body["error"])
}

func TestSessionRoutes_WithoutKeyPair_Unauthorized(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProductLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	api := srv.URL + "/api/v1"

	resp, body := doJSON(t, http.MethodPost, api+"/products", map[string]string{
		"title": "Mug", "description": "Blue mug", "price": "9.50", "category": "Kitchen",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Product added successfully", body["message"])
	created, ok := body["product"].(map[string]interface{})
	require.True(t, ok)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)

	_, _ = doJSON(t, http.MethodPost, api+"/products", map[string]string{
		"title": "Lamp", "description": "Desk lamp", "price": "20", "category": "Home",
	})

	var list []domain.Product
	res, err := http.Get(api + "/products?category=Kitchen")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	res.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, "Mug", list[0].Title)

	res, err = http.Get(api + "/products?category=All")
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	res.Body.Close()
	assert.Len(t, list, 2)

	resp, body = doJSON(t, http.MethodPut, api+"/products/"+id, map[string]string{"price": "11"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Product updated successfully!", body["message"])
	updated, _ := body["product"].(map[string]interface{})
	assert.Equal(t, "11", updated["price"])

	resp, _ = doJSON(t, http.MethodPut, api+"/products/"+id, map[string]string{"price": "eleven"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, http.MethodDelete, api+"/products/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Product deleted successfully!", body["message"])

	resp, _ = doJSON(t, http.MethodGet, api+"/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/health-check/ping", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", body["message"])

	res, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, buf.String(), "http_requests_total")
}
