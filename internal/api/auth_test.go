package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"slotbook/internal/config"

	"github.com/stretchr/testify/assert"
)

func authConfig() config.APIConfig {
	return config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "widget", Extra: "w-secret", Name: "widget", Permissions: []string{"read:slots", "write:bookings"}},
				{Key: "ops", Extra: "o-secret", Name: "ops", Permissions: []string{"admin"}},
				{Key: "all", Extra: "a-secret", Name: "all"},
			},
		},
	}
}

func TestHTTPAuth(t *testing.T) {
	auth := NewHTTPAuth(authConfig())
	handler := auth.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		extra  string
		status int
	}{
		{"health is open", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"missing headers", http.MethodGet, "/api/v1/catalog", "", "", http.StatusUnauthorized},
		{"unknown key", http.MethodGet, "/api/v1/catalog", "nope", "x", http.StatusUnauthorized},
		{"wrong extra", http.MethodGet, "/api/v1/catalog", "widget", "bad", http.StatusUnauthorized},
		{"widget reads slots", http.MethodGet, "/api/v1/slots", "widget", "w-secret", http.StatusOK},
		{"widget books", http.MethodPost, "/api/v1/bookings", "widget", "w-secret", http.StatusOK},
		{"widget cannot list", http.MethodGet, "/api/v1/bookings", "widget", "w-secret", http.StatusForbidden},
		{"widget cannot reload", http.MethodPost, "/api/v1/index/reload", "widget", "w-secret", http.StatusForbidden},
		{"admin lists", http.MethodGet, "/api/v1/bookings", "ops", "o-secret", http.StatusOK},
		{"empty permissions allow all", http.MethodPost, "/api/v1/index/reload", "all", "a-secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
				req.Header.Set("X-API-Extra", tt.extra)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestHTTPAuth_RateLimit(t *testing.T) {
	cfg := config.APIConfig{RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 2}}
	handler := NewHTTPAuth(cfg).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
