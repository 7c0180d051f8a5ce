package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/dsatschool/delta-api/internal/config"
	"github.com/dsatschool/delta-api/internal/domain/realtime"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                 "test",
		JWTSecret:           "test-secret",
		JWTAccessTTL:        time.Minute,
		JWTRefreshTTL:       time.Hour,
		LeaderboardCacheTTL: time.Second,
		MetricsEnabled:      true,
	}
}

func TestRouterMountsProtectedRoutes(t *testing.T) {
	hub := realtime.NewHub(nil)
	router := newRouter(testConfig(), sqlx.NewDb(nil, "postgres"), nil, hub, nil)

	protected := []struct{ method, path string }{
		{http.MethodGet, "/api/delta/balance"},
		{http.MethodPost, "/api/delta/transfer"},
		{http.MethodGet, "/api/admin/delta/transactions"},
		{http.MethodPost, "/api/practice/sessions"},
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/ws/wallet"},
	}
	for _, tc := range protected {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRouterServesMetrics(t *testing.T) {
	router := newRouter(testConfig(), sqlx.NewDb(nil, "postgres"), nil, realtime.NewHub(nil), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
