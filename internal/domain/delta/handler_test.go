package delta

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsatschool/delta-api/internal/domain/user"
	"github.com/dsatschool/delta-api/internal/middleware"
	"github.com/dsatschool/delta-api/internal/pkg/database/dbtest"
	"github.com/dsatschool/delta-api/internal/pkg/jwt"
	"github.com/dsatschool/delta-api/internal/pkg/response"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

func newTestRouter(svc *Service) (http.Handler, *jwt.Service) {
	jwtService := jwt.NewService("test-secret", time.Minute, time.Hour)
	auth := middleware.Auth(jwtService)

	r := chi.NewRouter()
	r.Mount("/api/delta", NewHandler(svc).Routes(auth))
	r.Mount("/api/admin/delta", NewAdminHandler(svc).Routes(auth))
	return r, jwtService
}

func doRequest(t *testing.T, h http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func token(t *testing.T, j *jwt.Service, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := j.GenerateAccessToken(id, role, false)
	require.NoError(t, err)
	return tok
}

func TestHandlerRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(NewService(NewRepository(nil), nil))

	rec, _ := doRequest(t, router, http.MethodGet, "/api/delta/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	router, j := newTestRouter(NewService(NewRepository(nil), nil))
	student := token(t, j, uuid.New(), middleware.RoleStudent)

	rec, _ := doRequest(t, router, http.MethodPost, "/api/admin/delta/wallets/"+uuid.NewString()+"/freeze", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTransferValidation(t *testing.T) {
	router, j := newTestRouter(NewService(NewRepository(nil), nil))
	tok := token(t, j, uuid.New(), middleware.RoleStudent)

	rec, env := doRequest(t, router, http.MethodPost, "/api/delta/transfer", tok, map[string]string{
		"recipient_email": "not-an-email",
		"amount":          "1.001",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "recipient_email")
	assert.Contains(t, env.Error.Details, "amount")
}

func TestEndOfRange(t *testing.T) {
	day, err := parseDate("2026-01-01")
	require.NoError(t, err)
	assert.True(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC).Equal(endOfRange("2026-01-01", day)))

	ts, err := parseDate("2026-01-01T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, ts.Equal(endOfRange("2026-01-01T10:00:00Z", ts)))
}

func TestAdjustRejectsOverflowingAmount(t *testing.T) {
	router, j := newTestRouter(NewService(NewRepository(nil), nil))
	admin := token(t, j, uuid.New(), middleware.RoleAdmin)

	rec, env := doRequest(t, router, http.MethodPost, "/api/admin/delta/wallets/"+uuid.NewString()+"/adjust", admin, map[string]string{
		"direction": "add",
		"amount":    "1e20",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "amount")
}

func TestHandlerFlow(t *testing.T) {
	db := dbtest.Open(t)
	svc := NewService(NewRepository(db), user.NewRepository(db))
	router, j := newTestRouter(svc)

	alice, _ := dbtest.CreateUser(t, db, "student")
	_, bobEmail := dbtest.CreateUser(t, db, "student")
	admin, _ := dbtest.CreateUser(t, db, "admin")
	aliceTok := token(t, j, alice, middleware.RoleStudent)
	adminTok := token(t, j, admin, middleware.RoleAdmin)

	rec, _ := doRequest(t, router, http.MethodPost, "/api/admin/delta/wallets/"+alice.String()+"/adjust", adminTok, map[string]string{
		"direction": "add",
		"amount":    "50.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doRequest(t, router, http.MethodGet, "/api/delta/balance", aliceTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance BalanceResponse
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, "50.00", balance.Balance)
	assert.Equal(t, "50.00 Δ", balance.FormattedBalance)

	rec, env = doRequest(t, router, http.MethodPost, "/api/delta/transfer", aliceTok, map[string]string{
		"recipient_email": bobEmail,
		"amount":          "20",
		"description":     "thanks",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var transfer TransferResponse
	require.NoError(t, json.Unmarshal(env.Data, &transfer))
	assert.Equal(t, "20.00", transfer.Sent.Amount)
	assert.Equal(t, bobEmail, transfer.Sent.RelatedUserEmail)
	assert.Equal(t, "thanks (sent to "+bobEmail+")", transfer.Sent.Description)

	rec, env = doRequest(t, router, http.MethodPost, "/api/delta/transfer", aliceTok, map[string]string{
		"recipient_email": bobEmail,
		"amount":          "1000",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Message, "insufficient balance")

	rec, _ = doRequest(t, router, http.MethodPost, "/api/delta/transfer", aliceTok, map[string]string{
		"recipient_email": "nobody_" + uuid.NewString()[:8] + "@test.local",
		"amount":          "1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = doRequest(t, router, http.MethodGet, "/api/delta/transactions?page_size=1", aliceTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 2, env.Meta.Total)
	assert.Equal(t, 2, env.Meta.Pages)
	assert.True(t, env.Meta.HasNext)

	rec, _ = doRequest(t, router, http.MethodPost, "/api/delta/purchase", aliceTok, map[string]string{
		"product_id": uuid.NewString(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = doRequest(t, router, http.MethodPost, "/api/delta/statements", aliceTok, map[string]string{
		"from": "2026-01-01",
		"to":   "2026-01-31",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
}
