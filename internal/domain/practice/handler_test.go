package practice

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

	"github.com/dsatschool/delta-api/internal/middleware"
	"github.com/dsatschool/delta-api/internal/pkg/database/dbtest"
	"github.com/dsatschool/delta-api/internal/pkg/jwt"
	"github.com/dsatschool/delta-api/internal/pkg/response"
)

type envelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

func newTestRouter(svc *Service) (http.Handler, *jwt.Service) {
	jwtService := jwt.NewService("test-secret", time.Minute, time.Hour)
	r := chi.NewRouter()
	r.Mount("/api/practice", NewHandler(svc).Routes(middleware.Auth(jwtService)))
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

func TestPracticeRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(NewService(NewRepository(nil), nil))

	rec, _ := doRequest(t, router, http.MethodPost, "/api/practice/sessions", "", StartSessionRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPracticeValidation(t *testing.T) {
	router, j := newTestRouter(NewService(NewRepository(nil), nil))
	tok, err := j.GenerateAccessToken(uuid.New(), middleware.RoleStudent, false)
	require.NoError(t, err)

	rec, env := doRequest(t, router, http.MethodPost, "/api/practice/sessions", tok, StartSessionRequest{QuestionType: "essay", Difficulty: "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "question_type")
	assert.Contains(t, env.Error.Details, "difficulty")

	rec, _ = doRequest(t, router, http.MethodGet, "/api/practice/questions/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = doRequest(t, router, http.MethodPost, "/api/practice/sessions/"+uuid.NewString()+"/answers", tok, SubmitAnswerRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Details, "question_id")
	assert.Contains(t, env.Error.Details, "answer")
}

func TestPracticeFlowOverHTTP(t *testing.T) {
	e := setup(t)
	router, j := newTestRouter(e.svc)
	userID, _ := dbtest.CreateUser(t, e.db, "student")
	tok, err := j.GenerateAccessToken(userID, middleware.RoleStudent, false)
	require.NoError(t, err)
	domain, qs := e.bank(t, 1)

	rec, env := doRequest(t, router, http.MethodGet, "/api/practice/questions/"+qs[0].ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var q map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &q))
	assert.NotContains(t, q, "mcq_answer")
	assert.NotContains(t, q, "explanation")
	assert.Contains(t, q, "options")

	rec, env = doRequest(t, router, http.MethodPost, "/api/practice/sessions", tok, StartSessionRequest{DomainCode: domain})
	require.Equal(t, http.StatusCreated, rec.Code)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &session))
	require.Len(t, session.QuestionIDs, 1)

	answersPath := "/api/practice/sessions/" + session.ID.String() + "/answers"
	rec, env = doRequest(t, router, http.MethodPost, answersPath, tok, SubmitAnswerRequest{QuestionID: qs[0].ID.String(), Answer: "a", TimeTaken: 4})
	require.Equal(t, http.StatusOK, rec.Code)
	var answer AnswerResponse
	require.NoError(t, json.Unmarshal(env.Data, &answer))
	assert.True(t, answer.IsCorrect)
	require.NotNil(t, answer.DeltaEarned)
	assert.Equal(t, "5.00", answer.DeltaEarned.Amount)

	rec, env = doRequest(t, router, http.MethodPost, answersPath, tok, SubmitAnswerRequest{QuestionID: qs[0].ID.String(), Answer: "a"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	rec, env = doRequest(t, router, http.MethodPost, "/api/practice/sessions/"+session.ID.String()+"/complete", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var done CompletionResponse
	require.NoError(t, json.Unmarshal(env.Data, &done))
	assert.Equal(t, StatusCompleted, done.Session.Status)
	assert.Equal(t, "200.00", done.TotalEarned)

	rec, _ = doRequest(t, router, http.MethodPut, "/api/practice/questions/"+qs[0].ID.String()+"/marked", tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = doRequest(t, router, http.MethodDelete, "/api/practice/questions/"+qs[0].ID.String()+"/marked", tok, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
