package practice

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dsatschool/delta-api/internal/middleware"
	"github.com/dsatschool/delta-api/internal/pkg/errorhandler"
	"github.com/dsatschool/delta-api/internal/pkg/response"
	"github.com/dsatschool/delta-api/internal/pkg/validator"
)

// Handler serves /api/practice
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the practice router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/questions/{id}", h.GetQuestion)
	r.Put("/questions/{id}/mastered", h.flag(h.service.SetMastered))
	r.Delete("/questions/{id}/mastered", h.flag(h.service.UnsetMastered))
	r.Put("/questions/{id}/marked", h.flag(h.service.SetMarked))
	r.Delete("/questions/{id}/marked", h.flag(h.service.UnsetMarked))

	r.Post("/sessions", h.StartSession)
	r.Get("/sessions/{id}", h.GetSession)
	r.Post("/sessions/{id}/answers", h.SubmitAnswer)
	r.Post("/sessions/{id}/complete", h.CompleteSession)

	return r
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	errorhandler.Handle(r.Context(), w, err, HTTPErrorRules)
}

func idParam(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// GetQuestion handles GET /practice/questions/{id}
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "question")
	if !ok {
		return
	}
	view, err := h.service.GetQuestion(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewQuestionResponse(view))
}

func (h *Handler) flag(apply func(ctx context.Context, userID, questionID uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "question")
		if !ok {
			return
		}
		if err := apply(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
			h.fail(w, r, err)
			return
		}
		response.NoContent(w)
	}
}

// StartSession handles POST /practice/sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}

	session, err := h.service.StartSession(r.Context(), middleware.GetUserID(r.Context()), req.Filters(), req.Resume)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.Created(w, NewSessionResponse(session))
}

// GetSession handles GET /practice/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "session")
	if !ok {
		return
	}
	session, err := h.service.GetSession(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewSessionResponse(session))
}

// SubmitAnswer handles POST /practice/sessions/{id}/answers
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := idParam(w, r, "session")
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		errorhandler.LogValidationError(r.Context(), errs)
		response.ValidationError(w, errs)
		return
	}
	questionID, _ := uuid.Parse(req.QuestionID)

	res, err := h.service.SubmitAnswer(r.Context(), middleware.GetUserID(r.Context()), sessionID, questionID, req.Answer, req.TimeTaken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewAnswerResponse(res))
}

// CompleteSession handles POST /practice/sessions/{id}/complete
func (h *Handler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "session")
	if !ok {
		return
	}
	done, err := h.service.CompleteSession(r.Context(), middleware.GetUserID(r.Context()), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	response.OK(w, NewCompletionResponse(done))
}
