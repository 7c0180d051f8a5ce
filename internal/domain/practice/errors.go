package practice

import (
	"errors"
	"net/http"

	"github.com/dsatschool/delta-api/internal/pkg/errorhandler"
)

var (
	ErrQuestionNotFound     = errors.New("question not found")
	ErrSessionNotFound      = errors.New("practice session not found")
	ErrSessionNotActive     = errors.New("practice session is not active")
	ErrAlreadyAnswered      = errors.New("question already answered in this session")
	ErrQuestionNotInSession = errors.New("question is not part of this session")
	ErrNoQuestions          = errors.New("no questions match the selected filters")
	ErrInvalidFilter        = errors.New("invalid question filter")
	ErrInternal             = errors.New("internal practice error")
)

// HTTPErrorRules maps practice errors to responses
var HTTPErrorRules = []errorhandler.Rule{
	{Target: ErrQuestionNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Target: ErrSessionNotFound, Status: http.StatusNotFound, Code: "NOT_FOUND"},
	{Target: ErrSessionNotActive, Status: http.StatusConflict, Code: "CONFLICT"},
	{Target: ErrAlreadyAnswered, Status: http.StatusConflict, Code: "CONFLICT"},
	{Target: ErrQuestionNotInSession, Status: http.StatusBadRequest, Code: "VALIDATION_FAILED"},
	{Target: ErrNoQuestions, Status: http.StatusBadRequest, Code: "VALIDATION_FAILED"},
	{Target: ErrInvalidFilter, Status: http.StatusBadRequest, Code: "VALIDATION_FAILED"},
}
