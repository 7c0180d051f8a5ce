package errorhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/dsatschool/delta-api/internal/pkg/logger"
	"github.com/dsatschool/delta-api/internal/pkg/response"
)

// Rule maps a sentinel error to an HTTP status and envelope code.
type Rule struct {
	Target error
	Status int
	Code   string
}

// Handle writes the response for err using the first rule whose target matches
// via errors.Is. Unmatched errors are logged and reported as 500.
func Handle(ctx context.Context, w http.ResponseWriter, err error, rules []Rule) {
	for _, rule := range rules {
		if errors.Is(err, rule.Target) {
			if rule.Status >= http.StatusInternalServerError {
				logError(ctx, rule.Status, rule.Code, err)
			} else {
				log.Debug().
					Str("request_id", logger.RequestID(ctx)).
					Str("error_code", rule.Code).
					Err(err).
					Msg("request rejected")
			}
			response.Error(w, rule.Status, rule.Code, err.Error())
			return
		}
	}

	logError(ctx, http.StatusInternalServerError, "INTERNAL_ERROR", err)
	response.InternalError(w)
}

// HandlePanicError logs a recovered panic with its stack and sends a 500
func HandlePanicError(ctx context.Context, w http.ResponseWriter, panicErr interface{}, stackTrace string) {
	log.Error().
		Str("request_id", logger.RequestID(ctx)).
		Interface("panic_error", panicErr).
		Str("panic_stack", stackTrace).
		Msg("Request panic error")

	response.InternalError(w)
}

// LogValidationError logs validation errors with details
func LogValidationError(ctx context.Context, fieldErrors map[string]string) {
	errJSON, _ := json.Marshal(fieldErrors)
	log.Warn().
		Str("request_id", logger.RequestID(ctx)).
		RawJSON("validation_errors", errJSON).
		Msg("Validation error")
}

func logError(ctx context.Context, status int, code string, err error) {
	log.Error().
		Str("request_id", logger.RequestID(ctx)).
		Str("error_code", code).
		Int("status_code", status).
		Err(err).
		Msg("Request error")
}
