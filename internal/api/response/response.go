// Package response writes JSON bodies and problem documents for handlers.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fogcast/fogcast/internal/api/middleware"
	"github.com/fogcast/fogcast/internal/api/models"
	"github.com/fogcast/fogcast/internal/weather"
)

// JSON writes data with the given status and echoes the request ID.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if id := traceID(r); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes problem as the response, with the request path as instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// BadRequest writes a 400 problem listing the offending fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), detail, fields))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// FromError maps a weather service error to its problem response. Errors
// without a specific mapping are logged and reported as 500 without detail.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	id := traceID(r)

	var problem *models.Problem
	switch {
	case errors.Is(err, weather.ErrInvalidCoordinates),
		errors.Is(err, weather.ErrUnknownView):
		problem = models.NewBadRequest(id, err.Error(), nil)
	case errors.Is(err, weather.ErrUnknownModel),
		errors.Is(err, weather.ErrUnknownPanel):
		problem = models.NewNotFound(id, err.Error())
	case errors.Is(err, weather.ErrSuperseded):
		problem = models.NewSuperseded(id)
	case errors.Is(err, weather.ErrFixtureUnavailable),
		errors.Is(err, weather.ErrSourceUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		problem = models.NewServiceUnavailable(id, "weather data is temporarily unavailable")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("unhandled request error")
		problem = models.NewInternalError(id, "")
	}
	Error(w, r, problem)
}
