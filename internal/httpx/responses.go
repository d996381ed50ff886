package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
	"swapiapi/internal/logging"
)

// MessageResponse is the body of accepted import requests.
type MessageResponse struct {
	Message string `json:"message"`
}

// DetailResponse is the error envelope. Errors is only set for 400s.
type DetailResponse struct {
	Detail string              `json:"detail"`
	Errors []apperr.FieldError `json:"errors,omitempty"`
}

// DeniedResponse is returned by the rate limiter.
type DeniedResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func JSONMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, MessageResponse{Message: message})
}

func JSONDetail(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, DetailResponse{Detail: detail})
}

// WriteError maps an error class to its status code and envelope. Anything
// outside the taxonomy is logged and answered with a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalid  *apperr.InvalidQueryError
		notFound *apperr.NotFoundError
		upstream *apperr.UpstreamUnavailableError
	)

	switch {
	case errors.As(err, &invalid):
		JSON(w, http.StatusBadRequest, DetailResponse{Detail: invalid.Error(), Errors: invalid.Fields})
	case errors.As(err, &notFound):
		JSONDetail(w, http.StatusNotFound, entity.Kind(notFound.Kind).Singular()+" not found")
	case errors.As(err, &upstream):
		logging.FromContext(r.Context()).Warn().Err(err).Msg("upstream unavailable")
		JSONDetail(w, http.StatusBadGateway, fmt.Sprintf("Failed to import %s from SWAPI.", upstream.Kind))
	default:
		logging.FromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		JSONDetail(w, http.StatusInternalServerError, "Internal server error")
	}
}
