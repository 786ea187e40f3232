// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/models"
)

// Error codes for API responses
const (
	ErrCodeAuthentication     = "AUTHENTICATION_ERROR"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// defaultRetryAfter is sent with a 503 when the error carries no hint.
const defaultRetryAfter = 5 * time.Second

// respondJSON writes response as JSON with the given status.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondError writes an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondServiceError maps an ingestion or store error onto the HTTP error
// taxonomy:
//
//	AuthError          -> 401 AUTHENTICATION_ERROR
//	ValidationError    -> 400 VALIDATION_ERROR
//	ServiceUnavailable -> 503 SERVICE_UNAVAILABLE with Retry-After
//	anything else      -> 500 INTERNAL_ERROR
//
// Internal error text is logged, never returned.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		authErr  *models.AuthError
		validErr *models.ValidationError
		unavail  *models.ServiceUnavailableError
	)

	switch {
	case errors.As(err, &authErr):
		w.Header().Set("WWW-Authenticate", `Bearer realm="engagecast"`)
		respondError(w, http.StatusUnauthorized, ErrCodeAuthentication, authErr.Reason, nil)

	case errors.As(err, &validErr):
		var details map[string]interface{}
		if validErr.Field != "" {
			details = map[string]interface{}{"field": validErr.Field}
		}
		respondError(w, http.StatusBadRequest, ErrCodeValidation, validErr.Message, details)

	case errors.As(err, &unavail):
		retryAfter := unavail.RetryAfter
		if retryAfter <= 0 {
			retryAfter = defaultRetryAfter
		}
		seconds := int(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Service unavailable")
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"engagement queue is temporarily unavailable, retry later",
			map[string]interface{}{"retryAfterSeconds": seconds})

	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error", nil)
	}
}
