// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/validation"
)

// maxBodyBytes bounds request bodies. A 1000-rune comment is at most 4000
// bytes of UTF-8 before JSON escaping.
const maxBodyBytes = 64 << 10

// validateRequest validates a struct using go-playground/validator and
// converts the first failure into a models.ValidationError.
func validateRequest(v interface{}) error {
	verr := validation.ValidateStruct(v)
	if verr == nil {
		return nil
	}
	first := verr.First()
	if first == nil {
		return &models.ValidationError{Message: verr.Error()}
	}
	return &models.ValidationError{Field: fieldName(first.Field()), Message: first.Error()}
}

// decodeJSON reads a bounded JSON body into dst. Unknown fields are
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &models.ValidationError{Message: "request body too large"}
		case errors.Is(err, io.EOF):
			return &models.ValidationError{Message: "request body is required"}
		default:
			return &models.ValidationError{Message: "request body must be valid JSON"}
		}
	}
	return nil
}

// getIntParam parses an optional integer query parameter. A missing value
// yields def; a malformed one is a validation error.
func getIntParam(r *http.Request, key string, def int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &models.ValidationError{Field: key, Message: key + " must be an integer"}
	}
	return n, nil
}

// fieldName converts a struct field name to the name clients see.
func fieldName(s string) string {
	if s == "ContentID" {
		return "contentId"
	}
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
