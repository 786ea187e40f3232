// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

// Package validation wraps go-playground/validator v10 with a singleton
// instance and the engagement-specific rules.
//
// Two custom tags are registered:
//
//	contentid    1-128 chars, no '.', '*', '>', '/' or whitespace
//	commenttext  non-empty after trimming, at most 1000 runes
//
// Both are also exposed as plain functions (ValidContentID,
// ValidateCommentText) for call sites that validate a single value.
//
//	type likeRequest struct {
//	    ContentID string `validate:"required,contentid"`
//	}
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    // verr.First().Field(), verr.Error()
//	}
package validation
