// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/engagecast/internal/config"
	"github.com/tomtom215/engagecast/internal/models"
)

// AuthMode represents the caller verification strategy.
type AuthMode string

const (
	// AuthModeNone trusts the bearer value as the caller id. Development only.
	AuthModeNone AuthMode = "none"

	// AuthModeJWT verifies HS256 bearer tokens.
	AuthModeJWT AuthMode = "jwt"
)

// ParseAuthMode converts a string to AuthMode.
func ParseAuthMode(s string) (AuthMode, error) {
	switch s {
	case "none":
		return AuthModeNone, nil
	case "jwt", "":
		return AuthModeJWT, nil
	default:
		return "", errors.New("invalid auth mode: " + s)
	}
}

// String returns the string representation of AuthMode.
func (m AuthMode) String() string {
	return string(m)
}

// Standard authentication errors, wrapped in *models.AuthError.
var (
	ErrNoCredentials      = errors.New("no credentials provided")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExpiredCredentials = errors.New("credentials expired")
)

// maxCallerIDLength bounds caller ids accepted in none mode.
const maxCallerIDLength = 256

// Caller is the verified identity behind a request.
type Caller struct {
	UserID string
	Email  string
}

// Verifier turns a credential into a caller.
type Verifier interface {
	Verify(ctx context.Context, credential string) (*Caller, error)
}

// JWTVerifier verifies bearer tokens issued by JWTManager.
type JWTVerifier struct {
	manager *JWTManager
}

// NewJWTVerifier creates a Verifier backed by manager.
func NewJWTVerifier(manager *JWTManager) *JWTVerifier {
	return &JWTVerifier{manager: manager}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, credential string) (*Caller, error) {
	if credential == "" {
		return nil, &models.AuthError{Reason: "missing credential", Err: ErrNoCredentials}
	}

	claims, err := v.manager.ValidateToken(credential)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, &models.AuthError{Reason: "token expired", Err: ErrExpiredCredentials}
		}
		return nil, &models.AuthError{Reason: "invalid token", Err: ErrInvalidCredentials}
	}

	return &Caller{UserID: claims.Subject, Email: claims.Email}, nil
}

// NoneVerifier accepts the credential itself as the caller id.
type NoneVerifier struct{}

// Verify implements Verifier.
func (NoneVerifier) Verify(_ context.Context, credential string) (*Caller, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, &models.AuthError{Reason: "missing credential", Err: ErrNoCredentials}
	}
	if len(credential) > maxCallerIDLength {
		return nil, &models.AuthError{Reason: "caller id too long", Err: ErrInvalidCredentials}
	}
	return &Caller{UserID: credential}, nil
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, credential string) (*Caller, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context, credential string) (*Caller, error) {
	return f(ctx, credential)
}

// NewVerifier builds the Verifier selected by cfg.AuthMode.
func NewVerifier(cfg *config.SecurityConfig) (Verifier, error) {
	mode, err := ParseAuthMode(cfg.AuthMode)
	if err != nil {
		return nil, err
	}

	switch mode {
	case AuthModeNone:
		return NoneVerifier{}, nil
	default:
		manager, err := NewJWTManager(cfg)
		if err != nil {
			return nil, fmt.Errorf("create jwt manager: %w", err)
		}
		return NewJWTVerifier(manager), nil
	}
}

// BearerToken extracts the bearer token from the Authorization header, or
// from the access_token query parameter for WebSocket upgrades where
// browsers cannot set headers.
func BearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
