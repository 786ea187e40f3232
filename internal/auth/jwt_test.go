// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/engagecast/internal/config"
)

const testSecret = "this_is_a_very_long_secret_key_with_32_plus_characters"

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		AuthMode:    "jwt",
		JWTSecret:   testSecret,
		TokenIssuer: "engagecast-test",
		TokenTTL:    time.Hour,
	}
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"valid secret", testSecret, false},
		{"empty secret", "", true},
		{"short secret", "too-short", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testSecurityConfig()
			cfg.JWTSecret = tt.secret
			manager, err := NewJWTManager(cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewJWTManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewJWTManager() unexpected error = %v", err)
			}
			if manager.TTL() != time.Hour {
				t.Errorf("TTL() = %v, want 1h", manager.TTL())
			}
		})
	}
}

func TestNewJWTManager_DefaultTTL(t *testing.T) {
	cfg := testSecurityConfig()
	cfg.TokenTTL = 0
	manager, err := NewJWTManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if manager.TTL() != 24*time.Hour {
		t.Errorf("TTL() = %v, want 24h", manager.TTL())
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatal(err)
	}

	token, err := manager.GenerateToken("user-42", "fan@example.com")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not a compact JWS", token)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "user-42" || claims.Email != "fan@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Issuer != "engagecast-test" {
		t.Errorf("Issuer = %q", claims.Issuer)
	}
}

func TestGenerateToken_RequiresUserID(t *testing.T) {
	manager, _ := NewJWTManager(testSecurityConfig())
	if _, err := manager.GenerateToken("", ""); err == nil {
		t.Error("GenerateToken(\"\") expected error")
	}
}

func TestValidateToken_Rejections(t *testing.T) {
	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatal(err)
	}

	otherCfg := testSecurityConfig()
	otherCfg.JWTSecret = strings.Repeat("x", 40)
	other, _ := NewJWTManager(otherCfg)
	wrongSecret, _ := other.GenerateToken("user-1", "")

	issuerCfg := testSecurityConfig()
	issuerCfg.TokenIssuer = "someone-else"
	foreign, _ := NewJWTManager(issuerCfg)
	wrongIssuer, _ := foreign.GenerateToken("user-1", "")

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "engagecast-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "engagecast-test"},
	}).SignedString([]byte(testSecret))

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "engagecast-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIssuer},
		{"no subject", noSubject},
		{"no expiry", noExpiry},
		{"alg none", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.ValidateToken(tt.token); err == nil {
				t.Error("ValidateToken() expected error")
			}
		})
	}
}

func TestValidateToken_Expired(t *testing.T) {
	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatal(err)
	}
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := manager.GenerateToken("user-1", "")
	if err != nil {
		t.Fatal(err)
	}
	manager.now = time.Now

	_, err = manager.ValidateToken(token)
	if err == nil {
		t.Fatal("ValidateToken() expected expiry error")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("err = %v, want expiry", err)
	}
}
