// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 == nil {
		t.Fatal("GetValidator() should not return nil")
	}
	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
}

func TestValidContentID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"simple", "vid-123", true},
		{"uuid", "0b6f8f5e-5b0e-4a58-9c0a-3f1f3b3d2a11", true},
		{"underscore", "my_video", true},
		{"unicode", "vídeo", true},
		{"max length", strings.Repeat("a", MaxContentIDLength), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", MaxContentIDLength+1), false},
		{"dot", "a.b", false},
		{"star", "a*", false},
		{"gt", "a>", false},
		{"slash", "a/b", false},
		{"space", "a b", false},
		{"tab", "a\tb", false},
		{"newline", "a\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidContentID(tt.id); got != tt.want {
				t.Errorf("ValidContentID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestValidateCommentText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"ok", "hi", nil},
		{"surrounding whitespace", "  nice video  ", nil},
		{"exact max runes", strings.Repeat("é", MaxCommentLength), nil},
		{"empty", "", ErrCommentEmpty},
		{"whitespace only", " \t\n ", ErrCommentEmpty},
		{"too long", strings.Repeat("x", MaxCommentLength+1), ErrCommentTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateCommentText(tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateCommentText() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

type commentRequest struct {
	ContentID string `validate:"required,contentid"`
	Text      string `validate:"commenttext"`
	Limit     int    `validate:"min=0,max=100"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     commentRequest
		wantField string
		wantTag   string
	}{
		{"valid", commentRequest{ContentID: "vid-1", Text: "hello", Limit: 10}, "", ""},
		{"missing content id", commentRequest{Text: "hello"}, "ContentID", "required"},
		{"bad content id", commentRequest{ContentID: "a.b", Text: "hello"}, "ContentID", "contentid"},
		{"empty text", commentRequest{ContentID: "vid-1", Text: "  "}, "Text", "commenttext"},
		{"limit too high", commentRequest{ContentID: "vid-1", Text: "x", Limit: 101}, "Limit", "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			verr := ValidateStruct(&tt.input)
			if tt.wantField == "" {
				if verr != nil {
					t.Fatalf("unexpected error: %v", verr)
				}
				return
			}
			if verr == nil {
				t.Fatal("expected validation error")
			}
			first := verr.First()
			if first.Field() != tt.wantField || first.Tag() != tt.wantTag {
				t.Errorf("got field=%s tag=%s, want field=%s tag=%s", first.Field(), first.Tag(), tt.wantField, tt.wantTag)
			}
			if verr.Error() == "" {
				t.Error("Error() should not be empty")
			}
		})
	}
}

func TestTranslateMessages(t *testing.T) {
	t.Parallel()

	verr := ValidateStruct(&commentRequest{ContentID: "vid-1", Text: "x", Limit: 101})
	if verr == nil {
		t.Fatal("expected error")
	}
	if got := verr.Error(); got != "Limit must be at most 100" {
		t.Errorf("message = %q", got)
	}
}
