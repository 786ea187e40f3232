// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/engagecast/internal/auth"
	"github.com/tomtom215/engagecast/internal/config"
	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// sharedStore keeps one in-memory store alive across the Close calls each
// command makes.
type sharedStore struct {
	store.AggregateStore
}

func (sharedStore) Close() error { return nil }

type testEnv struct {
	opts  *RootOptions
	store store.AggregateStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewBadgerStore(store.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadgerStore() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	opts := &RootOptions{
		LoadConfig: func() (*config.Config, error) {
			return &config.Config{Security: config.SecurityConfig{
				JWTSecret:   testSecret,
				TokenIssuer: "engagecast-test",
				TokenTTL:    time.Hour,
			}}, nil
		},
		OpenStore: func(context.Context, config.StoreConfig) (store.AggregateStore, error) {
			return sharedStore{st}, nil
		},
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	}
	return &testEnv{opts: opts, store: st}
}

// run executes engagectl with args and returns stdout, stderr and the error.
func (e *testEnv) run(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommandWithOptions(e.opts)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeCLIResponse(t *testing.T, out string, data interface{}) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status = %q, want ok", resp.Status)
	}
	if err := json.Unmarshal(resp.Data, data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "engagectl" {
		t.Errorf("Use = %q", cmd.Use)
	}
	for _, name := range []string{"show", "comments", "reconcile", "dlq", "token"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, sub, err)
		}
	}

	format := cmd.PersistentFlags().Lookup("format")
	if format == nil || format.DefValue != "text" {
		t.Errorf("--format default = %v", format)
	}
	if v := cmd.PersistentFlags().Lookup("verbose"); v == nil || v.Shorthand != "v" {
		t.Errorf("--verbose flag = %v", v)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run("show", "video-1", "--format", "yaml")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("err = %v, want invalid format", err)
	}
}

func TestShow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.store.ApplyLike(ctx, "video-1", "alice", time.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := env.store.ApplyView(ctx, "video-1", "bob", time.Now()); err != nil {
		t.Fatal(err)
	}

	out, _, err := env.run("show", "video-1")
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	for _, want := range []string{"Content:  video-1", "Likes:    1", "Views:    1", "Comments: 0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, _, err = env.run("show", "video-1", "--format", "json")
	if err != nil {
		t.Fatalf("show --format json error = %v", err)
	}
	var item models.ContentItem
	decodeCLIResponse(t, out, &item)
	if item.LikeCount != 1 || item.ViewCount != 1 {
		t.Errorf("item = %+v", item)
	}
}

func TestShow_InvalidContentID(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run("show", "bad id!")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitCommandError)
	}
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second", "third"} {
		c := &models.Comment{
			ContentID: "video-1",
			CommentID: "c-" + text,
			UserID:    "alice",
			Text:      text,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := env.store.ApplyComment(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr int
	}{
		{"newest first", []string{"comments", "video-1", "--format", "json"}, []string{"third", "second", "first"}, 0},
		{"limit", []string{"comments", "video-1", "-n", "2", "--format", "json"}, []string{"third", "second"}, 0},
		{"negative limit", []string{"comments", "video-1", "--limit", "-1"}, nil, ExitCommandError},
		{"unknown content", []string{"comments", "video-9", "--format", "json"}, []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := env.run(tt.args...)
			if tt.wantErr != 0 {
				if GetExitCode(err) != tt.wantErr {
					t.Fatalf("exit code = %d (%v), want %d", GetExitCode(err), err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			var comments []models.Comment
			decodeCLIResponse(t, out, &comments)
			if len(comments) != len(tt.want) {
				t.Fatalf("got %d comments, want %d", len(comments), len(tt.want))
			}
			for i, c := range comments {
				if c.Text != tt.want[i] {
					t.Errorf("comments[%d] = %q, want %q", i, c.Text, tt.want[i])
				}
			}
		})
	}
}

func TestReconcile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.store.ApplyLike(ctx, "video-1", "alice", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := env.store.SetCounters(ctx, "video-1", 7, 0, 0); err != nil {
		t.Fatal(err)
	}

	// Dry run reports the drift without writing.
	out, _, err := env.run("reconcile", "--dry-run", "--format", "json")
	if err != nil {
		t.Fatalf("dry run error = %v", err)
	}
	var report store.ReconcileReport
	decodeCLIResponse(t, out, &report)
	if !report.DryRun || report.Checked != 1 || len(report.Corrections) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if c := report.Corrections[0]; c.Field != models.FieldLikeCount || c.Stored != 7 || c.Actual != 1 {
		t.Errorf("correction = %+v", c)
	}
	if item, _ := env.store.GetContent(ctx, "video-1"); item.LikeCount != 7 {
		t.Errorf("dry run wrote LikeCount = %d", item.LikeCount)
	}

	_, _, err = env.run("reconcile", "--dry-run", "--fail-on-drift")
	if GetExitCode(err) != ExitFailure {
		t.Errorf("--fail-on-drift exit code = %d (%v), want %d", GetExitCode(err), err, ExitFailure)
	}

	out, _, err = env.run("reconcile", "--content", "video-1")
	if err != nil {
		t.Fatalf("reconcile error = %v", err)
	}
	if !strings.Contains(out, "Corrected 1 counters") {
		t.Errorf("output = %q", out)
	}
	if item, _ := env.store.GetContent(ctx, "video-1"); item.LikeCount != 1 {
		t.Errorf("LikeCount after reconcile = %d, want 1", item.LikeCount)
	}

	out, _, err = env.run("reconcile", "--fail-on-drift")
	if err != nil {
		t.Fatalf("second reconcile error = %v", err)
	}
	if !strings.Contains(out, "All counters match") {
		t.Errorf("output = %q", out)
	}
}

func TestReconcile_StoreUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.opts.OpenStore = func(context.Context, config.StoreConfig) (store.AggregateStore, error) {
		return nil, errors.New("locked")
	}
	_, _, err := env.run("reconcile")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitCommandError)
	}
}

func TestDLQ(t *testing.T) {
	var gotAuth, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/api/v1/admin/dlq" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","error":{"code":"NOT_FOUND","message":"route not found"}}`))
			return
		}
		if gotAuth != "Bearer admin-token" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"status":"error","error":{"code":"FORBIDDEN","message":"admin access required"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"entries":[{"eventId":"evt-1","code":"exhausted","attempts":5,"reason":"store unavailable","payload":"{}","deadLetteredAt":"2026-03-01T12:00:00Z"}],"stats":{"total":1,"retained":1,"byCode":{"exhausted":1}},"limit":10}}`))
	}))
	defer srv.Close()

	env := newTestEnv(t)

	t.Run("lists entries", func(t *testing.T) {
		out, _, err := env.run("dlq", "--server", srv.URL, "--token", "admin-token", "-n", "10")
		if err != nil {
			t.Fatalf("dlq error = %v", err)
		}
		if gotLimit != "10" {
			t.Errorf("limit query = %q, want 10", gotLimit)
		}
		for _, want := range []string{"Dead letters: 1 total", "evt-1", "exhausted", "attempts=5"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("forbidden", func(t *testing.T) {
		_, _, err := env.run("dlq", "--server", srv.URL, "--token", "user-token")
		if GetExitCode(err) != ExitFailure {
			t.Fatalf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitFailure)
		}
		if !strings.Contains(err.Error(), "FORBIDDEN") {
			t.Errorf("err = %v, want FORBIDDEN", err)
		}
	})

	t.Run("limit out of range", func(t *testing.T) {
		_, _, err := env.run("dlq", "--server", srv.URL, "-n", "5000")
		if GetExitCode(err) != ExitCommandError {
			t.Errorf("exit code = %d, want %d", GetExitCode(err), ExitCommandError)
		}
	})

	t.Run("invalid server", func(t *testing.T) {
		_, _, err := env.run("dlq", "--server", "not a url")
		if GetExitCode(err) != ExitCommandError {
			t.Errorf("exit code = %d, want %d", GetExitCode(err), ExitCommandError)
		}
	})
}

func TestToken(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run("token", "--user", "ops-admin", "--email", "ops@example.com", "--format", "json")
	if err != nil {
		t.Fatalf("token error = %v", err)
	}
	var result TokenResult
	decodeCLIResponse(t, out, &result)
	if result.UserID != "ops-admin" {
		t.Errorf("UserID = %q", result.UserID)
	}

	manager, err := auth.NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, TokenIssuer: "engagecast-test"})
	if err != nil {
		t.Fatal(err)
	}
	claims, err := manager.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "ops-admin" || claims.Email != "ops@example.com" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestToken_Errors(t *testing.T) {
	env := newTestEnv(t)

	if _, _, err := env.run("token"); err == nil {
		t.Error("token without --user succeeded")
	}

	env.opts.LoadConfig = func() (*config.Config, error) { return &config.Config{}, nil }
	_, _, err := env.run("token", "--user", "alice")
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d (%v), want %d", GetExitCode(err), err, ExitCommandError)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad"), ExitCommandError},
		{"wrapped", WrapExitError(ExitFailure, "drift", errors.New("x")), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
