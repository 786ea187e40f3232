// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/engagecast/internal/auth"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	UserID string
	Email  string
}

// TokenResult is the output of the token command.
type TokenResult struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development JWT signed with the configured secret",
		Long: `Sign an HS256 token for --user with JWT_SECRET from the server
configuration. Intended for local testing of AUTH_MODE=jwt deployments.

Examples:
  engagectl token --user alice
  export ENGAGECAST_TOKEN=$(engagectl token --user ops-admin)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "caller id to put in the subject (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.Email, "email", "", "optional email claim")

	return cmd
}

func runToken(opts *TokenOptions, cmd *cobra.Command) error {
	cfg, err := opts.LoadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	manager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return WrapExitError(ExitCommandError, "JWT signing is not configured", err)
	}
	token, err := manager.GenerateToken(opts.UserID, opts.Email)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to sign token", err)
	}

	result := TokenResult{
		Token:     token,
		UserID:    opts.UserID,
		ExpiresAt: time.Now().Add(manager.TTL()).UTC(),
	}
	return opts.formatter(cmd).Success(result, func(w io.Writer) {
		fmt.Fprintln(w, token)
	})
}
