// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/engagecast/internal/config"
	"github.com/tomtom215/engagecast/internal/database"
	"github.com/tomtom215/engagecast/internal/logging"
	"github.com/tomtom215/engagecast/internal/store"
)

// RootOptions holds global flags and the dependencies every command uses.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Server  string
	Token   string
	Timeout time.Duration

	// LoadConfig, OpenStore and HTTPClient are replaced in tests.
	LoadConfig func() (*config.Config, error)
	OpenStore  func(ctx context.Context, cfg config.StoreConfig) (store.AggregateStore, error)
	HTTPClient *http.Client
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultRootOptions wires the real configuration loader, store and HTTP
// client.
func DefaultRootOptions() *RootOptions {
	return &RootOptions{
		LoadConfig: config.Load,
		OpenStore:  database.Open,
		HTTPClient: &http.Client{},
	}
}

// NewRootCommand creates the engagectl root command.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(DefaultRootOptions())
}

// NewRootCommandWithOptions creates the root command around opts.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engagectl",
		Short: "Operate an Engagecast deployment",
		Long: `engagectl inspects and repairs the engagement aggregate store and reads
operational state from a running Engagecast server.

Store commands (show, comments, reconcile) read the same configuration as
the server (config.yaml, CONFIG_PATH and environment). The Badger backend
holds an exclusive lock, so run them while the server is stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			level := "warn"
			if opts.Verbose {
				level = "debug"
			}
			logging.Init(logging.Config{Level: level, Format: "console", Output: cmd.ErrOrStderr()})
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("ENGAGECAST_URL", "http://localhost:8080"), "server base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("ENGAGECAST_TOKEN"), "bearer token for server requests")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-command timeout")

	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCommentsCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewDLQCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// withStore loads configuration, opens the aggregate store and runs fn.
func (o *RootOptions) withStore(ctx context.Context, fn func(store.AggregateStore) error) error {
	cfg, err := o.LoadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	st, err := o.OpenStore(ctx, cfg.Store)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open aggregate store", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close aggregate store")
		}
	}()
	return fn(st)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func (o *RootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	if o.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, o.Timeout)
}
