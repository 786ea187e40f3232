// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/engagecast/internal/store"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	ContentIDs []string
	DryRun     bool
	// FailOnDrift exits with ExitFailure when corrections were needed.
	FailOnDrift bool
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recount relations and repair drifted counters",
		Long: `Recount like, view and comment rows and rewrite any counter that
disagrees. Run it while the event processor is quiescent.

Examples:
  engagectl reconcile
  engagectl reconcile --content video-42 --dry-run
  engagectl reconcile --dry-run --fail-on-drift --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.ContentIDs, "content", nil, "content id to reconcile (repeatable, default all)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report corrections without writing them")
	cmd.Flags().BoolVar(&opts.FailOnDrift, "fail-on-drift", false, "exit 1 when any counter drifted")

	return cmd
}

func runReconcile(opts *ReconcileOptions, cmd *cobra.Command) error {
	for _, id := range opts.ContentIDs {
		if err := checkContentID(id); err != nil {
			return err
		}
	}
	ctx, cancel := opts.context(cmd)
	defer cancel()

	return opts.withStore(ctx, func(st store.AggregateStore) error {
		report, err := store.Reconcile(ctx, st, store.ReconcileOptions{
			ContentIDs: opts.ContentIDs,
			DryRun:     opts.DryRun,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "reconciliation failed", err)
		}

		if err := opts.formatter(cmd).Success(report, func(w io.Writer) {
			renderReconcileReport(w, report)
		}); err != nil {
			return err
		}

		if opts.FailOnDrift && len(report.Corrections) > 0 {
			return NewExitError(ExitFailure, fmt.Sprintf("%d counters drifted", len(report.Corrections)))
		}
		return nil
	})
}

func renderReconcileReport(w io.Writer, report *store.ReconcileReport) {
	verb := "Corrected"
	if report.DryRun {
		verb = "Would correct"
	}
	fmt.Fprintf(w, "Checked %d content items\n", report.Checked)
	if len(report.Corrections) == 0 {
		fmt.Fprintln(w, "All counters match their relations")
		return
	}
	fmt.Fprintf(w, "%s %d counters:\n", verb, len(report.Corrections))
	for _, c := range report.Corrections {
		fmt.Fprintf(w, "  %-24s %-14s %d -> %d\n", c.ContentID, c.Field, c.Stored, c.Actual)
	}
}
