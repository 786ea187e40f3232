// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/engagecast/internal/api"
	"github.com/tomtom215/engagecast/internal/models"
)

// maxResponseBytes bounds what engagectl reads from the server.
const maxResponseBytes = 4 << 20

// DLQOptions holds flags for the dlq command.
type DLQOptions struct {
	*RootOptions
	Limit int
}

// NewDLQCommand creates the dlq command.
func NewDLQCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DLQOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "List recent dead-lettered events from a running server",
		Long: `Read GET /api/v1/admin/dlq from the server. The token must belong to a
caller listed in the server's ADMIN_USERS. Entries are those seen by the
node that answers; behind a load balancer, query each node.

Examples:
  engagectl dlq --server http://engage-1:8080 --token $ADMIN_TOKEN
  engagectl dlq --limit 200 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDLQ(opts, cmd)
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "maximum entries (1-1000)")
	return cmd
}

func runDLQ(opts *DLQOptions, cmd *cobra.Command) error {
	if opts.Limit < 1 || opts.Limit > 1000 {
		return NewExitError(ExitCommandError, "--limit must be between 1 and 1000")
	}
	ctx, cancel := opts.context(cmd)
	defer cancel()

	var resp api.DLQEntriesResponse
	query := url.Values{"limit": {strconv.Itoa(opts.Limit)}}
	if err := opts.getJSON(ctx, "/api/v1/admin/dlq", query, &resp); err != nil {
		return err
	}

	return opts.formatter(cmd).Success(resp, func(w io.Writer) {
		fmt.Fprintf(w, "Dead letters: %d total", resp.Stats.Total)
		if len(resp.Stats.ByCode) > 0 {
			fmt.Fprintf(w, " %v", resp.Stats.ByCode)
		}
		fmt.Fprintln(w)
		for _, e := range resp.Entries {
			fmt.Fprintf(w, "%s  %-36s %-12s attempts=%d  %s\n",
				e.DeadLetteredAt.UTC().Format(time.RFC3339), e.EventID, e.Code, e.Attempts, e.Reason)
		}
	})
}

// getJSON issues an authenticated GET against the server and decodes the
// data field of the response envelope into dst.
func (o *RootOptions) getJSON(ctx context.Context, path string, query url.Values, dst interface{}) error {
	base, err := url.Parse(strings.TrimRight(o.Server, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --server %q", o.Server))
	}
	target := base.JoinPath(path)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if o.Token != "" {
		req.Header.Set("Authorization", "Bearer "+o.Token)
	}

	client := o.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return WrapExitError(ExitCommandError, "request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read response", err)
	}

	var envelope struct {
		Status string           `json:"status"`
		Data   json.RawMessage  `json:"data"`
		Error  *models.APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("unexpected response (HTTP %d)", res.StatusCode), err)
	}
	if res.StatusCode != http.StatusOK || envelope.Status != "success" {
		msg := http.StatusText(res.StatusCode)
		if envelope.Error != nil {
			msg = fmt.Sprintf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("server returned HTTP %d (%s)", res.StatusCode, msg))
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		return WrapExitError(ExitCommandError, "failed to decode response data", err)
	}
	return nil
}
