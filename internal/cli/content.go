// Engagecast - Real-Time Engagement Event Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/engagecast

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/engagecast/internal/models"
	"github.com/tomtom215/engagecast/internal/store"
	"github.com/tomtom215/engagecast/internal/validation"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <content-id>",
		Short: "Print the stored counters of a content item",
		Example: `  engagectl show video-42
  engagectl show video-42 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, cmd, args[0])
		},
	}
}

func runShow(opts *RootOptions, cmd *cobra.Command, contentID string) error {
	if err := checkContentID(contentID); err != nil {
		return err
	}
	ctx, cancel := opts.context(cmd)
	defer cancel()

	return opts.withStore(ctx, func(st store.AggregateStore) error {
		item, err := st.GetContent(ctx, contentID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read content", err)
		}
		return opts.formatter(cmd).Success(item, func(w io.Writer) {
			fmt.Fprintf(w, "Content:  %s\n", item.ContentID)
			if item.OwnerID != "" {
				fmt.Fprintf(w, "Owner:    %s\n", item.OwnerID)
			}
			fmt.Fprintf(w, "Likes:    %d\n", item.LikeCount)
			fmt.Fprintf(w, "Comments: %d\n", item.CommentCount)
			fmt.Fprintf(w, "Views:    %d\n", item.ViewCount)
		})
	})
}

// CommentsOptions holds flags for the comments command.
type CommentsOptions struct {
	*RootOptions
	Limit int
}

// NewCommentsCommand creates the comments command.
func NewCommentsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CommentsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "comments <content-id>",
		Short:         "List the newest comments of a content item",
		Example:       `  engagectl comments video-42 --limit 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComments(opts, cmd, args[0])
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", store.DefaultCommentLimit, "maximum comments to list (capped at 100)")
	return cmd
}

func runComments(opts *CommentsOptions, cmd *cobra.Command, contentID string) error {
	if err := checkContentID(contentID); err != nil {
		return err
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}
	ctx, cancel := opts.context(cmd)
	defer cancel()

	return opts.withStore(ctx, func(st store.AggregateStore) error {
		comments, err := st.ListComments(ctx, contentID, store.ClampCommentLimit(opts.Limit))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list comments", err)
		}
		if comments == nil {
			comments = []models.Comment{}
		}
		return opts.formatter(cmd).Success(comments, func(w io.Writer) {
			if len(comments) == 0 {
				fmt.Fprintf(w, "No comments for %s\n", contentID)
				return
			}
			for _, c := range comments {
				fmt.Fprintf(w, "%s  %-20s %s\n",
					c.CreatedAt.UTC().Format(time.RFC3339), c.UserID, strings.ReplaceAll(c.Text, "\n", " "))
			}
		})
	})
}

func checkContentID(id string) error {
	if !validation.ValidContentID(id) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid content id %q", id))
	}
	return nil
}
