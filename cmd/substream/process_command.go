package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"substream/internal/api"
	"substream/internal/workflow"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var ownerID string
	var wait bool

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Identify and catalog one media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}

			var resp api.ProcessResponse
			if err := ctx.postJSON("/api/v1/process", api.ProcessRequest{Path: path, OwnerID: ownerID}, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline started: %s\n", resp.ID)

			if !wait {
				return nil
			}
			status, err := awaitPipeline(ctx, resp.ID)
			if err != nil {
				return err
			}
			printStatus(cmd, status)
			if status.Status == workflow.StatusFailed {
				return fmt.Errorf("pipeline failed: %s", status.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "default", "Owner the entry is cataloged under")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until the pipeline reaches a terminal state")
	return cmd
}

func awaitPipeline(ctx *commandContext, handle string) (*workflow.InstanceStatus, error) {
	for {
		var status workflow.InstanceStatus
		if err := ctx.getJSON("/api/v1/process/"+handle, &status); err != nil {
			return nil, err
		}
		if status.Status.Terminal() {
			return &status, nil
		}
		time.Sleep(2 * time.Second)
	}
}

func printStatus(cmd *cobra.Command, status *workflow.InstanceStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status: %s\n", status.Status)
	fmt.Fprintf(out, "State:  %s\n", status.State)
	if status.Entry != nil {
		fmt.Fprintf(out, "Title:  %s\n", status.Entry.Title)
		fmt.Fprintf(out, "Kind:   %s\n", status.Entry.Category)
		if status.Entry.Metadata != nil && status.Entry.Metadata.TMDBID != "" {
			fmt.Fprintf(out, "TMDB:   %s\n", status.Entry.Metadata.TMDBID)
		}
	}
	if status.FailureKind != "" {
		fmt.Fprintf(out, "Failure: %s\n", status.FailureKind)
	}
	if status.Error != "" {
		fmt.Fprintf(out, "Error:  %s\n", status.Error)
	}
}
