package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"substream/internal/api"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var ownerID string

	cmd := &cobra.Command{
		Use:   "scan <directory>",
		Short: "Batch-process every media file under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve directory: %w", err)
			}

			var resp api.ScanResponse
			if err := ctx.postJSON("/api/v1/scan", api.ScanRequest{Dir: dir, OwnerID: ownerID}, &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if resp.Count == 0 {
				fmt.Fprintf(out, "No media files found under %s\n", dir)
				return nil
			}
			fmt.Fprintf(out, "Batch started for %d files:\n", resp.Count)
			for _, file := range resp.Files {
				fmt.Fprintf(out, "  %s\n", file)
			}
			fmt.Fprintln(out, "Follow progress with: substream queue")
			return nil
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "default", "Owner the entries are cataloged under")
	return cmd
}
