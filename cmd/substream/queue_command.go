package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"substream/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List recent pipeline instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.QueueResponse
			if err := ctx.getJSON("/api/v1/queue?limit="+strconv.Itoa(limit), &resp); err != nil {
				return err
			}
			if len(resp.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}

			rows := make([][]string, 0, len(resp.Items))
			for _, item := range resp.Items {
				title := ""
				if item.Entry != nil {
					title = item.Entry.Title
				}
				rows = append(rows, []string{
					item.ID,
					filepath.Base(item.FilePath),
					string(item.Status),
					string(item.State),
					title,
					item.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "FILE", "STATUS", "STATE", "TITLE", "UPDATED"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of instances to list")
	return cmd
}
