package main

import (
	"github.com/spf13/cobra"

	"substream/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show the state of one pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status workflow.InstanceStatus
			if err := ctx.getJSON("/api/v1/process/"+args[0], &status); err != nil {
				return err
			}
			printStatus(cmd, &status)
			return nil
		},
	}
}
