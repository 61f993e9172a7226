package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adforge/internal/apiclient"
)

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <project-id>",
		Short: "Cancel a project's in-flight generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				view, err := client.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Canceled project %s; stage is now %s\n",
					shortID(view.ID), stageLabel(view.Stage))
				return nil
			})
		},
	}
}
