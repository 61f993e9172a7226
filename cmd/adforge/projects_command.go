package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adforge/internal/apiclient"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				views, err := client.Projects(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No projects yet")
					return nil
				}

				rows := make([][]string, 0, len(views))
				for _, view := range views {
					rows = append(rows, []string{
						shortID(view.ID),
						orDash(view.Product.Name),
						stageLabel(view.Stage),
						fmt.Sprintf("%d/4", view.Step),
						formatTimestamp(view.UpdatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Product", "Stage", "Step", "Updated"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
