package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"adforge/internal/apiclient"
	"adforge/internal/project"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				overview, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				kind := statusOK
				if overview.InFlight > 0 {
					kind = statusInfo
				}
				if overview.ByStage["failed"] > 0 {
					kind = statusWarn
				}
				summary := fmt.Sprintf("%d projects, %d in flight", overview.Total, overview.InFlight)
				fmt.Fprintln(out, renderStatusLine("Pipeline", kind, summary, colorize))

				rows := make([][]string, 0, len(overview.ByStage))
				for _, stage := range project.AllStages() {
					count := overview.ByStage[string(stage)]
					if count == 0 {
						continue
					}
					rows = append(rows, []string{stageLabel(string(stage)), strconv.Itoa(count)})
				}
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"Stage", "Count"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}
				return nil
			})
		},
	}
}
