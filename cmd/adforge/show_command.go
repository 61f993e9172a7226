package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"adforge/internal/apiclient"
	"adforge/internal/status"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show full detail for one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				view, err := client.Project(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printProjectDetail(cmd, view)
				return nil
			})
		},
	}
}

func printProjectDetail(cmd *cobra.Command, view status.ProjectView) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Project %s\n", view.ID)
	fmt.Fprintf(out, "  Stage:    %s (step %d/4)\n", stageLabel(view.Stage), view.Step)
	fmt.Fprintf(out, "  Product:  %s\n", orDash(view.Product.Name))
	if view.Product.Category != "" || view.Product.Price != "" {
		fmt.Fprintf(out, "            %s %s\n", orDash(view.Product.Category), view.Product.Price)
	}
	fmt.Fprintf(out, "  Media:    %s (%s)\n", view.Product.MediaPath, orDash(view.Product.MediaType))
	fmt.Fprintf(out, "  Created:  %s\n", formatTimestamp(view.CreatedAt))
	fmt.Fprintf(out, "  Updated:  %s\n", formatTimestamp(view.UpdatedAt))

	if view.Artifacts.Script != "" || view.Artifacts.VideoPath != "" ||
		view.Artifacts.SitePath != "" || view.Artifacts.PublishURL != "" {
		fmt.Fprintln(out, "Artifacts")
		if view.Artifacts.Script != "" {
			fmt.Fprintf(out, "  Script:   %s\n", truncate(view.Artifacts.Script, 96))
		}
		if view.Artifacts.VideoPath != "" {
			fmt.Fprintf(out, "  Video:    %s\n", view.Artifacts.VideoPath)
		}
		if view.Artifacts.SitePath != "" {
			fmt.Fprintf(out, "  Website:  %s\n", view.Artifacts.SitePath)
		}
		if view.Artifacts.PublishURL != "" {
			fmt.Fprintf(out, "  Post:     %s\n", view.Artifacts.PublishURL)
		}
	}

	if view.Job != nil {
		fmt.Fprintln(out, "Active job")
		fmt.Fprintf(out, "  ID:       %s\n", view.Job.ID)
		fmt.Fprintf(out, "  Stage:    %s\n", stageLabel(view.Job.Stage))
		if view.Job.SubmittedAt != nil {
			fmt.Fprintf(out, "  Started:  %s\n", formatTimestamp(*view.Job.SubmittedAt))
		}
	}

	if view.Error != nil {
		fmt.Fprintln(out, "Last error")
		fmt.Fprintf(out, "  Kind:     %s\n", view.Error.Kind)
		fmt.Fprintf(out, "  Message:  %s\n", view.Error.Message)
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
