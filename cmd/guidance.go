package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/output"
)

var guidanceStatus string

var guidanceCmd = &cobra.Command{
	Use:   "guidance",
	Short: "Manage an issue's technical guidance document",
}

var guidanceInitCmd = &cobra.Command{
	Use:   "init <issue>",
	Short: "Create guidance.md as a draft dated today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return guidanceInitRun(cmd.Context(), args[0])
	},
}

var guidanceTouchCmd = &cobra.Command{
	Use:   "touch <issue>",
	Short: "Set last-updated to today, optionally changing status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return guidanceTouchRun(cmd.Context(), args[0])
	},
}

func init() {
	guidanceTouchCmd.Flags().StringVar(&guidanceStatus, "status", "", "New status: draft, active, finalized")
	guidanceCmd.AddCommand(guidanceInitCmd, guidanceTouchCmd)
	rootCmd.AddCommand(guidanceCmd)
}

func guidanceInitRun(ctx context.Context, issue string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	g, err := svc.InitGuidance(ctx, issue)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would create guidance for %s", issue)
		return nil
	}
	ui.Success("Created guidance for %s (%s, %s)", output.Cyan(issue), g.Status, g.LastUpdated.Format(models.DateLayout))
	return nil
}

func guidanceTouchRun(ctx context.Context, issue string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	var status models.GuidanceStatus
	if guidanceStatus != "" {
		if status, err = models.ParseGuidanceStatus(guidanceStatus); err != nil {
			return err
		}
	}
	g, err := svc.TouchGuidance(ctx, issue, status)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would touch guidance for %s", issue)
		return nil
	}
	ui.Success("Guidance for %s is %s, updated %s", output.Cyan(issue), output.StatusColor(string(g.Status)),
		g.LastUpdated.Format(models.DateLayout))
	return nil
}
