package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/workflow"
)

var (
	specDepends []string
	specJSON    bool
	specForce   bool
)

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Manage specs and their review cycle",
}

var specCreateCmd = &cobra.Command{
	Use:   "create <issue> <name>",
	Short: "Create a pending spec from the template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return specCreateRun(cmd.Context(), args[0], args[1])
	},
}

var specListCmd = &cobra.Command{
	Use:     "list <issue>",
	Aliases: []string{"ls"},
	Short:   "List the specs of an issue",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return specListRun(cmd.Context(), args[0])
	},
}

var specShowCmd = &cobra.Command{
	Use:   "show <issue> <name>",
	Short: "Show spec status, review round and review history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return specShowRun(cmd.Context(), args[0], args[1])
	},
}

var specStatusCmd = &cobra.Command{
	Use:   "status <issue> <name> <status>",
	Short: "Change spec status (pending, in-progress, in-review, completed)",
	Long: `Change spec status.

  pending     -> in-progress
  in-progress -> in-review
  in-review   -> completed    (needs an APPROVED verdict in the ## Review section)
  in-review   -> in-progress  (needs NEEDS_WORK; starts the next review round)
  completed   -> in-review    (re-review)`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := models.ParseSpecStatus(args[2])
		if err != nil {
			return err
		}
		return specTransitionRun(cmd.Context(), func(ctx context.Context, svc *board.Service) (*workflow.SpecResult, error) {
			return svc.SetSpecStatus(ctx, args[0], args[1], to)
		})
	},
}

var specReviewCmd = &cobra.Command{
	Use:   "review <issue> [name]",
	Short: "Parse the review section of a spec",
	Long: `Parse the last ## Review section of a spec and print the verdict, failed
criteria, missing tests and concerns. Without a name, uses the issue's
in-review spec; with several, the most recently modified one.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return specReviewRun(cmd.Context(), args[0], optionalArg(args, 1))
	},
}

var specFixCmd = &cobra.Command{
	Use:   "fix <issue> [name]",
	Short: "Send a NEEDS_WORK spec back to in-progress for the next round",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return specTransitionRun(cmd.Context(), func(ctx context.Context, svc *board.Service) (*workflow.SpecResult, error) {
			return svc.FixSpec(ctx, args[0], optionalArg(args, 1))
		})
	},
}

var specCompleteCmd = &cobra.Command{
	Use:   "complete <issue> [name]",
	Short: "Complete an APPROVED spec",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return specTransitionRun(cmd.Context(), func(ctx context.Context, svc *board.Service) (*workflow.SpecResult, error) {
			return svc.CompleteSpec(ctx, args[0], optionalArg(args, 1))
		})
	},
}

var specDeleteCmd = &cobra.Command{
	Use:   "delete <issue> <name>",
	Short: "Permanently delete a spec",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return specDeleteRun(cmd.Context(), args[0], args[1])
	},
}

func init() {
	specCreateCmd.Flags().StringSliceVar(&specDepends, "depends", nil, "Comma-separated names of specs this one depends on")
	specShowCmd.Flags().BoolVar(&specJSON, "json", false, "Output JSON")
	specReviewCmd.Flags().BoolVar(&specJSON, "json", false, "Output JSON")
	specDeleteCmd.Flags().BoolVarP(&specForce, "force", "f", false, "Confirm permanent deletion")

	specCmd.AddCommand(specCreateCmd, specListCmd, specShowCmd, specStatusCmd,
		specReviewCmd, specFixCmd, specCompleteCmd, specDeleteCmd)
	rootCmd.AddCommand(specCmd)
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}

func specCreateRun(ctx context.Context, issue, name string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	spec, err := svc.CreateSpec(ctx, issue, name, specDepends)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would create spec %s in %s", spec.Name, issue)
		return nil
	}
	ui.Success("Created spec %s in %s", output.Cyan(spec.Name), issue)
	if len(spec.Dependencies) > 0 {
		ui.VerboseLog("depends on: %s", strings.Join(spec.Dependencies, ", "))
	}
	return nil
}

func specListRun(ctx context.Context, issue string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	specs, err := svc.ListSpecs(ctx, issue)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		ui.Info("No specs for %s.", issue)
		return nil
	}
	table := ui.Table([]string{"Spec", "Status", "Round", "Completed", "Depends"})
	for _, sp := range specs {
		completed := ""
		if sp.Completed != nil {
			completed = sp.Completed.Format(models.DateLayout)
		}
		table.Append([]string{
			sp.Name,
			output.StatusColor(string(sp.Status)),
			strconv.Itoa(sp.ReviewRound),
			completed,
			strings.Join(sp.Dependencies, ", "),
		})
	}
	return table.Render()
}

func specShowRun(ctx context.Context, issue, name string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	view, err := svc.ShowSpec(ctx, issue, name)
	if err != nil {
		return err
	}
	if specJSON {
		return ui.JSON(view)
	}

	sp := view.Spec
	fmt.Fprintf(ui.Out, "%s  (%s)\n", output.Cyan(sp.Name), issue)
	fmt.Fprintf(ui.Out, "  Status:   %s\n", output.StatusColor(string(sp.Status)))
	fmt.Fprintf(ui.Out, "  Round:    %d\n", sp.ReviewRound)
	if !sp.Created.IsZero() {
		fmt.Fprintf(ui.Out, "  Created:  %s\n", sp.Created.Format(models.DateLayout))
	}
	if sp.Completed != nil {
		fmt.Fprintf(ui.Out, "  Completed: %s\n", sp.Completed.Format(models.DateLayout))
	}
	if len(sp.Dependencies) > 0 {
		fmt.Fprintf(ui.Out, "  Depends:  %s\n", strings.Join(sp.Dependencies, ", "))
	}
	if targets := workflow.AllowedSpecTargets(sp.Status); len(targets) > 0 {
		names := make([]string, len(targets))
		for i, t := range targets {
			names[i] = string(t)
		}
		ui.VerboseLog("next: %s", strings.Join(names, ", "))
	}
	for _, dep := range view.UnmetDependencies {
		ui.Warning("Dependency not completed: %s", dep)
	}

	if len(sp.ReviewHistory) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Round", "Date", "Verdict", "Failed", "Concerns"})
		for _, r := range sp.ReviewHistory {
			table.Append([]string{
				strconv.Itoa(r.Round),
				r.Date,
				output.VerdictColor(string(r.Verdict)),
				strconv.Itoa(len(r.FailedCriteria)),
				strconv.Itoa(len(r.Concerns)),
			})
		}
		return table.Render()
	}
	return nil
}

func specTransitionRun(ctx context.Context, transition func(context.Context, *board.Service) (*workflow.SpecResult, error)) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	res, err := transition(ctx, svc)
	if err != nil {
		return err
	}
	name := res.Spec.Name
	switch {
	case res.NoOp:
		ui.Info("Spec %s is already %s", name, output.StatusColor(string(res.To)))
		return nil
	case dryRun:
		ui.DryRunMsg("Would move spec %s: %s -> %s", name, res.From, res.To)
	default:
		ui.Success("Spec %s: %s -> %s", output.Cyan(name), output.StatusColor(string(res.From)), output.StatusColor(string(res.To)))
	}
	if rec := res.Appended; rec != nil {
		ui.Info("Recorded review round %d: %s", rec.Round, output.VerdictColor(string(rec.Verdict)))
		for _, fc := range rec.FailedCriteria {
			ui.Bullet("%s", fc)
		}
		if res.To == models.SpecStatusInProgress {
			ui.Info("Review round is now %d", res.Spec.ReviewRound)
		}
	}
	return nil
}

func specReviewRun(ctx context.Context, issue, name string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	view, err := svc.ReviewSpec(ctx, issue, name)
	if err != nil {
		return err
	}
	if specJSON {
		return ui.JSON(view)
	}
	if view.Review == nil {
		ui.Warning("Spec %s has no ## Review section", view.Spec.Name)
		return nil
	}

	r := view.Review
	fmt.Fprintf(ui.Out, "%s  round %d\n", output.Cyan(view.Spec.Name), view.Spec.ReviewRound)
	fmt.Fprintf(ui.Out, "  Verdict:  %s\n", output.VerdictColor(string(r.Verdict)))
	if r.ReviewedDate != "" {
		fmt.Fprintf(ui.Out, "  Reviewed: %s\n", r.ReviewedDate)
	}
	if len(r.FailedCriteria) > 0 {
		fmt.Fprintln(ui.Out, "\nFailed criteria:")
		for _, fc := range r.FailedCriteria {
			ui.Bullet("[%s] %s", fc.Status, fc)
		}
	}
	if len(r.MissingTests) > 0 {
		fmt.Fprintln(ui.Out, "\nMissing tests:")
		for _, mt := range r.MissingTests {
			if mt.Location == "" {
				ui.Bullet("%s", mt.Test)
				continue
			}
			ui.Bullet("%s (%s)", mt.Test, mt.Location)
		}
	}
	if len(r.Concerns) > 0 {
		fmt.Fprintln(ui.Out, "\nConcerns:")
		for _, c := range r.Concerns {
			ui.Bullet("%s", c)
		}
	}
	for _, w := range r.Warnings {
		ui.VerboseLog("parser: %s", w)
	}
	return nil
}

func specDeleteRun(ctx context.Context, issue, name string) error {
	if !specForce && !dryRun {
		return fmt.Errorf("deleting spec %s is permanent; re-run with --force", name)
	}
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	if err := svc.DeleteSpec(ctx, issue, name); err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete spec %s from %s", name, issue)
		return nil
	}
	ui.Success("Deleted spec %s from %s", name, issue)
	return nil
}
