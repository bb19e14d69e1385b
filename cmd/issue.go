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
	"github.com/joescharf/kanban/internal/store"
)

var (
	issueCreateType  string
	issueCreateStage string
	issueTitle       string
	issueListType    string
	issueListStage   string
	issueJSON        bool
	issueUncheck     bool
	issueForce       bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Manage issues and move them across the board",
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueCreateCmd = &cobra.Command{
	Use:   "create <slug>",
	Short: "Create an issue from the template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueCreateRun(cmd.Context(), args[0])
	},
}

var issueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List issues in stage order",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueListRun(cmd.Context())
	},
}

var issueShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show an issue with its specs, guidance and Definition of Done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueShowRun(cmd.Context(), args[0])
	},
}

var issueCheckCmd = &cobra.Command{
	Use:   "check <slug> <stage>",
	Short: "Check whether an issue may move, listing every unmet condition",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueCheckRun(cmd.Context(), args[0], args[1])
	},
}

var issueMoveCmd = &cobra.Command{
	Use:   "move <slug> <stage>",
	Short: "Move an issue to an adjacent stage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, err := models.ParseStage(args[1])
		if err != nil {
			return err
		}
		return issueMoveRun(cmd.Context(), args[0], func(ctx context.Context, svc *board.Service) (*board.Move, error) {
			return svc.MoveIssue(ctx, args[0], to)
		})
	},
}

var issueAdvanceCmd = &cobra.Command{
	Use:   "advance <slug>",
	Short: "Move an issue to the next stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueMoveRun(cmd.Context(), args[0], func(ctx context.Context, svc *board.Service) (*board.Move, error) {
			return svc.AdvanceIssue(ctx, args[0])
		})
	},
}

var issueRetreatCmd = &cobra.Command{
	Use:   "retreat <slug>",
	Short: "Move an issue back one stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueMoveRun(cmd.Context(), args[0], func(ctx context.Context, svc *board.Service) (*board.Move, error) {
			return svc.RetreatIssue(ctx, args[0])
		})
	},
}

var issueOwnerCmd = &cobra.Command{
	Use:   "owner <slug> <name>",
	Short: "Set the issue owner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueUpdateRun(cmd.Context(), "Owner set", func(ctx context.Context, svc *board.Service) (*models.Issue, error) {
			return svc.SetOwner(ctx, args[0], args[1])
		})
	},
}

var issueDescribeCmd = &cobra.Command{
	Use:   "describe <slug> <text...>",
	Short: "Replace the Description section",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")
		return issueUpdateRun(cmd.Context(), "Description updated", func(ctx context.Context, svc *board.Service) (*models.Issue, error) {
			return svc.Describe(ctx, args[0], text)
		})
	},
}

var issueDoDCmd = &cobra.Command{
	Use:   "dod <slug> <n>",
	Short: "Check (or --uncheck) Definition of Done item n, counted from 1",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("item number must be an integer: %s", args[1])
		}
		msg := fmt.Sprintf("Checked item %d", n)
		if issueUncheck {
			msg = fmt.Sprintf("Unchecked item %d", n)
		}
		return issueUpdateRun(cmd.Context(), msg, func(ctx context.Context, svc *board.Service) (*models.Issue, error) {
			return svc.SetDoD(ctx, args[0], n, !issueUncheck)
		})
	},
}

var issueDoDAddCmd = &cobra.Command{
	Use:   "dod-add <slug> <text...>",
	Short: "Append a Definition of Done item",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args[1:], " ")
		return issueUpdateRun(cmd.Context(), "Definition of Done item added", func(ctx context.Context, svc *board.Service) (*models.Issue, error) {
			return svc.AddDoD(ctx, args[0], text)
		})
	},
}

var issueArchiveCmd = &cobra.Command{
	Use:   "archive <slug>",
	Short: "Move an issue into the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueArchiveRun(cmd.Context(), args[0])
	},
}

var issueDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Permanently delete an issue and its specs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueDeleteRun(cmd.Context(), args[0])
	},
}

var issueActiveCmd = &cobra.Command{
	Use:   "active",
	Short: "Show the single issue in in-progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return issueActiveRun(cmd.Context())
	},
}

func init() {
	issueCreateCmd.Flags().StringVarP(&issueCreateType, "type", "t", "feature", "Type: feature, bug, task")
	issueCreateCmd.Flags().StringVar(&issueTitle, "title", "", "Issue title (default: slug)")
	issueCreateCmd.Flags().StringVar(&issueCreateStage, "stage", "backlog", "Initial stage")

	issueListCmd.Flags().StringVar(&issueListStage, "stage", "", "Filter by stage")
	issueListCmd.Flags().StringVarP(&issueListType, "type", "t", "", "Filter by type")
	issueListCmd.Flags().BoolVar(&issueJSON, "json", false, "Output JSON")

	issueShowCmd.Flags().BoolVar(&issueJSON, "json", false, "Output JSON")

	issueDoDCmd.Flags().BoolVar(&issueUncheck, "uncheck", false, "Uncheck instead of check")

	issueDeleteCmd.Flags().BoolVarP(&issueForce, "force", "f", false, "Confirm permanent deletion")

	issueCmd.AddCommand(issueCreateCmd, issueListCmd, issueShowCmd, issueCheckCmd, issueMoveCmd,
		issueAdvanceCmd, issueRetreatCmd, issueOwnerCmd, issueDescribeCmd, issueDoDCmd,
		issueDoDAddCmd, issueArchiveCmd, issueDeleteCmd, issueActiveCmd)
	rootCmd.AddCommand(issueCmd)
}

func issueCreateRun(ctx context.Context, slug string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	typ, err := models.ParseIssueType(issueCreateType)
	if err != nil {
		return err
	}
	stage, err := models.ParseStage(issueCreateStage)
	if err != nil {
		return err
	}

	issue, err := svc.CreateIssue(ctx, board.CreateIssueInput{Slug: slug, Type: typ, Title: issueTitle, Stage: stage})
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would create %s %s in %s", issue.Type, issue.Slug, issue.Stage)
		return nil
	}
	ui.Success("Created %s %s in %s", issue.Type, output.Cyan(issue.Slug), output.StatusColor(string(issue.Stage)))
	ui.VerboseLog("%s", issue.Dir)
	return nil
}

func issueListRun(ctx context.Context) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	filter := store.IssueListFilter{}
	if issueListStage != "" {
		if filter.Stage, err = models.ParseStage(issueListStage); err != nil {
			return err
		}
	}
	if issueListType != "" {
		if filter.Type, err = models.ParseIssueType(issueListType); err != nil {
			return err
		}
	}

	issues, err := svc.ListIssues(ctx, filter)
	if err != nil {
		return err
	}
	if issueJSON {
		return ui.JSON(issues)
	}
	if len(issues) == 0 {
		ui.Info("No issues found.")
		return nil
	}

	table := ui.Table([]string{"Slug", "Type", "Stage", "Owner", "DoD", "Title"})
	for _, i := range issues {
		table.Append([]string{
			i.Slug,
			string(i.Type),
			output.StatusColor(string(i.Stage)),
			i.Owner,
			output.Progress(i.DoDChecked(), len(i.DoD)),
			i.Title,
		})
	}
	return table.Render()
}

func issueShowRun(ctx context.Context, slug string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	view, err := svc.ShowIssue(ctx, slug)
	if err != nil {
		return err
	}
	if issueJSON {
		return ui.JSON(view)
	}

	i := view.Issue
	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(i.Slug), i.Title)
	fmt.Fprintf(ui.Out, "  Type:     %s\n", i.Type)
	fmt.Fprintf(ui.Out, "  Stage:    %s\n", output.StatusColor(string(i.Stage)))
	fmt.Fprintf(ui.Out, "  Owner:    %s\n", valueOr(i.Owner, "(unassigned)"))
	if !i.Created.IsZero() {
		fmt.Fprintf(ui.Out, "  Created:  %s\n", i.Created.Format(models.DateLayout))
	}
	if view.Guidance != nil {
		fmt.Fprintf(ui.Out, "  Guidance: %s (updated %s)\n", output.StatusColor(string(view.Guidance.Status)),
			view.Guidance.LastUpdated.Format(models.DateLayout))
	} else {
		fmt.Fprintf(ui.Out, "  Guidance: (none)\n")
	}

	if i.Description != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", i.Description)
	}

	if len(i.DoD) > 0 {
		fmt.Fprintf(ui.Out, "\nDefinition of Done (%s):\n", output.Progress(i.DoDChecked(), len(i.DoD)))
		for n, item := range i.DoD {
			mark := " "
			if item.Checked {
				mark = "x"
			}
			fmt.Fprintf(ui.Out, "  %d. [%s] %s\n", n+1, mark, item.Text)
		}
	}

	if len(view.Specs) > 0 {
		fmt.Fprintln(ui.Out)
		table := ui.Table([]string{"Spec", "Status", "Round", "Reviews"})
		for _, sp := range view.Specs {
			table.Append([]string{sp.Name, output.StatusColor(string(sp.Status)),
				strconv.Itoa(sp.ReviewRound), strconv.Itoa(len(sp.ReviewHistory))})
		}
		return table.Render()
	}
	return nil
}

func issueCheckRun(ctx context.Context, slug, stage string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	to, err := models.ParseStage(stage)
	if err != nil {
		return err
	}
	m, err := svc.CheckMove(ctx, slug, to)
	if err != nil {
		return err
	}
	ui.Success("%s can move %s -> %s", slug, output.StatusColor(string(m.From)), output.StatusColor(string(m.To)))
	return nil
}

func issueMoveRun(ctx context.Context, slug string, move func(context.Context, *board.Service) (*board.Move, error)) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	m, err := move(ctx, svc)
	if err != nil {
		return err
	}
	if !m.Committed {
		ui.DryRunMsg("Would move %s: %s -> %s", slug, m.From, m.To)
		return nil
	}
	ui.Success("Moved %s: %s -> %s", output.Cyan(slug), output.StatusColor(string(m.From)), output.StatusColor(string(m.To)))
	return nil
}

func issueUpdateRun(ctx context.Context, msg string, update func(context.Context, *board.Service) (*models.Issue, error)) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	issue, err := update(ctx, svc)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("%s (not written): %s", msg, issue.Slug)
		return nil
	}
	ui.Success("%s: %s", msg, output.Cyan(issue.Slug))
	return nil
}

func issueArchiveRun(ctx context.Context, slug string) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	dst, err := svc.ArchiveIssue(ctx, slug)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would archive %s", slug)
		return nil
	}
	ui.Success("Archived %s to %s", output.Cyan(slug), dst)
	return nil
}

func issueDeleteRun(ctx context.Context, slug string) error {
	if !issueForce && !dryRun {
		return fmt.Errorf("deleting %s is permanent; re-run with --force (or use 'issue archive')", slug)
	}
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	if err := svc.DeleteIssue(ctx, slug); err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete %s", slug)
		return nil
	}
	ui.Success("Deleted %s", slug)
	return nil
}

func issueActiveRun(ctx context.Context) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	issue, err := svc.ActiveIssue(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "%s  %s  (owner: %s)\n", output.Cyan(issue.Slug), issue.Title, valueOr(issue.Owner, "unassigned"))
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
