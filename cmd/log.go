package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/journal"
	"github.com/joescharf/kanban/internal/models"
)

var (
	logIssue string
	logKind  string
	logLimit int
	logJSON  bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the board's change journal, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return logRun(cmd.Context())
	},
}

func init() {
	logCmd.Flags().StringVarP(&logIssue, "issue", "i", "", "Only events for this issue")
	logCmd.Flags().StringVar(&logKind, "kind", "", "Only events of this kind (e.g. issue.moved, spec.status)")
	logCmd.Flags().IntVarP(&logLimit, "limit", "l", 20, "Maximum events to show (0 for all)")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "Output JSON")
	rootCmd.AddCommand(logCmd)
}

func logRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := journalPath()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		ui.Info("No journal at %s yet.", path)
		return nil
	}
	j, err := openJournal(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	events, err := j.List(ctx, journal.ListFilter{Issue: logIssue, Kind: journal.Kind(logKind), Limit: logLimit})
	if err != nil {
		return fmt.Errorf("list journal: %w", err)
	}
	if logJSON {
		return ui.JSON(events)
	}
	if len(events) == 0 {
		ui.Info("No events.")
		return nil
	}

	table := ui.Table([]string{"When", "Kind", "Issue", "Spec", "Change", "Detail"})
	for _, e := range events {
		change := ""
		if e.From != "" || e.To != "" {
			change = e.From + " -> " + e.To
		}
		table.Append([]string{
			e.CreatedAt.Local().Format(models.DateLayout + " 15:04"),
			string(e.Kind),
			e.Issue,
			e.Spec,
			change,
			e.Detail,
		})
	}
	return table.Render()
}
