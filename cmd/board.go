package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/store"
)

var (
	boardWatch bool
	boardJSON  bool
)

const watchDebounce = 300 * time.Millisecond

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the board directory with one folder per stage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return initRun()
	},
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show every stage with its issues",
	RunE: func(cmd *cobra.Command, args []string) error {
		if boardWatch {
			return boardWatchRun(cmd.Context())
		}
		return boardRun(cmd.Context())
	},
}

func init() {
	boardCmd.Flags().BoolVarP(&boardWatch, "watch", "w", false, "Redraw the board when its files change")
	boardCmd.Flags().BoolVar(&boardJSON, "json", false, "Output JSON")
	rootCmd.AddCommand(initCmd, boardCmd)
}

func initRun() error {
	dir := boardDir()
	if dryRun {
		ui.DryRunMsg("Would create board at %s", dir)
		return nil
	}
	if err := store.NewFSStore(dir).Init(); err != nil {
		return err
	}
	ui.Success("Initialized board at %s", output.Cyan(dir))
	ui.VerboseLog("stages: %s", models.JoinStages(models.Stages))
	return nil
}

func boardRun(ctx context.Context) error {
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	cols, err := svc.Board(ctx)
	if err != nil {
		return err
	}
	if boardJSON {
		return ui.JSON(cols)
	}
	return renderBoard(cols)
}

func renderBoard(cols []board.Column) error {
	table := ui.Table([]string{"Stage", "Issue", "Type", "Title", "Owner", "Specs", "DoD", "Guidance"})
	total := 0
	for _, col := range cols {
		if len(col.Cards) == 0 {
			table.Append([]string{output.StatusColor(string(col.Stage)), "-", "", "", "", "", "", ""})
			continue
		}
		for i, card := range col.Cards {
			stage := ""
			if i == 0 {
				stage = output.StatusColor(string(col.Stage))
			}
			guidance := ""
			if card.HasGuidance {
				guidance = "yes"
			}
			table.Append([]string{
				stage,
				card.Issue.Slug,
				string(card.Issue.Type),
				card.Issue.Title,
				card.Issue.Owner,
				output.Progress(card.SpecsCompleted, card.SpecsTotal),
				output.Progress(card.Issue.DoDChecked(), len(card.Issue.DoD)),
				guidance,
			})
			total++
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	ui.VerboseLog("%d issues", total)
	return nil
}

// boardWatchRun redraws the board after every burst of markdown changes
// until interrupted.
func boardWatchRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := redraw(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watchTree(watcher, boardDir()); err != nil {
		return err
	}
	ui.Info("Watching %s (Ctrl+C to stop)", boardDir())

	refresh := make(chan struct{}, 1)
	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(ui.Out, "\nStopped watching.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						logger.Warn("watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if !relevantChange(event) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case refresh <- struct{}{}:
				default:
				}
			})
		case <-refresh:
			if err := redraw(ctx); err != nil {
				ui.Error("%v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		}
	}
}

func redraw(ctx context.Context) error {
	fmt.Fprint(ui.Out, "\033[H\033[2J")
	fmt.Fprintf(ui.Out, "%s  %s\n\n", output.Cyan("kanban"), time.Now().Format("15:04:05"))
	return boardRun(ctx)
}

// watchTree adds dir and every directory below it.
func watchTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func relevantChange(event fsnotify.Event) bool {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	// Directory renames carry no extension; markdown edits do.
	ext := filepath.Ext(base)
	return ext == "" || ext == ".md"
}
