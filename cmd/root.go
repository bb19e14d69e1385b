package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/journal"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui     *output.UI
	logger *slog.Logger

	boardSvc   *board.Service
	boardStore *store.FSStore
	journalDB  *journal.SQLiteJournal

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "kanban",
	Short: "Kanban board for issues and specs, stored as markdown",
	Long: `kanban tracks issues through backlog -> todo -> in-progress -> review -> done.

Each issue is a directory of markdown files (issue.md, <name>.spec.md,
guidance.md) under the stage it is in. Moves are checked against the
workflow rules before anything is written, and every unmet condition is
reported at once.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeDeps()
	},
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	closeDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Validate without writing anything")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/kanban/config.yaml)")
	rootCmd.PersistentFlags().StringP("board", "b", "", "Board directory (default .kanban)")
	bindFlags()
}

// bindFlags binds persistent flags to the config keys they override.
func bindFlags() {
	for _, k := range configKeys {
		if k.Flag != "" {
			_ = viper.BindPFlag(k.Key, rootCmd.PersistentFlags().Lookup(k.Flag))
		}
	}
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if dir, err := configDirFunc(); err == nil {
			viper.AddConfigPath(dir)
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KANBAN")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func setDefaults() {
	for _, k := range configKeys {
		viper.SetDefault(k.Key, k.Default)
	}
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := parseLogLevel(viper.GetString("log_level"))
	if verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// The board is opened lazily so config/version run without one.
}

func parseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelWarn
	}
	return level
}

// rootRun handles `kanban` with no subcommand: show the board when one exists.
func rootRun(cmd *cobra.Command) error {
	if _, err := os.Stat(boardDir()); err != nil {
		return cmd.Help()
	}
	return boardRun(cmd.Context())
}

// boardDir returns the absolute board directory.
func boardDir() string {
	dir := viper.GetString("board_dir")
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func journalPath() string {
	if p := viper.GetString("journal.path"); p != "" {
		return p
	}
	return filepath.Join(boardDir(), "journal.db")
}

// getBoard returns the shared board service, initializing it on first call.
func getBoard(ctx context.Context) (*board.Service, error) {
	if boardSvc != nil {
		return boardSvc, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	dir := boardDir()
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no board at %s (run 'kanban init' first)", dir)
	}
	boardStore = store.NewFSStore(dir)

	opts := []board.Option{board.WithLogger(logger), board.WithDryRun(dryRun)}
	if viper.GetBool("journal.enabled") {
		if j, err := openJournal(ctx, journalPath()); err != nil {
			logger.Warn("journal disabled", "path", journalPath(), "error", err)
		} else {
			journalDB = j
			opts = append(opts, board.WithJournal(j))
		}
	}
	if viper.GetBool("git.enabled") {
		opts = append(opts, board.WithGit(git.NewClient()))
	}

	boardSvc = board.New(boardStore, opts...)
	return boardSvc, nil
}

func openJournal(ctx context.Context, path string) (*journal.SQLiteJournal, error) {
	j, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return j, nil
}

func closeDeps() {
	if journalDB != nil {
		if err := journalDB.Close(); err != nil && logger != nil {
			logger.Warn("close journal", "error", err)
		}
		journalDB = nil
	}
	boardSvc = nil
	boardStore = nil
}
