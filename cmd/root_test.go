package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetBoardFlag clears --board after the test so later tests see the
// default again.
func resetBoardFlag(t *testing.T) {
	t.Helper()
	f := rootCmd.PersistentFlags().Lookup("board")
	require.NotNil(t, f)
	t.Cleanup(func() {
		_ = f.Value.Set("")
		f.Changed = false
	})
}

func TestBoardDir_ResolvesRelative(t *testing.T) {
	testEnv(t)

	viper.Set("board_dir", filepath.Join("work", ".kanban"))
	want, err := filepath.Abs(filepath.Join("work", ".kanban"))
	require.NoError(t, err)
	assert.Equal(t, want, boardDir())
	assert.True(t, filepath.IsAbs(boardDir()))

	abs := t.TempDir()
	viper.Set("board_dir", abs)
	assert.Equal(t, abs, boardDir())
}

func TestBoardDir_Default(t *testing.T) {
	testEnv(t)

	want, err := filepath.Abs(".kanban")
	require.NoError(t, err)
	assert.Equal(t, want, boardDir())
}

func TestJournalPath(t *testing.T) {
	testEnv(t)
	board := t.TempDir()
	viper.Set("board_dir", board)

	assert.Equal(t, filepath.Join(board, "journal.db"), journalPath())

	viper.Set("journal.path", "/var/lib/kanban/j.db")
	assert.Equal(t, "/var/lib/kanban/j.db", journalPath())
}

func TestBoardFlag_SetsBoardDir(t *testing.T) {
	testEnv(t)
	resetBoardFlag(t)
	dir := t.TempDir()

	require.NoError(t, rootCmd.PersistentFlags().Set("board", dir))
	assert.Equal(t, dir, viper.GetString("board_dir"))
	assert.Equal(t, dir, boardDir())
	assert.Equal(t, filepath.Join(dir, "journal.db"), journalPath())

	for _, k := range configKeys {
		if k.Key == "board_dir" {
			assert.Equal(t, "(flag: --board)", k.source())
		}
	}
}

func TestInitConfig_FileThenEnv(t *testing.T) {
	dir := testEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("board_dir: from-file\nlog_level: debug\ngit:\n  enabled: false\n"), 0644))

	initConfig()
	assert.Equal(t, "from-file", viper.GetString("board_dir"))
	assert.Equal(t, "debug", viper.GetString("log_level"))
	assert.False(t, viper.GetBool("git.enabled"))
	assert.True(t, viper.GetBool("journal.enabled"))

	t.Setenv("KANBAN_LOG_LEVEL", "error")
	t.Setenv("KANBAN_GIT_ENABLED", "true")
	assert.Equal(t, "error", viper.GetString("log_level"))
	assert.True(t, viper.GetBool("git.enabled"))
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelWarn},
		{"loud", slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}
