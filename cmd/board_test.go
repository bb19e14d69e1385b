package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kanban/internal/board"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/workflow"
)

// boardEnv points the commands at a fresh board and captures output.
func boardEnv(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()
	dir := testEnv(t)
	boardPath := filepath.Join(dir, "board")
	viper.Set("board_dir", boardPath)
	viper.Set("git.enabled", false)

	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	var out bytes.Buffer
	ui.Out = &out
	ui.ErrOut = &out

	issueCreateType = "feature"
	issueCreateStage = "backlog"
	issueTitle = ""
	specDepends = nil
	t.Cleanup(closeDeps)
	return boardPath, &out
}

func TestInitRun_CreatesStages(t *testing.T) {
	boardPath, _ := boardEnv(t)

	require.NoError(t, initRun())
	for _, st := range models.Stages {
		info, err := os.Stat(filepath.Join(boardPath, string(st)))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestGetBoard_NoBoard(t *testing.T) {
	boardEnv(t)

	_, err := getBoard(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kanban init")
}

func TestBoardRun_ShowsIssues(t *testing.T) {
	_, out := boardEnv(t)
	ctx := context.Background()
	require.NoError(t, initRun())
	require.NoError(t, issueCreateRun(ctx, "user-login"))

	out.Reset()
	require.NoError(t, boardRun(ctx))
	assert.Contains(t, out.String(), "user-login")
	assert.Contains(t, out.String(), "backlog")
	assert.Contains(t, out.String(), "in-progress")
}

func TestBoardRun_JSON(t *testing.T) {
	_, out := boardEnv(t)
	ctx := context.Background()
	require.NoError(t, initRun())
	require.NoError(t, issueCreateRun(ctx, "fix-crash"))

	boardJSON = true
	t.Cleanup(func() { boardJSON = false })
	out.Reset()
	require.NoError(t, boardRun(ctx))
	assert.Contains(t, out.String(), `"slug": "fix-crash"`)
	assert.Contains(t, out.String(), `"specs_total": 0`)
}

func TestLogRun_ListsEvents(t *testing.T) {
	_, out := boardEnv(t)
	ctx := context.Background()
	require.NoError(t, initRun())
	require.NoError(t, issueCreateRun(ctx, "user-login"))
	closeDeps()

	out.Reset()
	require.NoError(t, logRun(ctx))
	assert.Contains(t, out.String(), "issue.created")
	assert.Contains(t, out.String(), "user-login")
}

func TestLogRun_NoJournal(t *testing.T) {
	_, out := boardEnv(t)
	require.NoError(t, initRun())

	require.NoError(t, logRun(context.Background()))
	assert.Contains(t, out.String(), "No journal")
}

func TestSpecCommands(t *testing.T) {
	_, out := boardEnv(t)
	ctx := context.Background()
	require.NoError(t, initRun())
	require.NoError(t, issueCreateRun(ctx, "user-login"))
	require.NoError(t, specCreateRun(ctx, "user-login", "auth-api"))

	out.Reset()
	require.NoError(t, specListRun(ctx, "user-login"))
	assert.Contains(t, out.String(), "auth-api")
	assert.Contains(t, out.String(), "pending")

	out.Reset()
	require.NoError(t, specShowRun(ctx, "user-login", "auth-api"))
	assert.Contains(t, out.String(), "Round:    1")

	err := specTransitionRun(ctx, func(ctx context.Context, svc *board.Service) (*workflow.SpecResult, error) {
		return svc.SetSpecStatus(ctx, "user-login", "auth-api", models.SpecStatusCompleted)
	})
	require.ErrorIs(t, err, models.ErrIllegalTransition)
}

func TestIssueDeleteRun_RequiresForce(t *testing.T) {
	boardEnv(t)
	issueForce = false

	err := issueDeleteRun(context.Background(), "user-login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestRelevantChange(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"markdown write", fsnotify.Event{Name: "/b/todo/x/issue.md", Op: fsnotify.Write}, true},
		{"directory rename", fsnotify.Event{Name: "/b/todo/x", Op: fsnotify.Rename}, true},
		{"temp file", fsnotify.Event{Name: "/b/todo/x/issue.md.tmp.123", Op: fsnotify.Create}, false},
		{"journal", fsnotify.Event{Name: "/b/journal.db", Op: fsnotify.Write}, false},
		{"chmod only", fsnotify.Event{Name: "/b/todo/x/issue.md", Op: fsnotify.Chmod}, false},
		{"hidden", fsnotify.Event{Name: "/b/.DS_Store", Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevantChange(tt.event))
		})
	}
}

func TestWatchTree_AddsSubdirectories(t *testing.T) {
	boardPath, _ := boardEnv(t)
	require.NoError(t, initRun())

	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, watchTree(w, boardPath))
	assert.Contains(t, w.WatchList(), filepath.Join(boardPath, string(models.StageTodo)))
}
