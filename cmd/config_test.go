package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/kanban/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	viper.Reset()
	setDefaults()
	bindFlags()

	ui = output.New()
	configForce = false
	return dir
}

// captureUI redirects command output into a buffer.
func captureUI(t *testing.T) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	ui.Out = &out
	ui.ErrOut = &out
	return &out
}

// rowFor returns the first output line that starts with key.
func rowFor(out, key string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), key+" ") {
			return line
		}
	}
	return ""
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)
	captureUI(t)

	require.NoError(t, configInitRun())

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "# kanban configuration")
	assert.Contains(t, text, "# Board directory, relative to the working directory (default: .kanban)")
	assert.Contains(t, text, "# Change journal (SQLite)")
	assert.Contains(t, text, "# Journal database path; empty means <board_dir>/journal.db\n")

	var parsed struct {
		BoardDir string `yaml:"board_dir"`
		Journal  struct {
			Enabled bool   `yaml:"enabled"`
			Path    string `yaml:"path"`
		} `yaml:"journal"`
		Git struct {
			Enabled bool `yaml:"enabled"`
		} `yaml:"git"`
		LogLevel string `yaml:"log_level"`
	}
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	assert.Equal(t, ".kanban", parsed.BoardDir)
	assert.True(t, parsed.Journal.Enabled)
	assert.Empty(t, parsed.Journal.Path)
	assert.True(t, parsed.Git.Enabled)
	assert.Equal(t, "warn", parsed.LogLevel)
}

func TestConfigInit_WritesEffectiveValues(t *testing.T) {
	dir := testEnv(t)
	captureUI(t)
	viper.Set("log_level", "debug")
	viper.Set("git.enabled", false)
	viper.Set("journal.path", "/var/lib/kanban/journal.db")

	require.NoError(t, configInitRun())

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, v.ReadInConfig())
	assert.Equal(t, "debug", v.GetString("log_level"))
	assert.False(t, v.GetBool("git.enabled"))
	assert.True(t, v.GetBool("journal.enabled"))
	assert.Equal(t, "/var/lib/kanban/journal.db", v.GetString("journal.path"))
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	err := configInitRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)
	captureUI(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	require.NoError(t, configInitRun())

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "board_dir:")
	assert.NotContains(t, string(data), "existing")
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	out := captureUI(t)
	dryRun = true
	ui.DryRun = true
	t.Cleanup(func() { dryRun = false })

	require.NoError(t, configInitRun())

	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
	assert.Contains(t, out.String(), "log_level:")
}

func TestConfigShow_Sources(t *testing.T) {
	dir := testEnv(t)
	out := captureUI(t)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_level: info\njournal:\n  path: /tmp/j.db\n"), 0644))
	viper.SetConfigFile(cfgPath)
	require.NoError(t, viper.ReadInConfig())
	t.Setenv("KANBAN_GIT_ENABLED", "false")

	require.NoError(t, configShowRun())

	text := out.String()
	assert.Contains(t, text, "Config file: "+cfgPath)
	assert.Contains(t, rowFor(text, "log_level"), "info")
	assert.Contains(t, rowFor(text, "log_level"), "(file)")
	assert.Contains(t, rowFor(text, "journal.path"), "(file)")
	assert.Contains(t, rowFor(text, "journal.enabled"), "(default)")
	assert.Contains(t, rowFor(text, "git.enabled"), "(env: KANBAN_GIT_ENABLED)")
	assert.Contains(t, rowFor(text, "board_dir"), "(default)")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)
	out := captureUI(t)

	require.NoError(t, configShowRun())
	assert.Contains(t, out.String(), "Config file: (none)")
	assert.Contains(t, rowFor(out.String(), "board_dir"), ".kanban")
}

func TestConfigKey_EnvVar(t *testing.T) {
	want := map[string]string{
		"board_dir":       "KANBAN_BOARD_DIR",
		"journal.enabled": "KANBAN_JOURNAL_ENABLED",
		"journal.path":    "KANBAN_JOURNAL_PATH",
		"git.enabled":     "KANBAN_GIT_ENABLED",
		"log_level":       "KANBAN_LOG_LEVEL",
	}
	require.Len(t, configKeys, len(want))
	for _, k := range configKeys {
		assert.Equal(t, want[k.Key], k.EnvVar(), k.Key)
	}
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "")
	t.Setenv("VISUAL", "")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)
	t.Setenv("EDITOR", "echo")

	err := configEditRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
