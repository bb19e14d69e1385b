package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kanban"), nil
}

// configKey is one setting. The same table drives viper defaults, the
// commented file written by `config init`, and `config show`.
type configKey struct {
	Key     string
	Default any
	Help    string
	Flag    string // persistent flag bound to the key, if any
}

var configKeys = []configKey{
	{Key: "board_dir", Default: ".kanban", Help: "Board directory, relative to the working directory", Flag: "board"},
	{Key: "journal.enabled", Default: true, Help: "Record every write to the board"},
	{Key: "journal.path", Default: "", Help: "Journal database path; empty means <board_dir>/journal.db"},
	{Key: "git.enabled", Default: true, Help: "Use commit history to pick the most recently changed spec"},
	{Key: "log_level", Default: "warn", Help: "Diagnostic log level: debug, info, warn, error"},
}

// configGroups labels the nested blocks of config.yaml.
var configGroups = map[string]string{
	"journal": "Change journal (SQLite)",
	"git":     "Git integration",
}

var envKeyReplacer = strings.NewReplacer(".", "_")

// EnvVar is the environment variable that overrides the key.
func (k configKey) EnvVar() string {
	return "KANBAN_" + strings.ToUpper(envKeyReplacer.Replace(k.Key))
}

// source reports where the effective value of k comes from, in viper's
// precedence order.
func (k configKey) source() string {
	if k.Flag != "" {
		if f := rootCmd.PersistentFlags().Lookup(k.Flag); f != nil && f.Changed {
			return "(flag: --" + k.Flag + ")"
		}
	}
	if _, ok := os.LookupEnv(k.EnvVar()); ok {
		return "(env: " + k.EnvVar() + ")"
	}
	if viper.InConfig(k.Key) {
		return "(file)"
	}
	return "(default)"
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage kanban configuration.

Running bare 'kanban config' is the same as 'kanban config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// renderConfig writes the effective value of every key as YAML, each
// preceded by its help text and default.
func renderConfig() ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	groups := map[string]*yaml.Node{}
	for _, k := range configKeys {
		parent, name := root, k.Key
		if group, leaf, nested := strings.Cut(k.Key, "."); nested {
			if groups[group] == nil {
				groups[group] = &yaml.Node{Kind: yaml.MappingNode}
				root.Content = append(root.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Value: group, HeadComment: configGroups[group]},
					groups[group])
			}
			parent, name = groups[group], leaf
		}

		var val yaml.Node
		if err := val.Encode(viper.Get(k.Key)); err != nil {
			return nil, fmt.Errorf("encode %s: %w", k.Key, err)
		}
		help := k.Help
		if d := fmt.Sprint(k.Default); d != "" {
			help += " (default: " + d + ")"
		}
		parent.Content = append(parent.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name, HeadComment: help},
			&val)
	}

	doc := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "kanban configuration\nSee: kanban config show (for effective values and sources)",
		Content:     []*yaml.Node{root},
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return buf.Bytes(), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	data, err := renderConfig()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, string(data))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))
	return nil
}

func configShowRun() error {
	if used := viper.ConfigFileUsed(); used != "" {
		ui.Info("Config file: %s", used)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, k := range configKeys {
		table.Append([]string{k.Key, fmt.Sprint(viper.Get(k.Key)), k.source()})
	}
	return table.Render()
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'kanban config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
