package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Agents can list and inspect issues, check and perform stage moves, change
spec status and parse review sections. Configure the client with:

  {
    "mcpServers": {
      "kanban": { "command": "kanban", "args": ["mcp"] }
    }
  }

Available tools: kanban_list_issues, kanban_show_issue, kanban_active_issue,
kanban_check_move, kanban_move_issue, kanban_set_spec_status,
kanban_parse_review`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := getBoard(ctx)
	if err != nil {
		return err
	}
	return mcp.NewServer(svc, buildVersion).ServeStdio(ctx)
}
