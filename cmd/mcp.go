package cmd

import (
	"context"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/issues/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Reads are public. Mutating tools act as the user named by session.token
(or --token), so configure a token with "issues user token" first.

  {
    "mcpServers": {
      "issues": { "command": "issues", "args": ["mcp"] }
    }
  }

Available tools: issues_list, issues_get, issues_create, issues_update,
issues_delete, issues_list_users`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpRun()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpRun() error {
	svc, err := getService()
	if err != nil {
		return err
	}

	if sessionToken() == "" {
		logger.Warn("no session token configured; mutating tools will be refused")
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	return mcp.NewServer(svc, sessionToken(), buildVersion, logger).ServeStdio(ctx)
}
