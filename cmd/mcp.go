package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xvierd/notetime/internal/adapters/mcp"
	"github.com/xvierd/notetime/internal/ports"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol (MCP) server over stdio.
The server exposes tracking state, statistics and the timeline, and lets a
client start, stop, pause and resume tracking. Activity comes from --vault
and --hostlink as with "notetime track".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var sources []ports.EventSource
		if hostlinkFlag {
			sources = append(sources, newHostLink())
		}
		if app.config.Tracking.Vault != "" {
			sources = append(sources, newVaultWatcher())
		}

		server := mcp.NewServer(app.tracking, app.clock)
		serve := func(ctx context.Context) error {
			if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP server error: %w", err)
			}
			return nil
		}

		ctx, stop := setupSignalHandler(cmd.Context())
		defer stop()
		return runEngine(ctx, sources, serve, false)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&vaultFlag, "vault", "", "Vault directory to watch (default from config)")
	mcpCmd.Flags().BoolVar(&hostlinkFlag, "hostlink", false, "Accept a host plugin connection over WebSocket")
	rootCmd.AddCommand(mcpCmd)
}
