package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/benaskins/keyring-mcp/internal/mcp"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP over stdin/stdout (default)",
	Long:  "Serve MCP as newline-delimited JSON-RPC on stdin and stdout. Logs go to stderr.",
	Args:  cobra.NoArgs,
	RunE:  runStdio,
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}

func runStdio(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cfg, "stdio")
	if err != nil {
		return err
	}
	defer closeStore()

	// The session ends when the client closes stdin.
	slog.Info("keyring-mcp running on stdio", "version", version, "backend", cfg.Backend, "scope", cfg.Scope)

	if err := mcp.ServeStdio(context.Background(), newDispatcher(store, cfg.Scope), os.Stdin, os.Stdout); err != nil {
		return fmt.Errorf("stdio: %w", err)
	}
	slog.Info("stdin closed, exiting")
	return nil
}
