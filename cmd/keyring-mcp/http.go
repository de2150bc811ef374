package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/benaskins/keyring-mcp/internal/api"
	"github.com/benaskins/keyring-mcp/internal/config"
)

var httpCmd = &cobra.Command{
	Use:   "http",
	Short: "Serve MCP over streamable HTTP",
	Long: `Serve MCP on a single HTTP endpoint (default http://localhost:3000/mcp).

Clients start a session with an initialize request and send the returned
Mcp-Session-Id header (or the mcp_session_id cookie) on later requests.
PORT and HOST in the environment override the config file.`,
	Args: cobra.NoArgs,
	RunE: runHTTP,
}

func init() {
	httpCmd.Flags().String("host", config.DefaultHost, "Address to bind")
	httpCmd.Flags().Int("port", config.DefaultPort, "Port to listen on")
	httpCmd.Flags().Bool("sse", false, "Reply with text/event-stream instead of application/json")
	rootCmd.AddCommand(httpCmd)
}

func runHTTP(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cfg, "http")
	if err != nil {
		return err
	}
	defer closeStore()

	srv := api.NewServer(newDispatcher(store, cfg.Scope), api.Options{
		Endpoint:     cfg.Endpoint,
		JSONResponse: *cfg.JSONResponse,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Hot-reload the rate limit. Everything else needs a restart.
	go func() {
		err := config.Watch(ctx, resolvedConfigPath(), func(c *config.Config) {
			srv.SetRateLimit(c.RateLimit, c.RateBurst)
		})
		if err != nil {
			slog.Warn("config watcher stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenTCP(cfg.Addr())
	}()

	slog.Info("keyring-mcp running on http", "version", version, "url", fmt.Sprintf("http://%s%s", cfg.Addr(), cfg.Endpoint))

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("keyring-mcp stopped")
	return nil
}
