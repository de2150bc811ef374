package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benaskins/keyring-mcp/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath  string
	logLevel    string
	backendFlag string
	scopeFlag   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "keyring-mcp",
	Short: "MCP server for secrets in the OS keychain",
	Long: `keyring-mcp exposes store, retrieve, delete and list operations on the
operating system keychain to MCP clients.

Run without a subcommand to serve MCP over stdio.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runStdio,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default ~/.keyring-mcp/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&backendFlag, "backend", "", "Secret backend: system or memory")
	pf.StringVar(&scopeFlag, "scope", "", "Keychain service name secrets are stored under")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and installs the stderr logger. Stdout is kept
// free for protocol traffic.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg = c

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

// loadConfig layers the config file, the environment and command-line flags,
// in increasing precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	c, err := config.Load(resolvedConfigPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("backend") {
		c.Backend = backendFlag
	}
	if flags.Changed("scope") {
		c.Scope = scopeFlag
	}
	if flags.Lookup("host") != nil && flags.Changed("host") {
		c.Host, _ = flags.GetString("host")
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		c.Port, _ = flags.GetInt("port")
	}
	if flags.Lookup("sse") != nil && flags.Changed("sse") {
		sse, _ := flags.GetBool("sse")
		jsonResponse := !sse
		c.JSONResponse = &jsonResponse
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
