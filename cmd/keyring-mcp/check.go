package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/benaskins/keyring-mcp/internal/health"
)

var (
	checkJSON    bool
	checkURL     string
	checkTimeout time.Duration

	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the keychain backend and, optionally, a running HTTP server",
	Long: "Write, read back and delete a throwaway secret in the configured scope. " +
		"With --url, also probe a keyring-mcp HTTP server's /health endpoint.",
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print results as JSON")
	checkCmd.Flags().StringVar(&checkURL, "url", "", "Health URL of a running server, e.g. http://127.0.0.1:8080/health")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "Per-check timeout")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	store, closeStore, err := openStore(cfg, "check")
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := []health.Result{
		health.Run(ctx, "keychain ("+cfg.Backend+")", checkTimeout, health.StoreCheck(store, cfg.Scope)),
	}
	if checkURL != "" {
		results = append(results, health.Run(ctx, "http "+checkURL, checkTimeout, health.HTTPCheck(nil, checkURL)))
	}

	out := cmd.OutOrStdout()
	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			mark := okStyle.Render("✓")
			if r.Status != health.StatusHealthy {
				mark = failStyle.Render("✗")
			}
			fmt.Fprintf(out, "%s %s %s\n", mark, keyStyle.Render(r.Name),
				dimStyle.Render(fmt.Sprintf("%s (%s)", r.Message, r.Duration.Round(time.Millisecond))))
		}
	}

	if !health.Healthy(results) {
		return errors.New("one or more checks failed")
	}
	return nil
}
