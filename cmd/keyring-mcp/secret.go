package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/benaskins/keyring-mcp/internal/keychain"
)

var (
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle = lipgloss.NewStyle().Bold(true)
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage keyring-mcp secrets from the command line",
	Long:  "Read and write the same secrets the MCP tools see, under the configured scope.",
}

var secretSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a secret",
	Long:  "Store a secret. If value is omitted, it is prompted for on a terminal or read from stdin.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cfg, "cli")
		if err != nil {
			return err
		}
		defer closeStore()

		key := args[0]
		var value string
		if len(args) == 2 {
			value = args[1]
		} else if value, err = readSecretValue(cmd); err != nil {
			return err
		}

		if err := store.Set(cfg.Scope, key, value); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓")+" stored "+keyStyle.Render(key))
		return nil
	},
}

var secretGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a secret's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cfg, "cli")
		if err != nil {
			return err
		}
		defer closeStore()

		val, err := store.Get(cfg.Scope, args[0])
		if errors.Is(err, keychain.ErrNotFound) {
			return fmt.Errorf("no secret found with key %q", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), val)
		return nil
	},
}

var secretListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List secret keys",
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cfg, "cli")
		if err != nil {
			return err
		}
		defer closeStore()

		keys, err := store.List(cfg.Scope)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(keys) == 0 {
			fmt.Fprintln(out, dimStyle.Render("No secrets stored in "+cfg.Scope))
			return nil
		}
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s (%d)", cfg.Scope, len(keys))))
		for _, k := range keys {
			fmt.Fprintln(out, "  "+keyStyle.Render(k))
		}
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:     "delete <key>",
	Short:   "Remove a secret",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore(cfg, "cli")
		if err != nil {
			return err
		}
		defer closeStore()

		existed, err := store.Delete(cfg.Scope, args[0])
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("no secret found with key %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓")+" deleted "+keyStyle.Render(args[0]))
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
	secretCmd.AddCommand(secretGetCmd)
	secretCmd.AddCommand(secretListCmd)
	secretCmd.AddCommand(secretDeleteCmd)
	rootCmd.AddCommand(secretCmd)
}

// readSecretValue prompts without echo on a terminal, otherwise reads all of
// stdin and strips the trailing newline.
func readSecretValue(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Enter secret value: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
