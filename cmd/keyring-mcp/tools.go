package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/benaskins/keyring-mcp/internal/keychain"
	"github.com/benaskins/keyring-mcp/internal/mcp"
)

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the MCP tool catalogue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The catalogue is static; no keychain access is needed to build it.
		tools := mcp.NewSecretRegistry(keychain.NewMemoryStore(), cfg.Scope).Tools()
		if toolsJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(mcp.ToolsListResult{Tools: tools})
		}
		printTools(cmd.OutOrStdout(), tools)
		return nil
	},
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Print the tools/list result as JSON")
	rootCmd.AddCommand(toolsCmd)
}

func printTools(w io.Writer, tools []mcp.Tool) {
	for i, t := range tools {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, titleStyle.Render(t.Name)+"  "+dimStyle.Render(t.Title))
		fmt.Fprintln(w, "  "+t.Description)

		names := make([]string, 0, len(t.InputSchema.Properties))
		for name := range t.InputSchema.Properties {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			p := t.InputSchema.Properties[name]
			var tags []string
			tags = append(tags, p.Type)
			if slices.Contains(t.InputSchema.Required, name) {
				tags = append(tags, "required")
			}
			fmt.Fprintf(w, "  %s (%s) %s\n", keyStyle.Render(name), strings.Join(tags, ", "), p.Description)
		}
	}
}
