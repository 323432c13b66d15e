package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"promocopy/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Inspect configured MCP tool servers",
}

var mcpToolsCmd = &cobra.Command{
	Use:   "tools [stage]",
	Short: "List discovered tools, optionally only those mapped to a stage",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := mcp.NewProvider(mcp.ProviderOptions{
			ServersPath: settings.MCPServersPath(),
			Transports:  mcp.DefaultTransports(),
			Logger:      logger,
		})
		defer provider.Close()

		ctx := cmd.Context()
		var tools []mcp.Tool
		if len(args) == 1 {
			var err error
			tools, err = provider.ToolsForStage(ctx, args[0], nil)
			if err != nil {
				return err
			}
		} else {
			tools = provider.AllTools(ctx)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVER\tTOOL\tDESCRIPTION")
		for _, t := range tools {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Server, t.Name, t.Description)
		}
		return tw.Flush()
	},
}
