package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pomgen/internal/mcpserver"
	"github.com/felixgeelhaar/pomgen/internal/version"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pipeline as MCP tools over stdio",
		Long: `Serve the pipeline to an MCP client (an editor or coding agent) over
stdin and stdout. Logs go to stderr.

Tools:
  generate_tests_from_user_story  story stage
  discover_page_elements          elements stage
  generate_page_object            page stage
  generate_task                   workflow stage
  generate_role                   persona stage
  generate_test_template          test stage
  list_tests                      generated test modules and functions
  get_framework_structure         pipeline state and components per layer
  get_test_coverage               story scenarios without a test

Every stage tool accepts dry_run and expect_version. Failures are
returned as tool errors carrying the failure kind.`,
		Example: `  pomgen mcp --root ./shop-tests`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ws, err := cc.OpenWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			retries, _ := cmd.Flags().GetInt("retries")
			srv := mcpserver.New(ws.Coordinator, mcpserver.Config{
				Version: version.GetInfo().Short(),
				Retries: retries,
				Logger:  ws.Logger,
			})
			return srv.ServeStdio(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int("retries", 2, "retries for invocations that lost the registry race")
	return cmd
}
