package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pomgen/internal/exitcode"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the pipeline state and check generated files",
		Long: `Show the pipeline state derived from the registry and compare every
generated file with the digest recorded when it was written.

With --check, status exits with code 4 when any file drifted or is
missing, which makes it usable as a CI gate.`,
		Example: `  pomgen status
  pomgen status --check -q`,
		Args: cobra.NoArgs,
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

			report, err := ws.Coordinator.Status(cmd.Context())
			if err != nil {
				return err
			}
			if err := cc.Print(statusView(report)); err != nil {
				return err
			}
			if check, _ := cmd.Flags().GetBool("check"); check && report.Drifted+report.Missing > 0 {
				return fmt.Errorf("%d drifted, %d missing: %w", report.Drifted, report.Missing, exitcode.ErrDrift)
			}
			return nil
		},
	}
	cmd.Flags().Bool("check", false, "exit non-zero when generated files drifted or are missing")
	return cmd
}
