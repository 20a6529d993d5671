package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pomgen/internal/pipeline"
	"github.com/felixgeelhaar/pomgen/internal/ux"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [PLAN]",
		Short: "Run a plan of stage invocations in order",
		Long: `Run every step of a YAML plan through the pipeline, stopping at the
first failure. Steps completed before the failure stay committed.

A plan is a list of steps, each naming a stage, a logical name and the
stage inputs:

  steps:
    - stage: story
      name: Cart Story
      text: As a shopper I want to add a product to my cart
    - stage: elements
      name: Cart Page
      target: /cart
      source: snapshots/cart.html

PLAN defaults to .pomgen/plan.yaml.`,
		Example: `  pomgen run
  pomgen run plans/checkout.yaml -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			path := ux.NewPathDefaults(cc.Root).PlanFile()
			if len(args) == 1 {
				path = args[0]
			}
			if err := ux.ValidateRequiredFile(path, "plan", "pomgen run PLAN"); err != nil {
				return err
			}
			plan, err := pipeline.LoadPlan(path)
			if err != nil {
				return err
			}

			ws, err := cc.OpenWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			out, err := ws.Coordinator.Run(cmd.Context(), plan)
			if len(out) > 0 {
				if perr := cc.Print(runView(out)); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}
	return cmd
}
