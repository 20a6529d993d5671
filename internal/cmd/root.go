// Package cmd implements the pomgen command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the command tree. Each call returns a fresh
// tree so flag values never leak between executions.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pomgen",
		Short: "Generate layered Selenium test suites from user stories",
		Long: `pomgen turns user stories and captured page elements into a layered
Python test suite: page objects, workflows composed from page methods,
personas grouping workflows, and pytest modules exercising the personas.

Every stage records its component in a registry (.pomgen/registry.json by
default) so class names, import routes and file paths stay consistent
across invocations. Run the stages in order:

  pomgen story     extract scenarios from a story
  pomgen elements  capture the interactive elements of a page
  pomgen page      generate the page object
  pomgen workflow  compose page methods into a workflow
  pomgen persona   group workflows into a persona
  pomgen test      generate pytest tests for a story

or chain them all with 'pomgen run plan.yaml'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("root", "", "project root (default: nearest directory containing .pomgen)")
	pf.String("config", "", "config file (default: <root>/.pomgen/config.yaml)")
	pf.StringP("format", "o", "text", "output format: text, json or yaml")
	pf.Bool("no-color", false, "disable colored output")
	pf.String("log-level", "", "log level: debug, info, warn or error (overrides config)")
	pf.BoolP("quiet", "q", false, "print nothing on success")

	root.AddCommand(
		newInitCmd(),
		newStoryCmd(),
		newElementsCmd(),
		newPageCmd(),
		newWorkflowCmd(),
		newPersonaCmd(),
		newTestCmd(),
		newRunCmd(),
		newStatusCmd(),
		newRegistryCmd(),
		newCapabilitiesCmd(),
		newServeCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// SIGINT/SIGTERM by main.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
