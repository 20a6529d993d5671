package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/pipeline"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/stage"
	"github.com/felixgeelhaar/pomgen/internal/tui"
)

// addInvokeFlags registers the flags shared by every stage command.
func addInvokeFlags(cmd *cobra.Command) {
	cmd.Flags().Int("retries", 0, "retry this many times when another invocation changed the registry first")
	cmd.Flags().Uint64("expect-version", 0, "fail if touched entries changed after this registry version")
	cmd.Flags().Bool("dry-run", false, "show the diff against the file on disk without writing anything")
}

// invoke runs one stage request and prints the response.
func invoke(cmd *cobra.Command, req pipeline.Request) error {
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
	if v, _ := cmd.Flags().GetUint64("expect-version"); v > 0 {
		req.Expected = &registry.Token{Version: v}
	}

	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		p, err := ws.Coordinator.Preview(cmd.Context(), req)
		if err != nil {
			return err
		}
		return cc.Print(previewView(p))
	}

	var resp pipeline.Response
	if retries > 0 {
		resp, err = ws.Coordinator.InvokeWithRetry(cmd.Context(), req, retries+1, defaultBackoff)
	} else {
		resp, err = ws.Coordinator.Invoke(cmd.Context(), req)
	}
	if err != nil {
		return err
	}
	return cc.Print(responseView(resp))
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", path), err)
	}
	return data, nil
}

// readYAML decodes a YAML (or JSON) file into v.
func readYAML(cmd *cobra.Command, path string, v any) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return nil
}

func newStoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "story NAME",
		Short: "Extract scenarios from a user story",
		Long: `Extract precondition/action/outcome scenarios from a user story and
write them as a Gherkin feature file under tests/features/.

The story may be Gherkin (Feature/Scenario/Given/When/Then) or plain
sentences of the form "As a <role>, I want to <action> so that <outcome>".`,
		Example: `  pomgen story "Cart Story" --text "As a shopper I want to add a product to my cart"
  pomgen story Checkout --file stories/checkout.feature
  cat checkout.txt | pomgen story Checkout --file -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")
			file, _ := cmd.Flags().GetString("file")
			switch {
			case text != "" && file != "":
				return errors.NewInvalidRequestError("use either --text or --file")
			case file != "":
				data, err := readInput(cmd, file)
				if err != nil {
					return err
				}
				text = string(data)
			case text == "" && tui.ShouldPrompt():
				var err error
				text, err = tui.PromptForText(tui.Prompt{
					Message:     fmt.Sprintf("Story text for %s", args[0]),
					Placeholder: "As a shopper, I want to add a product to my cart so that I can buy it",
					Required:    true,
				})
				if err != nil {
					return err
				}
			}
			return invoke(cmd, pipeline.Request{
				Stage:       stage.StageStory,
				LogicalName: args[0],
				Payload:     pipeline.Payload{Text: text},
			})
		},
	}
	cmd.Flags().String("text", "", "story text")
	cmd.Flags().StringP("file", "f", "", "read the story from a file, - for stdin")
	addInvokeFlags(cmd)
	return cmd
}

func newElementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "elements PAGE",
		Short: "Capture the interactive elements of a page",
		Long: `Capture the interactive elements of a page into an element set under
.pomgen/elements/. Elements come from an HTML snapshot or an element
report (--from); elements with unsupported roles are dropped and noted.

Re-running merges into the existing set: elements are matched by name,
new ones are added and existing ones updated.`,
		Example: `  pomgen elements "Login Page" --target /login --from snapshots/login.html
  pomgen elements "Login Page" --from report.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetString("target")
			from, _ := cmd.Flags().GetString("from")
			return invoke(cmd, pipeline.Request{
				Stage:       stage.StageElements,
				LogicalName: args[0],
				Payload:     pipeline.Payload{Target: target, Source: from},
			})
		},
	}
	cmd.Flags().String("target", "", "page address used by open(); relative to base_url unless absolute")
	cmd.Flags().String("from", "", "HTML snapshot or element report to discover elements from, relative to the project root")
	addInvokeFlags(cmd)
	return cmd
}

func newPageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "page PAGE",
		Short: "Generate the page object for a captured element set",
		Long: `Generate a page object class with one method per element, each calling
exactly one capability of the web interface. Run 'pomgen elements' for
the page first.`,
		Example: `  pomgen page "Login Page"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return invoke(cmd, pipeline.Request{Stage: stage.StagePage, LogicalName: args[0]})
		},
	}
	addInvokeFlags(cmd)
	return cmd
}

// parseOperation parses "name=Page.step,Page.step".
func parseOperation(s string) (domain.Operation, error) {
	name, steps, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(steps) == "" {
		return domain.Operation{}, errors.NewInvalidRequestError(
			fmt.Sprintf("operation %q must be written as name=Page.method[,Page.method...]", s))
	}
	op := domain.Operation{Name: strings.TrimSpace(name)}
	for _, step := range strings.Split(steps, ",") {
		if step = strings.TrimSpace(step); step != "" {
			op.Steps = append(op.Steps, step)
		}
	}
	return op, nil
}

func newWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow NAME",
		Short: "Compose page methods into a workflow",
		Long: `Generate a workflow class from page objects. Each operation is a sequence
of page method calls. Without --op the workflow gets one operation that
runs every method of the first page.`,
		Example: `  pomgen workflow Login --page "Login Page" \
    --op "sign in=Login Page.fill_email,Login Page.fill_password,Login Page.click_submit"
  pomgen workflow Checkout --page "Cart Page" --page "Payment Page" --ops checkout.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, _ := cmd.Flags().GetStringArray("page")
			opFlags, _ := cmd.Flags().GetStringArray("op")
			opsFile, _ := cmd.Flags().GetString("ops")

			var ops []domain.Operation
			if opsFile != "" {
				if err := readYAML(cmd, opsFile, &ops); err != nil {
					return err
				}
			}
			for _, s := range opFlags {
				op, err := parseOperation(s)
				if err != nil {
					return err
				}
				ops = append(ops, op)
			}
			return invoke(cmd, pipeline.Request{
				Stage:       stage.StageWorkflow,
				LogicalName: args[0],
				Payload:     pipeline.Payload{Pages: pages, Operations: ops},
			})
		},
	}
	cmd.Flags().StringArrayP("page", "p", nil, "page the workflow uses (repeatable)")
	cmd.Flags().StringArray("op", nil, "operation as name=Page.method,Page.method (repeatable)")
	cmd.Flags().String("ops", "", "YAML file with a list of {name, steps} operations")
	addInvokeFlags(cmd)
	return cmd
}

func newPersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona NAME",
		Short: "Group workflows into a persona",
		Long: `Generate a persona class delegating to workflow operations. Clashing
operation names across workflows are disambiguated with the workflow name.`,
		Example: `  pomgen persona Shopper --workflow Login --workflow Cart`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflows, _ := cmd.Flags().GetStringArray("workflow")
			return invoke(cmd, pipeline.Request{
				Stage:       stage.StagePersona,
				LogicalName: args[0],
				Payload:     pipeline.Payload{Workflows: workflows},
			})
		},
	}
	cmd.Flags().StringArrayP("workflow", "w", nil, "workflow the persona performs (repeatable)")
	addInvokeFlags(cmd)
	return cmd
}

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test NAME",
		Short: "Generate pytest tests for a story",
		Long: `Generate a pytest module with one test per scenario. Each test drives a
persona method matching the scenario action and asserts the outcome.
Scenarios come from a story extracted earlier (--story) or a YAML file
(--scenarios); the persona defaults to the one the story names.`,
		Example: `  pomgen test "Cart Tests" --story "Cart Story"
  pomgen test "Login Tests" --persona Shopper --scenarios login.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			story, _ := cmd.Flags().GetString("story")
			persona, _ := cmd.Flags().GetString("persona")
			file, _ := cmd.Flags().GetString("scenarios")

			var scenarios []domain.Scenario
			if file != "" {
				if err := readYAML(cmd, file, &scenarios); err != nil {
					return err
				}
			}
			return invoke(cmd, pipeline.Request{
				Stage:       stage.StageTest,
				LogicalName: args[0],
				Payload:     pipeline.Payload{Story: story, Persona: persona, Scenarios: scenarios},
			})
		},
	}
	cmd.Flags().String("story", "", "story whose scenarios to cover")
	cmd.Flags().String("persona", "", "persona the tests drive")
	cmd.Flags().String("scenarios", "", "YAML file with a list of scenarios")
	addInvokeFlags(cmd)
	return cmd
}

// defaultBackoff is the first pause of --retries; it doubles per attempt.
const defaultBackoff = 50 * time.Millisecond
