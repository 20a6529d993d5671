package ux

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/pomgen/internal/config"
	"github.com/felixgeelhaar/pomgen/internal/pipeline"
)

// PathDefaults resolves the files pomgen keeps under a project root.
type PathDefaults struct {
	Root string
}

// NewPathDefaults returns defaults for root.
func NewPathDefaults(root string) *PathDefaults {
	return &PathDefaults{Root: root}
}

// Dir is the .pomgen directory.
func (pd *PathDefaults) Dir() string {
	return filepath.Join(pd.Root, config.Dir)
}

// ConfigFile is .pomgen/config.yaml.
func (pd *PathDefaults) ConfigFile() string {
	return config.Path(pd.Root)
}

// PlanFile is the plan `pomgen run` reads when no path is given.
func (pd *PathDefaults) PlanFile() string {
	return filepath.Join(pd.Dir(), "plan.yaml")
}

// CapabilitiesFile is the optional capability contract override.
func (pd *PathDefaults) CapabilitiesFile() string {
	return filepath.Join(pd.Dir(), "capabilities.yaml")
}

// Initialized reports whether `pomgen init` ran under Root.
func (pd *PathDefaults) Initialized() bool {
	_, err := os.Stat(pd.ConfigFile())
	return err == nil
}

// ValidateSetup checks that the project was initialized.
func (pd *PathDefaults) ValidateSetup() error {
	if !pd.Initialized() {
		return fmt.Errorf("%s not found. Run 'pomgen init' to set up your project", pd.ConfigFile())
	}
	return nil
}

// ValidateRequiredFile checks if a required file exists and provides helpful error
func ValidateRequiredFile(path string, fileType string, creationCommand string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("%s not found at: %s\n\nRun '%s' to create it", fileType, path, creationCommand)
	} else if err != nil {
		return fmt.Errorf("error accessing %s: %w", path, err)
	}
	return nil
}

// SuggestNextSteps names the command that advances the pipeline from s.
func SuggestNextSteps(s pipeline.State) string {
	switch s {
	case pipeline.Uninitiated:
		return "Capture elements with 'pomgen elements', then generate pages with 'pomgen page'"
	case pipeline.PagesResolved:
		return "Compose page methods into a workflow with 'pomgen workflow'"
	case pipeline.WorkflowsResolved:
		return "Group workflows into a persona with 'pomgen persona'"
	case pipeline.PersonasResolved:
		return "Generate tests for a story with 'pomgen test'"
	default:
		return "All stages have run; 'pomgen status' checks the files for drift"
	}
}
