package domain

import (
	"fmt"
	"strings"
)

// Scenario is one precondition/action/outcome triple from a story.
type Scenario struct {
	Name            string `json:"name" yaml:"name"`
	Precondition    string `json:"precondition,omitempty" yaml:"precondition,omitempty"`
	Action          string `json:"action" yaml:"action"`
	ExpectedOutcome string `json:"expected_outcome" yaml:"expected_outcome"`
}

// Validate requires an action and an outcome; the precondition may be
// empty when a story states none.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Action) == "" {
		return fmt.Errorf("scenario %q has no action", s.Name)
	}
	if strings.TrimSpace(s.ExpectedOutcome) == "" {
		return fmt.Errorf("scenario %q has no expected outcome", s.Name)
	}
	return nil
}

// Operation is a named sequence of page-method steps, each written as
// "<page logical name>.<method>".
type Operation struct {
	Name  string   `json:"name" yaml:"name"`
	Steps []string `json:"steps" yaml:"steps"`
}

// Step is one parsed operation step.
type Step struct {
	Page   string
	Method string
}

// ParseStep splits "<page>.<method>" at the last dot so page names may
// themselves contain dots.
func ParseStep(s string) (Step, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return Step{}, fmt.Errorf("step %q must be written as <page>.<method>", s)
	}
	return Step{Page: strings.TrimSpace(s[:i]), Method: strings.TrimSpace(s[i+1:])}, nil
}

// String formats the step back into its textual form.
func (s Step) String() string {
	return s.Page + "." + s.Method
}
