package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

var kindHints = map[errors.Kind]string{
	errors.KindEmptyStory:              "Write at least one 'As a ..., I want to ...' sentence or a Gherkin scenario with steps",
	errors.KindNoElementsFound:         "Check the snapshot or element file; only supported roles are kept (see 'pomgen capabilities')",
	errors.KindUnknownCapability:       "List the supported actions with 'pomgen capabilities'",
	errors.KindNamingConflict:          "Pick a different logical name; 'pomgen registry show' lists the taken ones",
	errors.KindStaleRegistryState:      "Another invocation changed the registry; run the command again",
	errors.KindUnresolvedDependency:    "Generate the missing components first; 'pomgen status' shows what is pending",
	errors.KindScenarioPersonaMismatch: "Add the missing operation to a workflow of this persona, or pick another persona",
	errors.KindConfig:                  "Check .pomgen/config.yaml or run 'pomgen init'",
}

// EnhanceError adds a recovery hint to pipeline errors that carry no
// suggestion of their own. The error is updated in place.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}
	pe, ok := errors.As(err)
	if !ok || len(pe.Suggestions) > 0 {
		return err
	}
	hint, ok := kindHints[pe.Kind]
	if !ok {
		return err
	}
	pe.WithSuggestion(hint)
	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}

// PrintError writes err to w, highlighting the first line.
func PrintError(w io.Writer, err error, s Styles) {
	if err == nil {
		return
	}
	msg := err.Error()
	head, rest, _ := strings.Cut(msg, "\n")
	fmt.Fprintln(w, s.Failure.Render("Error: "+head))
	if rest != "" {
		fmt.Fprintln(w, s.Muted.Render(rest))
	}
}
