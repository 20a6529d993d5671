package story

import (
	"strings"
)

// Feature renders a story as a Gherkin feature file. tag, when set,
// is emitted as the feature's tag line.
func Feature(st Story, tag string) string {
	var b strings.Builder
	if tag != "" {
		b.WriteString("@" + tag + "\n")
	}
	b.WriteString("Feature: " + oneLine(st.Title) + "\n")
	if st.Narrative != "" {
		b.WriteString("  " + oneLine(st.Narrative) + "\n")
	}
	for _, sc := range st.Scenarios {
		b.WriteString("\n  Scenario: " + oneLine(sc.Name) + "\n")
		if sc.Precondition != "" {
			b.WriteString("    Given " + oneLine(sc.Precondition) + "\n")
		}
		b.WriteString("    When " + oneLine(sc.Action) + "\n")
		b.WriteString("    Then " + oneLine(sc.ExpectedOutcome) + "\n")
	}
	return b.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
