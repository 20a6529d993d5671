package pipeline

import (
	"fmt"

	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/stage"
)

// State is how far the pipeline has progressed, derived from what the
// registry holds. It is never stored.
type State int

const (
	Uninitiated State = iota
	PagesResolved
	WorkflowsResolved
	PersonasResolved
	TestsGenerated
)

func (s State) String() string {
	switch s {
	case PagesResolved:
		return "PagesResolved"
	case WorkflowsResolved:
		return "WorkflowsResolved"
	case PersonasResolved:
		return "PersonasResolved"
	case TestsGenerated:
		return "TestsGenerated"
	default:
		return "Uninitiated"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Derive computes the state from registry entries. Each step requires
// the previous one and at least one generated entry of its kind.
func Derive(comps []registry.Component) State {
	have := make(map[registry.Kind]bool)
	for _, c := range comps {
		if c.Generated() {
			have[c.Kind] = true
		}
	}
	state := Uninitiated
	for _, step := range []struct {
		kind registry.Kind
		next State
	}{
		{registry.KindPage, PagesResolved},
		{registry.KindWorkflow, WorkflowsResolved},
		{registry.KindPersona, PersonasResolved},
		{registry.KindTest, TestsGenerated},
	} {
		if !have[step.kind] {
			break
		}
		state = step.next
	}
	return state
}

var prerequisites = map[stage.Name]State{
	stage.StageWorkflow: PagesResolved,
	stage.StagePersona:  WorkflowsResolved,
	stage.StageTest:     PersonasResolved,
}

// CheckPrerequisites rejects a stage whose prerequisite state has not
// been reached. Earlier stages are never run on the caller's behalf.
// The failure names the logical name the stage was invoked for.
func CheckPrerequisites(s stage.Name, name string, current State) error {
	need, ok := prerequisites[s]
	if !ok || current >= need {
		return nil
	}
	return errors.New(errors.ErrCodeStageOutOfOrder,
		fmt.Sprintf("stage %s requires %s, the pipeline is at %s", s, need, current)).
		WithNames(name).
		WithSuggestion(fmt.Sprintf("Run the stages before %s first ('pomgen status' shows progress)", s))
}
