package pipeline

import (
	"fmt"

	"github.com/felixgeelhaar/pomgen/internal/discovery"
	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/stage"
)

// Request is the uniform invocation of one stage.
type Request struct {
	Stage       stage.Name    `json:"stage" yaml:"stage"`
	LogicalName string        `json:"logical_name" yaml:"name"`
	Kind        registry.Kind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Payload     Payload       `json:"payload" yaml:",inline"`

	// Expected guards the commit: entries touched by the stage must not
	// have changed since this token was read.
	Expected *registry.Token `json:"expected,omitempty" yaml:"expected,omitempty"`
}

// Payload carries the stage-specific inputs. Each stage reads only its
// own fields.
type Payload struct {
	// story
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// elements: Target is the page address used by open(); Source is a
	// snapshot or element report to discover from when Elements is empty.
	Target   string                 `json:"target,omitempty" yaml:"target,omitempty"`
	Source   string                 `json:"source,omitempty" yaml:"source,omitempty"`
	Elements []discovery.RawElement `json:"elements,omitempty" yaml:"elements,omitempty"`

	// workflow, persona
	Pages      []string           `json:"pages,omitempty" yaml:"pages,omitempty"`
	Workflows  []string           `json:"workflows,omitempty" yaml:"workflows,omitempty"`
	Operations []domain.Operation `json:"operations,omitempty" yaml:"operations,omitempty"`

	// test
	Persona   string            `json:"persona,omitempty" yaml:"persona,omitempty"`
	Story     string            `json:"story,omitempty" yaml:"story,omitempty"`
	Scenarios []domain.Scenario `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

var stageKinds = map[stage.Name]registry.Kind{
	stage.StageStory:    registry.KindStory,
	stage.StageElements: registry.KindPage,
	stage.StagePage:     registry.KindPage,
	stage.StageWorkflow: registry.KindWorkflow,
	stage.StagePersona:  registry.KindPersona,
	stage.StageTest:     registry.KindTest,
}

// KindFor returns the registry kind a stage produces.
func KindFor(s stage.Name) (registry.Kind, bool) {
	k, ok := stageKinds[s]
	return k, ok
}

// Validate checks the request shape before any registry access.
func (r Request) Validate() error {
	want, ok := KindFor(r.Stage)
	if !ok {
		return errors.NewInvalidRequestError(fmt.Sprintf("unknown stage %q", r.Stage)).
			WithSuggestion(fmt.Sprintf("Stages: %v", stage.Names))
	}
	if _, err := domain.NewLogicalName(r.LogicalName); err != nil {
		return errors.Wrap(errors.ErrCodeRequestInvalid, "invalid logical name", err).WithNames(r.LogicalName)
	}
	if r.Kind != "" && r.Kind != want {
		return errors.NewInvalidRequestError(
			fmt.Sprintf("stage %s produces a %s, not a %s", r.Stage, want, r.Kind)).WithNames(r.LogicalName)
	}
	switch r.Stage {
	case stage.StageStory:
		if r.Payload.Text == "" {
			return errors.NewInvalidRequestError("story stage needs text").WithNames(r.LogicalName)
		}
	case stage.StageTest:
		if r.Payload.Story == "" && len(r.Payload.Scenarios) == 0 {
			return errors.NewInvalidRequestError("test stage needs a story or scenarios").WithNames(r.LogicalName)
		}
	}
	return nil
}

// Summary is the registry entry as reported to callers.
type Summary struct {
	LogicalName string        `json:"logical_name" yaml:"logical_name"`
	Kind        registry.Kind `json:"kind" yaml:"kind"`
	ClassName   string        `json:"class_name" yaml:"class_name"`
	ImportRoute string        `json:"import_route" yaml:"import_route"`
	FilePath    string        `json:"file_path" yaml:"file_path"`
	Methods     []string      `json:"methods,omitempty" yaml:"methods,omitempty"`
	DependsOn   []string      `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Revision    uint64        `json:"revision" yaml:"revision"`
}

// Summarize reduces a registry entry to a Summary.
func Summarize(c registry.Component) Summary {
	return Summary{
		LogicalName: c.LogicalName,
		Kind:        c.Kind,
		ClassName:   c.Identity.ClassName,
		ImportRoute: c.Identity.ImportRoute,
		FilePath:    c.Identity.FilePath,
		Methods:     c.MethodNames(),
		DependsOn:   append([]string(nil), c.DependsOn...),
		Revision:    c.Revision,
	}
}

// Response is the result of a successful invocation.
type Response struct {
	InvocationID    string   `json:"invocation_id" yaml:"invocation_id"`
	Stage           string   `json:"stage" yaml:"stage"`
	Path            string   `json:"path" yaml:"path"`
	Source          string   `json:"source" yaml:"source"`
	Entry           Summary  `json:"entry" yaml:"entry"`
	Written         bool     `json:"written" yaml:"written"`
	RegistryVersion uint64   `json:"registry_version" yaml:"registry_version"`
	Notes           []string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Failure is the structured form of a failed invocation.
type Failure struct {
	Kind        errors.Kind `json:"kind" yaml:"kind"`
	Code        string      `json:"code,omitempty" yaml:"code,omitempty"`
	Message     string      `json:"message" yaml:"message"`
	Names       []string    `json:"names,omitempty" yaml:"names,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Retryable   bool        `json:"retryable" yaml:"retryable"`
}

// FailureFrom converts err into a Failure. Errors raised outside the
// pipeline are reported as IO failures.
func FailureFrom(err error) Failure {
	pe, ok := errors.As(err)
	if !ok {
		return Failure{Kind: errors.KindIO, Message: err.Error()}
	}
	msg := pe.Message
	if pe.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, pe.Cause)
	}
	return Failure{
		Kind:        pe.Kind,
		Code:        string(pe.Code),
		Message:     msg,
		Names:       append([]string(nil), pe.Names...),
		Suggestions: append([]string(nil), pe.Suggestions...),
		Retryable:   pe.Retryable(),
	}
}
