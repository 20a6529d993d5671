package pipeline

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

// Plan is an ordered list of invocations, run by `pomgen run`.
type Plan struct {
	Steps []Request `yaml:"steps" json:"steps"`
}

// LoadPlan reads a YAML plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read plan %s", path), err)
	}
	return ParsePlan(path, data)
}

// ParsePlan decodes a YAML plan and validates every step.
func ParsePlan(name string, data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.NewFileUnmarshalError(name, "YAML", err)
	}
	if len(p.Steps) == 0 {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("plan %s has no steps", name))
	}
	for i, s := range p.Steps {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &p, nil
}

// Run invokes the plan's steps in order and stops at the first failure.
// Responses of the steps that succeeded are returned either way.
func (c *Coordinator) Run(ctx context.Context, p *Plan) ([]Response, error) {
	out := make([]Response, 0, len(p.Steps))
	for i, step := range p.Steps {
		resp, err := c.Invoke(ctx, step)
		if err != nil {
			return out, fmt.Errorf("step %d (%s %q): %w", i+1, step.Stage, step.LogicalName, err)
		}
		out = append(out, resp)
	}
	return out, nil
}
