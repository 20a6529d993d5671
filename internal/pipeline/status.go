package pipeline

import (
	"context"

	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// ComponentStatus is one entry of a status report.
type ComponentStatus struct {
	Summary
	Artifact string         `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	State    artifact.State `json:"state,omitempty" yaml:"state,omitempty"`
}

// StatusReport describes the registry and how the files on disk compare
// with what was generated.
type StatusReport struct {
	State      State             `json:"state" yaml:"state"`
	Version    uint64            `json:"version" yaml:"version"`
	Digest     string            `json:"digest" yaml:"digest"`
	Components []ComponentStatus `json:"components" yaml:"components"`
	Drifted    int               `json:"drifted" yaml:"drifted"`
	Missing    int               `json:"missing" yaml:"missing"`
}

// Status reads the registry and checks every recorded artifact.
func (c *Coordinator) Status(ctx context.Context) (StatusReport, error) {
	tx, err := c.reg.Begin()
	if err != nil {
		return StatusReport{}, err
	}
	tok := tx.Token()
	comps := tx.Components()
	report := StatusReport{
		State:      Derive(comps),
		Version:    tok.Version,
		Digest:     tok.Digest,
		Components: make([]ComponentStatus, 0, len(comps)),
	}
	for _, comp := range comps {
		if err := ctx.Err(); err != nil {
			return StatusReport{}, err
		}
		cs := ComponentStatus{Summary: Summarize(comp)}
		if comp.Generated() {
			cs.Artifact = comp.Artifact.Path
			st, err := c.writer.Check(comp.Artifact.Path, comp.Artifact.Digest)
			if err != nil {
				return StatusReport{}, err
			}
			cs.State = st
			switch st {
			case artifact.StateDrifted:
				report.Drifted++
			case artifact.StateMissing:
				report.Missing++
			}
		}
		report.Components = append(report.Components, cs)
	}
	return report, nil
}

// Pending lists the kinds whose stage has not produced any artifact
// yet, in pipeline order.
func (r StatusReport) Pending() []registry.Kind {
	have := make(map[registry.Kind]bool)
	for _, c := range r.Components {
		if c.Artifact != "" {
			have[c.Kind] = true
		}
	}
	var out []registry.Kind
	for _, k := range registry.Kinds {
		if !have[k] {
			out = append(out, k)
		}
	}
	return out
}
