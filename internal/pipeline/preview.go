package pipeline

import (
	"context"

	"github.com/felixgeelhaar/pomgen/internal/log"
	"github.com/felixgeelhaar/pomgen/internal/patch"
)

// Preview is what a stage would write, computed without committing.
type Preview struct {
	Stage string     `json:"stage" yaml:"stage"`
	Path  string     `json:"path" yaml:"path"`
	Entry Summary    `json:"entry" yaml:"entry"`
	Diff  patch.Diff `json:"diff" yaml:"diff"`
	Notes []string   `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Preview runs a stage through generation and verification and diffs
// the artifact against the file on disk. The registry and the file are
// left untouched.
func (c *Coordinator) Preview(ctx context.Context, req Request) (Preview, error) {
	tx, out, err := c.prepare(ctx, req)
	if err != nil {
		return Preview{}, err
	}
	current, exists, err := c.writer.Read(out.Artifact.Path())
	if err != nil {
		return Preview{}, err
	}
	entry, _ := tx.Lookup(out.Component)
	p := Preview{
		Stage: string(req.Stage),
		Path:  out.Artifact.Path(),
		Entry: Summarize(entry),
		Diff:  patch.Unified(out.Artifact.Path(), string(current), string(out.Artifact.Source()), !exists),
		Notes: out.Notes,
	}
	log.FromContext(ctx, c.logger).Debug("stage previewed",
		"stage", p.Stage,
		"path", p.Path,
		"changes", p.Diff.Stat(),
	)
	return p, nil
}
