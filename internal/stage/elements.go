package stage

import (
	"fmt"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/discovery"
	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// ElementsDir holds the imported descriptor sets, one YAML file per page.
const ElementsDir = ".pomgen/elements"

type elementFile struct {
	Page     string                     `yaml:"page"`
	Target   string                     `yaml:"target,omitempty"`
	Elements []domain.ElementDescriptor `yaml:"elements"`
}

// Elements normalizes raw discovered elements for page name and merges
// them into the page's stored descriptor set. The page entry is
// resolved here so that its identity is fixed from the first import.
func (g *Generators) Elements(tx *registry.Tx, name, target string, raw []discovery.RawElement) (Output, error) {
	label := target
	if label == "" {
		label = name
	}
	descs, dropped, err := discovery.Import(label, raw)
	if err != nil {
		return Output{}, err
	}
	c, err := tx.Resolve(name, registry.KindPage)
	if err != nil {
		return Output{}, err
	}

	prev, _ := tx.Elements(c.LogicalName)
	merged := discovery.Merge(prev.Descriptors, descs)
	if target == "" {
		target = prev.Target
	}

	p := path.Join(ElementsDir, c.Identity.FileStem+".yaml")
	if err := tx.PutElements(c.LogicalName, registry.ElementSet{
		Target:      target,
		Path:        p,
		Descriptors: merged.Descriptors,
	}); err != nil {
		return Output{}, err
	}

	data, err := yaml.Marshal(elementFile{Page: c.LogicalName, Target: target, Elements: merged.Descriptors})
	if err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode element set", err)
	}
	a, err := artifact.New(p, data)
	if err != nil {
		return Output{}, err
	}

	out := Output{Artifact: a, Component: c.LogicalName}
	if merged.Added > 0 || merged.Updated > 0 {
		out.Notes = append(out.Notes, fmt.Sprintf("%d added, %d updated", merged.Added, merged.Updated))
	}
	for _, d := range dropped {
		label := d.Name
		if label == "" {
			label = fmt.Sprintf("element %d", d.Index+1)
		}
		out.Notes = append(out.Notes, fmt.Sprintf("dropped %s: %s", label, d.Reason))
	}
	return out, nil
}
