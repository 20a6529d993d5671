package stage

import (
	"fmt"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/naming"
	"github.com/felixgeelhaar/pomgen/internal/pysrc"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// Persona generates a role class over workflows. Without operations it
// delegates every workflow method not yet delegated; when two workflows
// expose the same method the later one is suffixed with its stem.
func (g *Generators) Persona(tx *registry.Tx, name string, workflows []string, ops []domain.Operation) (Output, error) {
	prev, _ := tx.Lookup(name)
	wanted := append(append(append([]string(nil), prev.DependsOn...), workflows...), stepTargets(ops)...)
	if len(wanted) == 0 {
		return Output{}, errors.NewInvalidRequestError("a persona composes at least one workflow").WithNames(name)
	}
	comps, err := requireGenerated(tx, name, registry.KindWorkflow, wanted)
	if err != nil {
		return Output{}, err
	}
	c, err := tx.Resolve(name, registry.KindPersona)
	if err != nil {
		return Output{}, err
	}

	merged := mergeOps(c.Operations, ops)
	if len(ops) == 0 {
		for _, w := range workflows {
			wf, _ := tx.Lookup(w)
			merged = delegate(merged, wf)
		}
	}
	if len(merged) == 0 {
		return Output{}, errors.NewInvalidRequestError("persona has no operations; list workflows or operations").WithNames(name)
	}

	cp := newComposer(c.LogicalName, comps, true)
	extra := []pysrc.Param{{Name: userDataAttr, Annotation: "dict", Default: pysrc.Name("None")}}
	setup := []pysrc.Stmt{pysrc.Assign(pysrc.SelfAttr(userDataAttr), pysrc.Or(pysrc.Name(userDataAttr), pysrc.EmptyDict()))}
	return g.buildComposite(tx, c, cp, merged,
		fmt.Sprintf("Persona %s acting through %s.", c.LogicalName, joinNames(cp.names())), extra, setup)
}

// delegate appends a one-step operation for every method of wf that no
// operation delegates to yet.
func delegate(ops []domain.Operation, wf registry.Component) []domain.Operation {
	taken := make(map[string]bool)
	have := make(map[string]bool)
	for _, op := range ops {
		taken[naming.Snake(op.Name)] = true
		if len(op.Steps) == 1 {
			have[op.Steps[0]] = true
		}
	}
	for _, wop := range wf.Operations {
		method := naming.Snake(wop.Name)
		step := domain.Step{Page: wf.LogicalName, Method: method}.String()
		if have[step] || !wf.HasMethod(method) {
			continue
		}
		name := method
		if taken[name] {
			name = naming.Snake(method, wf.Identity.FileStem)
		}
		for base, n := name, 2; taken[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[name] = true
		have[step] = true
		ops = append(ops, domain.Operation{Name: name, Steps: []string{step}})
	}
	return ops
}
