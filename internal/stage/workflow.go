package stage

import (
	"fmt"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/naming"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// Workflow generates a task class composing page objects. Operations
// are merged with those recorded by earlier runs, so a workflow's
// methods never disappear. With no operations given, every listed page
// that no operation uses yet gets complete_<page>, which runs all of
// the page's interactions in order.
func (g *Generators) Workflow(tx *registry.Tx, name string, pages []string, ops []domain.Operation) (Output, error) {
	prev, _ := tx.Lookup(name)
	wanted := append(append(append([]string(nil), prev.DependsOn...), pages...), stepTargets(ops)...)
	if len(wanted) == 0 {
		return Output{}, errors.NewInvalidRequestError("a workflow composes at least one page").WithNames(name)
	}
	comps, err := requireGenerated(tx, name, registry.KindPage, wanted)
	if err != nil {
		return Output{}, err
	}
	c, err := tx.Resolve(name, registry.KindWorkflow)
	if err != nil {
		return Output{}, err
	}

	merged := mergeOps(c.Operations, ops)
	if len(ops) == 0 {
		for _, p := range pages {
			page, _ := tx.Lookup(p)
			if referenced(merged, page.LogicalName) {
				continue
			}
			merged = append(merged, defaultPageOp(tx, page))
		}
	}
	if len(merged) == 0 {
		return Output{}, errors.NewInvalidRequestError("workflow has no operations; list pages or operations").WithNames(name)
	}

	cp := newComposer(c.LogicalName, comps, false)
	return g.buildComposite(tx, c, cp, merged,
		fmt.Sprintf("Workflow %s over %s.", c.LogicalName, joinNames(cp.names())), nil, nil)
}

// defaultPageOp opens the page when it can and then runs each of its
// interactions in descriptor order.
func defaultPageOp(tx *registry.Tx, page registry.Component) domain.Operation {
	op := domain.Operation{Name: naming.Snake("complete", page.Identity.FileStem)}
	step := func(method string) {
		op.Steps = append(op.Steps, domain.Step{Page: page.LogicalName, Method: method}.String())
	}
	if page.HasMethod(openName) {
		step(openName)
	}
	set, _ := tx.Elements(page.LogicalName)
	for _, m := range pageMethods(set.Descriptors) {
		if m.interaction && page.HasMethod(m.name) {
			step(m.name)
		}
	}
	if len(op.Steps) == 0 {
		step(LoadedMethod)
	}
	return op
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	out := names[0]
	for _, n := range names[1 : len(names)-1] {
		out += ", " + n
	}
	return out + " and " + names[len(names)-1]
}
