package stage

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/naming"
	"github.com/felixgeelhaar/pomgen/internal/pysrc"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// member is an upstream component a composing class holds as an
// attribute named after the member's file stem.
type member struct {
	comp registry.Component
	attr string
}

// composer turns operations into methods that call member methods.
type composer struct {
	owner   string
	members map[string]member
	order   []string
	// userData makes every parameter optional, falling back to
	// self.user_data.
	userData bool
}

func newComposer(owner string, comps []registry.Component, userData bool) *composer {
	cp := &composer{owner: owner, members: make(map[string]member), userData: userData}
	for _, c := range comps {
		if _, ok := cp.members[c.LogicalName]; ok {
			continue
		}
		cp.members[c.LogicalName] = member{comp: c, attr: c.Identity.FileStem}
		cp.order = append(cp.order, c.LogicalName)
	}
	sort.Strings(cp.order)
	return cp
}

func (cp *composer) lookup(name string) (member, bool) {
	n, err := domain.NewLogicalName(name)
	if err != nil {
		return member{}, false
	}
	m, ok := cp.members[n.String()]
	return m, ok
}

// compose builds the method for op. Steps run in order; the method
// returns the last step's value, or the last member's readiness check
// when the last step only acts.
func (cp *composer) compose(op domain.Operation) (*pysrc.Function, registry.Signature, error) {
	if naming.Key(op.Name) == "" {
		return nil, registry.Signature{}, errors.NewInvalidRequestError("operation name must contain a letter or digit").
			WithNames(cp.owner)
	}
	if len(op.Steps) == 0 {
		return nil, registry.Signature{}, errors.NewInvalidRequestError(
			fmt.Sprintf("operation %q has no steps", op.Name)).WithNames(cp.owner)
	}

	var (
		params []string
		seen   = make(map[string]bool)
		body   []pysrc.Stmt
		sig    registry.Signature
	)
	for i, raw := range op.Steps {
		step, err := domain.ParseStep(raw)
		if err != nil {
			return nil, registry.Signature{}, errors.Wrap(errors.ErrCodeRequestInvalid,
				fmt.Sprintf("invalid step in operation %q", op.Name), err).WithNames(cp.owner)
		}
		m, ok := cp.lookup(step.Page)
		if !ok {
			return nil, registry.Signature{}, errors.NewUnresolvedDependencyError(cp.owner, step.Page).
				WithSuggestion(fmt.Sprintf("Add %q to the components this %s composes", step.Page, cp.owner))
		}
		s, ok := m.comp.Methods[step.Method]
		if !ok {
			return nil, registry.Signature{}, errors.NewUnresolvedDependencyError(cp.owner, step.String()).
				WithSuggestion(fmt.Sprintf("%s exposes: %v", m.comp.LogicalName, m.comp.MethodNames()))
		}

		var args []pysrc.Expr
		for _, p := range s.Params {
			if !seen[p] {
				seen[p] = true
				params = append(params, p)
			}
			args = append(args, cp.arg(p))
		}
		call := pysrc.Call(pysrc.Attr(pysrc.SelfAttr(m.attr), step.Method), args...)

		if i < len(op.Steps)-1 {
			body = append(body, pysrc.Do(call))
			continue
		}
		switch {
		case valueReturn(s):
			body = append(body, pysrc.Return(call))
			sig.Returns = s.Returns
		case m.comp.HasMethod(LoadedMethod):
			body = append(body, pysrc.Do(call),
				pysrc.Return(pysrc.Call(pysrc.Attr(pysrc.SelfAttr(m.attr), LoadedMethod))))
			sig.Returns = "bool"
		default:
			body = append(body, pysrc.Do(call), pysrc.Return(pysrc.Self))
		}
	}

	fnParams := []pysrc.Param{{Name: "self"}}
	for _, p := range params {
		if cp.userData {
			fnParams = append(fnParams, pysrc.Param{Name: p, Default: pysrc.Name("None")})
		} else {
			fnParams = append(fnParams, pysrc.Param{Name: p})
		}
	}
	fn, err := pysrc.NewFunction(naming.Snake(op.Name), fnParams, body...)
	if err != nil {
		return nil, registry.Signature{}, errors.Wrap(errors.ErrCodeRequestInvalid,
			fmt.Sprintf("cannot build operation %q", op.Name), err).WithNames(cp.owner)
	}
	fn.WithReturns(sig.Returns).WithDoc(describe(op) + ".")
	sig.Params = params
	return fn, sig, nil
}

func (cp *composer) arg(p string) pysrc.Expr {
	if !cp.userData {
		return pysrc.Name(p)
	}
	get := pysrc.Call(pysrc.Attr(pysrc.SelfAttr(userDataAttr), "get"), pysrc.Str(p))
	return pysrc.Or(pysrc.Name(p), get)
}

// memberInits instantiates every member as self.<attr> = Class(web, base_url).
func (cp *composer) memberInits() []pysrc.Stmt {
	var out []pysrc.Stmt
	for _, n := range cp.order {
		m := cp.members[n]
		out = append(out, pysrc.Assign(pysrc.SelfAttr(m.attr),
			pysrc.Call(pysrc.Name(m.comp.Identity.ClassName), pysrc.Name(webParam), pysrc.Name(baseURLParam))))
	}
	return out
}

// importMembers adds an import for every member class.
func (cp *composer) importMembers(mod *pysrc.Module) []string {
	var refs []string
	for _, n := range cp.order {
		m := cp.members[n]
		mod.Import(m.comp.Identity.ImportRoute, m.comp.Identity.ClassName)
		refs = append(refs, m.comp.LogicalName)
	}
	return refs
}

func (cp *composer) names() []string { return append([]string(nil), cp.order...) }

func describe(op domain.Operation) string {
	if len(op.Steps) == 1 {
		return "Run " + op.Steps[0]
	}
	return fmt.Sprintf("Run %d steps from %s", len(op.Steps), op.Steps[0])
}

// mergeOps overlays incoming on existing by method name. Existing
// operations keep their position; new ones are appended.
func mergeOps(existing, incoming []domain.Operation) []domain.Operation {
	out := make([]domain.Operation, 0, len(existing)+len(incoming))
	idx := make(map[string]int)
	for _, op := range existing {
		idx[naming.Snake(op.Name)] = len(out)
		out = append(out, op)
	}
	for _, op := range incoming {
		key := naming.Snake(op.Name)
		if i, ok := idx[key]; ok {
			out[i] = op
			continue
		}
		idx[key] = len(out)
		out = append(out, op)
	}
	return out
}

// stepTargets returns the component names referenced by steps that
// parse; malformed steps are reported later by compose.
func stepTargets(ops []domain.Operation) []string {
	var out []string
	for _, op := range ops {
		for _, raw := range op.Steps {
			if s, err := domain.ParseStep(raw); err == nil {
				out = append(out, s.Page)
			}
		}
	}
	return out
}

func referenced(ops []domain.Operation, name string) bool {
	for _, n := range stepTargets(ops) {
		if k, err := domain.NewLogicalName(n); err == nil && k.String() == name {
			return true
		}
	}
	return false
}

// buildComposite assembles the class shared by workflows and personas.
func (g *Generators) buildComposite(tx *registry.Tx, c registry.Component, cp *composer, ops []domain.Operation, doc string, extra []pysrc.Param, extraInit []pysrc.Stmt) (Output, error) {
	cls, err := pysrc.NewClass(c.Identity.ClassName, doc)
	if err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeNamingConflict, "invalid class name", err).WithNames(c.LogicalName)
	}

	params := append([]pysrc.Param{{Name: baseURLParam, Annotation: "str"}}, extra...)
	inits := append([]pysrc.Stmt{pysrc.Assign(pysrc.SelfAttr(baseURLParam), pysrc.Name(baseURLParam))}, extraInit...)
	ctor, err := g.webInit(params, append(inits, cp.memberInits()...)...)
	if err != nil {
		return Output{}, err
	}
	if err := cls.Method(ctor); err != nil {
		return Output{}, err
	}

	reserved := map[string]bool{webParam: true, baseURLParam: true, userDataAttr: true}
	for _, n := range cp.order {
		reserved[cp.members[n].attr] = true
	}
	for _, op := range ops {
		fn, _, err := cp.compose(op)
		if err != nil {
			return Output{}, err
		}
		if reserved[fn.Name()] {
			return Output{}, errors.NewNamingConflictError(c.LogicalName,
				fmt.Sprintf("operation %s would shadow the attribute of the same name", fn.Name())).WithNames(op.Name)
		}
		if err := cls.Method(fn); err != nil {
			return Output{}, errors.NewNamingConflictError(c.LogicalName, err.Error()).WithNames(op.Name)
		}
	}

	if err := tx.RecordMethods(c.LogicalName, signatures(cls)); err != nil {
		return Output{}, err
	}
	if err := tx.SetOperations(c.LogicalName, ops); err != nil {
		return Output{}, err
	}
	if err := tx.AddDependencies(c.LogicalName, cp.names()...); err != nil {
		return Output{}, err
	}

	mod := moduleFor(tx, doc)
	mod.Import(g.contract.Module(), g.contract.Class())
	refs := cp.importMembers(mod)
	mod.AddClass(cls)
	a, err := renderPython(mod, c, refs)
	if err != nil {
		return Output{}, err
	}
	return Output{Artifact: a, Component: c.LogicalName, Python: true}, nil
}
