package stage

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/naming"
	"github.com/felixgeelhaar/pomgen/internal/pysrc"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

const (
	byModule = "selenium.webdriver.common.by"
	urlConst = "URL"
	openName = "open"
	// LoadedMethod is the readiness check every page object exposes.
	LoadedMethod = "is_loaded"
)

var byStrategy = map[domain.Strategy]string{
	domain.StrategyCSS:   "CSS_SELECTOR",
	domain.StrategyXPath: "XPATH",
	domain.StrategyID:    "ID",
	domain.StrategyName:  "NAME",
}

// elementMethod is the page method generated for one descriptor.
type elementMethod struct {
	desc       domain.ElementDescriptor
	constant   string
	name       string
	params     []string
	capability string
	doc        string
	// interaction methods act on the page; the others switch context
	// or read from it.
	interaction bool
}

// pageMethods derives one method per descriptor, in descriptor order.
func pageMethods(descs []domain.ElementDescriptor) []elementMethod {
	taken := map[string]bool{urlConst: true}
	out := make([]elementMethod, 0, len(descs))
	for _, d := range descs {
		stem := naming.Snake(d.SuggestedName)
		constant := naming.Constant(d.SuggestedName)
		for base, n := constant, 2; taken[constant]; n++ {
			constant = fmt.Sprintf("%s_%d", base, n)
		}
		taken[constant] = true

		m := elementMethod{desc: d, constant: constant, interaction: true}
		switch d.Role {
		case domain.RoleInput:
			m.name = naming.Method("enter", stem)
			m.params = []string{stem}
			m.capability = "type_text"
			m.doc = fmt.Sprintf("Type into the %s field.", d.SuggestedName)
		case domain.RoleButton, domain.RoleLink:
			m.name = naming.Method("click", stem)
			m.capability = "click"
			m.doc = fmt.Sprintf("Click the %s %s.", d.SuggestedName, d.Role)
		case domain.RoleDropdown:
			m.name = naming.Method("select", stem)
			m.params = []string{stem}
			m.capability = "select_option"
			m.doc = fmt.Sprintf("Choose an option of %s.", d.SuggestedName)
		case domain.RoleUploadTarget:
			m.name = naming.Method("upload", stem)
			m.params = []string{naming.Snake(stem, "file")}
			m.capability = "upload_file"
			m.doc = fmt.Sprintf("Upload a file through %s.", d.SuggestedName)
		case domain.RoleFrame:
			m.name = naming.Method("switch_to", stem)
			m.capability = "switch_to_frame"
			m.interaction = false
			m.doc = fmt.Sprintf("Switch into the %s frame.", d.SuggestedName)
		case domain.RoleGrid:
			m.name = naming.Snake("get", stem, "rows")
			m.capability = "query_grid_rows"
			m.interaction = false
			m.doc = fmt.Sprintf("Return the rows of %s.", d.SuggestedName)
		}
		out = append(out, m)
	}
	return out
}

// pageURL classifies a page target: absolute URLs are opened as they
// are, paths are joined to the base URL, anything else has no URL.
func pageURL(target string) (url string, relative bool, ok bool) {
	switch {
	case strings.Contains(target, "://"):
		return target, false, true
	case strings.HasPrefix(target, "/"):
		return target, true, true
	}
	return "", false, false
}

// Page generates the page object for name from its imported elements.
func (g *Generators) Page(tx *registry.Tx, name string) (Output, error) {
	set, ok := tx.Elements(name)
	if !ok || len(set.Descriptors) == 0 {
		return Output{}, errors.NewNoElementsFoundError(name).
			WithSuggestion(fmt.Sprintf("Import elements first: pomgen elements %q --from <report>", name))
	}
	c, err := tx.Resolve(name, registry.KindPage)
	if err != nil {
		return Output{}, err
	}

	cls, err := pysrc.NewClass(c.Identity.ClassName, fmt.Sprintf("Page object for %s.", c.LogicalName))
	if err != nil {
		return Output{}, errors.Wrap(errors.ErrCodeNamingConflict, "invalid class name", err).WithNames(c.LogicalName)
	}

	url, relative, hasURL := pageURL(set.Target)
	if hasURL {
		if err := cls.Const(urlConst, pysrc.Str(url)); err != nil {
			return Output{}, err
		}
	}
	methods := pageMethods(set.Descriptors)
	for _, m := range methods {
		locator := pysrc.Tuple(pysrc.Attr(pysrc.Name("By"), byStrategy[m.desc.Strategy]), pysrc.Str(m.desc.Value))
		if err := cls.Const(m.constant, locator); err != nil {
			return Output{}, err
		}
	}

	ctor, err := g.webInit([]pysrc.Param{{Name: baseURLParam, Annotation: "str", Default: pysrc.Str("")}},
		pysrc.Assign(pysrc.SelfAttr(baseURLParam), pysrc.Name(baseURLParam)))
	if err != nil {
		return Output{}, err
	}
	fns := []*pysrc.Function{ctor}

	if hasURL {
		target := pysrc.SelfAttr(urlConst)
		if relative {
			target = pysrc.Add(pysrc.SelfAttr(baseURLParam), target)
		}
		open, err := g.chained(openName, nil, "navigate_to", []capability.Arg{capability.Value(pysrc.Source(target))})
		if err != nil {
			return Output{}, err
		}
		fns = append(fns, open.WithDoc("Navigate to the page."))
	}

	for _, m := range methods {
		args := []capability.Arg{capability.Locator(pysrc.Source(pysrc.SelfAttr(m.constant)))}
		for _, p := range m.params {
			args = append(args, capability.Value(p))
		}
		var fn *pysrc.Function
		if m.desc.Role == domain.RoleGrid {
			fn, err = g.returning(m.name, nil, "list", m.capability, args)
		} else {
			fn, err = g.chained(m.name, m.params, m.capability, args)
		}
		if err != nil {
			return Output{}, err
		}
		fns = append(fns, fn.WithDoc(m.doc))
	}

	loaded, err := g.returning(LoadedMethod, nil, "bool", "is_element_displayed",
		[]capability.Arg{capability.Locator(pysrc.Source(pysrc.SelfAttr(methods[0].constant)))})
	if err != nil {
		return Output{}, err
	}
	fns = append(fns, loaded.WithDoc("Report whether the page is displayed."))

	for _, fn := range fns {
		if err := cls.Method(fn); err != nil {
			return Output{}, errors.NewNamingConflictError(c.LogicalName, err.Error())
		}
	}
	if err := tx.RecordMethods(c.LogicalName, signatures(cls)); err != nil {
		return Output{}, err
	}

	mod := moduleFor(tx, fmt.Sprintf("Page object for %s.", c.LogicalName))
	mod.Import(byModule, "By")
	mod.Import(g.contract.Module(), g.contract.Class())
	mod.AddClass(cls)
	a, err := renderPython(mod, c, nil)
	if err != nil {
		return Output{}, err
	}
	return Output{Artifact: a, Component: c.LogicalName, Python: true}, nil
}

// chained builds a method that invokes a capability and returns self.
// It carries no return annotation: the class is not yet defined while
// its body is evaluated.
func (g *Generators) chained(name string, params []string, method string, args []capability.Arg) (*pysrc.Function, error) {
	call, err := g.invoke(method, args)
	if err != nil {
		return nil, err
	}
	return pysrc.NewFunction(name, selfParams(params), pysrc.Do(call), pysrc.Return(pysrc.Self))
}

// returning builds a method that returns a capability's result.
func (g *Generators) returning(name string, params []string, returns, method string, args []capability.Arg) (*pysrc.Function, error) {
	call, err := g.invoke(method, args)
	if err != nil {
		return nil, err
	}
	fn, err := pysrc.NewFunction(name, selfParams(params), pysrc.Return(call))
	if err != nil {
		return nil, err
	}
	return fn.WithReturns(returns), nil
}

func (g *Generators) invoke(method string, args []capability.Arg) (pysrc.Expr, error) {
	inv, err := g.contract.Call(method, args...)
	if err != nil {
		return nil, err
	}
	return pysrc.Capability(pysrc.SelfAttr(webParam), inv)
}

func selfParams(names []string) []pysrc.Param {
	out := []pysrc.Param{{Name: "self"}}
	for _, n := range names {
		out = append(out, pysrc.Param{Name: n})
	}
	return out
}
