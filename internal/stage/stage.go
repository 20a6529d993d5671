// Package stage holds the six generators of the pipeline. Each reads
// upstream entries from a registry transaction, records its own entry
// in the same transaction and returns the artifact to write. Nothing
// here commits or touches the file system; the coordinator does both
// only after the artifact has been verified.
package stage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/pysrc"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// Name identifies a stage.
type Name string

const (
	StageStory    Name = "story"
	StageElements Name = "elements"
	StagePage     Name = "page"
	StageWorkflow Name = "workflow"
	StagePersona  Name = "persona"
	StageTest     Name = "test"
)

// Names lists the stages in pipeline order.
var Names = []Name{StageStory, StageElements, StagePage, StageWorkflow, StagePersona, StageTest}

// ParseName parses a stage name.
func ParseName(s string) (Name, error) {
	for _, n := range Names {
		if string(n) == strings.ToLower(strings.TrimSpace(s)) {
			return n, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Output is what a generator produced.
type Output struct {
	Artifact artifact.Artifact
	// Component is the logical name of the entry the artifact belongs to.
	Component string
	// Python reports whether the artifact is Python source to verify.
	Python bool
	// Notes are human-readable remarks, such as dropped elements.
	Notes []string
}

// Generators builds artifacts against one capability contract.
type Generators struct {
	contract *capability.Contract
}

// New returns generators using contract.
func New(contract *capability.Contract) *Generators {
	return &Generators{contract: contract}
}

// Contract returns the capability contract in use.
func (g *Generators) Contract() *capability.Contract { return g.contract }

const (
	webParam     = "web"
	baseURLParam = "base_url"
	userDataAttr = "user_data"
)

// valueReturn reports whether a method returns something worth handing
// back to the caller rather than the receiver for chaining.
func valueReturn(sig registry.Signature) bool {
	switch sig.Returns {
	case "bool", "list", "str":
		return true
	}
	return false
}

// requireGenerated looks up upstream entries of kind and fails with
// UnresolvedDependency naming every one that is missing, of another
// kind or not generated yet.
func requireGenerated(tx *registry.Tx, from string, kind registry.Kind, names []string) ([]registry.Component, error) {
	var (
		out     []registry.Component
		missing []string
		seen    = make(map[string]bool)
	)
	for _, n := range names {
		c, ok := tx.Lookup(n)
		switch {
		case !ok:
			missing = append(missing, n)
		case c.Kind != kind:
			return nil, errors.NewNamingConflictError(c.LogicalName,
				fmt.Sprintf("is a %s, expected a %s", c.Kind, kind))
		case !c.Generated():
			missing = append(missing, c.LogicalName)
		case !seen[c.LogicalName]:
			seen[c.LogicalName] = true
			out = append(out, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewUnresolvedDependencyError(from, missing...).
			WithSuggestion(fmt.Sprintf("Generate the %s entries first", kind))
	}
	return out, nil
}

// moduleFor starts a module whose local imports are the project's.
func moduleFor(tx *registry.Tx, doc string) *pysrc.Module {
	return pysrc.NewModule(doc, tx.Layout().Namespace)
}

// renderPython renders m into an artifact at c's file path.
func renderPython(m *pysrc.Module, c registry.Component, refs []string) (artifact.Artifact, error) {
	src, err := m.Render()
	if err != nil {
		return artifact.Artifact{}, errors.Wrap(errors.ErrCodeIncompleteArtifact,
			fmt.Sprintf("cannot render %s", c.Identity.FilePath), err).WithNames(c.LogicalName)
	}
	sort.Strings(refs)
	return artifact.New(c.Identity.FilePath, []byte(src), refs...)
}

// signatures collects the recorded signature of every method of a class.
func signatures(c *pysrc.Class, skip ...string) map[string]registry.Signature {
	out := make(map[string]registry.Signature)
	for _, f := range c.Methods() {
		if strings.HasPrefix(f.Name(), "_") || contains(skip, f.Name()) {
			continue
		}
		out[f.Name()] = registry.Signature{Params: f.Params(), Returns: f.Returns()}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// webInit builds __init__(self, web, base_url[, user_data]) which stores
// its arguments and instantiates members.
func (g *Generators) webInit(extra []pysrc.Param, body ...pysrc.Stmt) (*pysrc.Function, error) {
	params := []pysrc.Param{
		{Name: "self"},
		{Name: webParam, Annotation: g.contract.Class()},
	}
	params = append(params, extra...)
	stmts := []pysrc.Stmt{pysrc.Assign(pysrc.SelfAttr(webParam), pysrc.Name(webParam))}
	return pysrc.NewFunction("__init__", params, append(stmts, body...)...)
}
