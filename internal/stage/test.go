package stage

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/naming"
	"github.com/felixgeelhaar/pomgen/internal/pysrc"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// Fixture names the generated tests take from conftest.py.
const (
	WebFixture    = "web_interface"
	ConfigFixture = "config"
)

// TestInput selects what a test module covers. Scenarios given inline
// take precedence over the story's; the story still tags the tests.
// Persona defaults to the persona named by the story.
type TestInput struct {
	Persona   string
	Story     string
	Scenarios []domain.Scenario
}

// Test generates one pytest function per scenario. Each instantiates
// the persona, calls the persona method whose name best overlaps the
// scenario's action and asserts the result with the expected outcome as
// the message.
func (g *Generators) Test(tx *registry.Tx, name string, in TestInput) (Output, error) {
	var (
		scenarios = in.Scenarios
		deps      []string
		marker    string
		title     string
	)

	if in.Story != "" {
		sc, ok := tx.Lookup(in.Story)
		if !ok || sc.Kind != registry.KindStory {
			return Output{}, errors.NewUnresolvedDependencyError(name, in.Story).
				WithSuggestion(fmt.Sprintf("Extract the story first: pomgen story %q", in.Story))
		}
		rec, _ := tx.Story(sc.LogicalName)
		if len(scenarios) == 0 {
			scenarios = rec.Scenarios
		}
		if in.Persona == "" && rec.Persona != "" {
			in.Persona = personaNamed(tx, rec.Persona)
		}
		deps = append(deps, sc.LogicalName)
		marker = sc.Identity.FileStem
		title = rec.Title
	}
	if len(scenarios) == 0 {
		return Output{}, errors.NewEmptyStoryError(name)
	}
	for _, sc := range scenarios {
		if err := sc.Validate(); err != nil {
			return Output{}, errors.Wrap(errors.ErrCodeRequestInvalid, "invalid scenario", err).WithNames(name)
		}
	}
	if in.Persona == "" {
		return Output{}, errors.NewInvalidRequestError("a test needs a persona").WithNames(name)
	}

	personas, err := requireGenerated(tx, name, registry.KindPersona, []string{in.Persona})
	if err != nil {
		return Output{}, err
	}
	persona := personas[0]
	deps = append(deps, persona.LogicalName)

	c, err := tx.Resolve(name, registry.KindTest)
	if err != nil {
		return Output{}, err
	}
	if marker == "" {
		marker = strings.TrimPrefix(c.Identity.FileStem, "test_")
	}
	if title == "" {
		title = c.LogicalName
	}

	mod := moduleFor(tx, fmt.Sprintf("Tests for %s.", title))
	mod.Import("pytest")
	mod.Import(persona.Identity.ImportRoute, persona.Identity.ClassName)

	methods := make(map[string]registry.Signature, len(scenarios))
	taken := make(map[string]bool)
	for _, sc := range scenarios {
		method, ok := matchMethod(sc, persona)
		if !ok {
			return Output{}, errors.NewScenarioPersonaMismatchError(sc.Name, persona.LogicalName).
				WithSuggestion(fmt.Sprintf("%s exposes: %s", persona.LogicalName, strings.Join(persona.MethodNames(), ", ")))
		}

		label := sc.Name
		if naming.Key(label) == "" {
			label = sc.Action
		}
		fnName := naming.Snake("test", label)
		for base, n := fnName, 2; taken[fnName]; n++ {
			fnName = fmt.Sprintf("%s_%d", base, n)
		}
		taken[fnName] = true

		var args []pysrc.Expr
		for _, p := range persona.Methods[method].Params {
			args = append(args, pysrc.Str(SampleValue(p)))
		}
		fn, err := pysrc.NewFunction(fnName,
			[]pysrc.Param{{Name: WebFixture}, {Name: ConfigFixture}},
			pysrc.Assign(pysrc.Name("persona"), pysrc.Call(pysrc.Name(persona.Identity.ClassName),
				pysrc.Name(WebFixture), pysrc.Index(pysrc.Name(ConfigFixture), pysrc.Str("url")))),
			pysrc.Assign(pysrc.Name("result"), pysrc.Call(pysrc.Attr(pysrc.Name("persona"), method), args...)),
			pysrc.Assert(pysrc.Name("result"), sc.ExpectedOutcome),
		)
		if err != nil {
			return Output{}, errors.Wrap(errors.ErrCodeRequestInvalid, "cannot build test", err).WithNames(sc.Name)
		}
		fn.WithDecorator(pysrc.Attr(pysrc.Attr(pysrc.Name("pytest"), "mark"), marker)).WithDoc(gherkinDoc(sc))
		mod.AddFunction(fn)
		methods[fnName] = registry.Signature{Params: []string{WebFixture, ConfigFixture}}
	}

	if err := tx.ReplaceMethods(c.LogicalName, methods); err != nil {
		return Output{}, err
	}
	if err := tx.AddDependencies(c.LogicalName, deps...); err != nil {
		return Output{}, err
	}

	a, err := renderPython(mod, c, deps)
	if err != nil {
		return Output{}, err
	}
	return Output{Artifact: a, Component: c.LogicalName, Python: true}, nil
}

// personaNamed maps a persona mentioned in story text ("shopper") to
// the registered persona with the same identifier key ("Shopper").
func personaNamed(tx *registry.Tx, mention string) string {
	for _, c := range tx.Components(registry.KindPersona) {
		if naming.Key(c.LogicalName) == naming.Key(mention) {
			return c.LogicalName
		}
	}
	return mention
}

// matchMethod picks the persona method sharing the most words with the
// scenario's action, falling back to its name. Ties go to the method
// that sorts first.
func matchMethod(sc domain.Scenario, persona registry.Component) (string, bool) {
	for _, phrase := range []string{sc.Action, sc.Name} {
		best, score := "", 0
		for _, m := range persona.MethodNames() {
			if s := naming.Overlap(phrase, m); s > score {
				best, score = m, s
			}
		}
		if score > 0 {
			return best, true
		}
	}
	return "", false
}

func gherkinDoc(sc domain.Scenario) string {
	var lines []string
	if sc.Precondition != "" {
		lines = append(lines, "Given "+sc.Precondition)
	}
	lines = append(lines, "When "+sc.Action, "Then "+sc.ExpectedOutcome)
	return strings.Join(lines, "\n")
}

// SampleValue returns the deterministic argument a generated test
// passes for a parameter.
func SampleValue(param string) string {
	words := naming.Tokens(param)
	has := func(keys ...string) bool {
		for _, w := range words {
			for _, k := range keys {
				if w == k {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has("email", "mail"):
		return "user@example.com"
	case has("password", "pass", "pwd"):
		return "Secret123!"
	case has("file", "upload", "attachment"):
		return "tests/data/sample.txt"
	case has("quantity", "qty", "count", "number", "amount"):
		return "1"
	case has("phone", "mobile"):
		return "5550100"
	case has("url", "link"):
		return "https://example.com"
	case has("name", "username", "user"):
		return "Test User"
	case len(words) == 0:
		return "sample"
	default:
		return "sample " + strings.Join(words, " ")
	}
}
