package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/discovery"
	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/log"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/stage"
)

const shopperPlan = `
steps:
  - stage: story
    name: Cart Story
    text: As a shopper I want to add a product to my cart so that the cart counter increments
  - stage: elements
    name: Product Page
    target: https://shop.example/product/1
    elements:
      - suggested_name: Add to Cart
        role: button
        locator: "#add-to-cart"
  - stage: page
    name: Product Page
  - stage: workflow
    name: Cart
    pages: [Product Page]
    operations:
      - name: addProductToCart
        steps: [Product Page.click_add_to_cart]
  - stage: persona
    name: Shopper
    workflows: [Cart]
  - stage: test
    name: Cart Tests
    story: Cart Story
`

type fixture struct {
	root  string
	store registry.Store
	co    *Coordinator
	logs  *bytes.Buffer
}

func newFixture(t *testing.T, store registry.Store) *fixture {
	t.Helper()
	root := t.TempDir()
	if store == nil {
		store = registry.NewFileStore(filepath.Join(root, ".pomgen", "registry.json"))
	}
	logs := &bytes.Buffer{}
	n := 0
	co := New(
		registry.New(store, registry.DefaultLayout()),
		stage.New(capability.MustDefault()),
		artifact.NewWriter(root),
		WithLogger(log.New(log.Config{Level: log.LevelInfo, Format: log.FormatJSON, Output: logs})),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("inv-%d", n) }),
	)
	return &fixture{root: root, store: store, co: co, logs: logs}
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, rel))
	require.NoError(t, err)
	return string(data)
}

func mustPlan(t *testing.T, src string) *Plan {
	t.Helper()
	p, err := ParsePlan("plan.yaml", []byte(src))
	require.NoError(t, err)
	return p
}

func TestRunShopperPlan(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resps, err := f.co.Run(ctx, mustPlan(t, shopperPlan))
	require.NoError(t, err)
	require.Len(t, resps, 6)

	wantPaths := []string{
		"tests/features/cart_story.feature",
		".pomgen/elements/product_page.yaml",
		"framework/pages/product_page.py",
		"framework/tasks/cart.py",
		"framework/roles/shopper.py",
		"tests/test_cart_tests.py",
	}
	for i, r := range resps {
		assert.Equal(t, wantPaths[i], r.Path)
		assert.True(t, r.Written, r.Path)
		assert.Equal(t, uint64(i+1), r.RegistryVersion)
		assert.Equal(t, r.Source, f.read(t, r.Path))
	}
	for _, pkg := range []string{"framework", "framework/pages", "framework/tasks", "framework/roles", "tests"} {
		assert.FileExists(t, filepath.Join(f.root, pkg, "__init__.py"))
	}

	assert.Contains(t, f.read(t, "framework/roles/shopper.py"), "from framework.tasks.cart import Cart\n")
	assert.Contains(t, f.read(t, "tests/test_cart_tests.py"), "result = persona.add_product_to_cart()")
	assert.Equal(t, Summary{
		LogicalName: "Cart",
		Kind:        registry.KindWorkflow,
		ClassName:   "Cart",
		ImportRoute: "framework.tasks.cart",
		FilePath:    "framework/tasks/cart.py",
		Methods:     []string{"add_product_to_cart"},
		DependsOn:   []string{"Product Page"},
		Revision:    4,
	}, resps[3].Entry)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	plan := mustPlan(t, shopperPlan)

	_, err := f.co.Run(ctx, plan)
	require.NoError(t, err)
	before, err := f.co.Registry().Token()
	require.NoError(t, err)
	page := f.read(t, "framework/pages/product_page.py")

	again, err := f.co.Run(ctx, plan)
	require.NoError(t, err)
	for _, r := range again {
		assert.False(t, r.Written, "%s rewritten", r.Path)
		assert.Equal(t, before.Version, r.RegistryVersion)
	}
	after, err := f.co.Registry().Token()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, page, f.read(t, "framework/pages/product_page.py"))
}

func TestPrerequisitesAreEnforced(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.co.Invoke(context.Background(), Request{
		Stage:       stage.StageWorkflow,
		LogicalName: "Checkout",
		Payload:     Payload{Pages: []string{"Cart Page"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnresolvedDependency)
	assert.Contains(t, err.Error(), "requires PagesResolved")
	assert.Equal(t, []string{"Checkout"}, FailureFrom(err).Names)

	tok, err := f.co.Registry().Token()
	require.NoError(t, err)
	assert.Zero(t, tok.Version)
	assert.NoDirExists(t, filepath.Join(f.root, "framework"))
}

func TestFailureWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.co.Run(ctx, mustPlan(t, shopperPlan))
	require.NoError(t, err)
	before, _ := f.co.Registry().Token()

	_, err = f.co.Invoke(ctx, Request{
		Stage:       stage.StageTest,
		LogicalName: "Refund Tests",
		Payload: Payload{Persona: "Shopper", Scenarios: []domain.Scenario{
			{Name: "refund", Action: "request a refund", ExpectedOutcome: "money is returned"},
		}},
	})
	assert.ErrorIs(t, err, errors.ErrScenarioPersonaMismatch)
	assert.NoFileExists(t, filepath.Join(f.root, "tests", "test_refund_tests.py"))
	after, _ := f.co.Registry().Token()
	assert.Equal(t, before, after)
	_, err = f.co.Registry().Lookup("Refund Tests")
	assert.Error(t, err)
}

func TestExpectedTokenDetectsStaleState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	elements := Request{
		Stage:       stage.StageElements,
		LogicalName: "Product Page",
		Payload: Payload{Target: "/product", Elements: []discovery.RawElement{
			{SuggestedName: "Add to Cart", Role: "button", Locator: "#add-to-cart"},
		}},
	}
	_, err := f.co.Invoke(ctx, elements)
	require.NoError(t, err)
	tok, err := f.co.Registry().Token()
	require.NoError(t, err)

	_, err = f.co.Invoke(ctx, Request{Stage: stage.StagePage, LogicalName: "Product Page"})
	require.NoError(t, err)
	yamlBefore := f.read(t, ".pomgen/elements/product_page.yaml")

	elements.Payload.Elements[0].Locator = "button.add"
	elements.Expected = &tok
	_, err = f.co.Invoke(ctx, elements)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStaleRegistryState)
	assert.True(t, errors.Retryable(err))
	assert.Equal(t, yamlBefore, f.read(t, ".pomgen/elements/product_page.yaml"))
}

// flakyStore loses the compare-and-swap a fixed number of times.
type flakyStore struct {
	registry.Store
	fail int
}

func (s *flakyStore) CompareAndSwap(expected uint64, next *registry.Document) error {
	if s.fail > 0 {
		s.fail--
		return registry.ErrVersionMismatch
	}
	return s.Store.CompareAndSwap(expected, next)
}

func TestInvokeWithRetry(t *testing.T) {
	store := &flakyStore{Store: registry.NewMemoryStore(), fail: 2}
	f := newFixture(t, store)
	req := Request{Stage: stage.StageStory, LogicalName: "Checkout", Payload: Payload{
		Text: "As a shopper I want to pay so that I get a receipt",
	}}

	resp, err := f.co.InvokeWithRetry(context.Background(), req, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.RegistryVersion)
	assert.Zero(t, store.fail)

	store.fail = 5
	req.Payload.Text = "As a shopper I want to pay so that I see a receipt"
	_, err = f.co.InvokeWithRetry(context.Background(), req, 2, time.Millisecond)
	assert.ErrorIs(t, err, errors.ErrStaleRegistryState)
	assert.Equal(t, 3, store.fail)
}

func TestLostCommitCreatesNoPackages(t *testing.T) {
	store := &flakyStore{Store: registry.NewMemoryStore()}
	f := newFixture(t, store)
	ctx := context.Background()
	plan := mustPlan(t, shopperPlan)
	for _, step := range plan.Steps[:2] {
		_, err := f.co.Invoke(ctx, step)
		require.NoError(t, err)
	}

	store.fail = 1
	_, err := f.co.Invoke(ctx, plan.Steps[2])
	assert.ErrorIs(t, err, errors.ErrStaleRegistryState)
	assert.NoFileExists(t, filepath.Join(f.root, "framework", "__init__.py"))
	assert.NoFileExists(t, filepath.Join(f.root, "framework", "pages", "__init__.py"))
	assert.NoFileExists(t, filepath.Join(f.root, "framework", "pages", "product_page.py"))

	_, err = f.co.Invoke(ctx, plan.Steps[2])
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(f.root, "framework", "pages", "__init__.py"))
}

func TestStatusReportsDrift(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.co.Run(ctx, mustPlan(t, shopperPlan))
	require.NoError(t, err)

	report, err := f.co.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, TestsGenerated, report.State)
	assert.Zero(t, report.Drifted)
	assert.Empty(t, report.Pending())

	require.NoError(t, os.WriteFile(filepath.Join(f.root, "framework/tasks/cart.py"), []byte("# edited\n"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(f.root, "tests/test_cart_tests.py")))

	report, err = f.co.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Drifted)
	assert.Equal(t, 1, report.Missing)
	states := make(map[string]artifact.State)
	for _, c := range report.Components {
		states[c.LogicalName] = c.State
	}
	assert.Equal(t, artifact.StateDrifted, states["Cart"])
	assert.Equal(t, artifact.StateMissing, states["Cart Tests"])
	assert.Equal(t, artifact.StateCurrent, states["Shopper"])
}

func TestElementsFromSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	html := `<html><body>
<form><input id="email" type="email"><input id="password" type="password">
<button id="login">Log in</button></form></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "login.html"), []byte(html), 0o644))

	resp, err := f.co.Invoke(context.Background(), Request{
		Stage:       stage.StageElements,
		LogicalName: "Login Page",
		Payload:     Payload{Target: "/login", Source: "login.html"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Source, "#login")
	assert.Contains(t, resp.Source, "target: /login")
}

func TestInvocationLogging(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.co.Invoke(ctx, Request{Stage: stage.StageStory, LogicalName: "Checkout", Payload: Payload{
		Text: "As a shopper I want to pay so that I get a receipt",
	}})
	require.NoError(t, err)
	_, err = f.co.Invoke(ctx, Request{Stage: stage.StagePage, LogicalName: "Checkout Page"})
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(f.logs.String()), "\n")
	require.Len(t, lines, 2)
	for _, key := range []string{`"stage":"story"`, `"logical_name":"Checkout"`, `"invocation_id":"inv-1"`, `"registry_version":1`, `"duration"`} {
		assert.Contains(t, lines[0], key)
	}
	for _, key := range []string{`"invocation_id":"inv-2"`, `"error_kind":"NoElementsFound"`, `"level":"WARN"`} {
		assert.Contains(t, lines[1], key)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"unknown stage", Request{Stage: "deploy", LogicalName: "x"}, "unknown stage"},
		{"blank name", Request{Stage: stage.StagePage, LogicalName: "  "}, "invalid logical name"},
		{"kind mismatch", Request{Stage: stage.StagePage, LogicalName: "x", Kind: registry.KindPersona}, "produces a page"},
		{"story without text", Request{Stage: stage.StageStory, LogicalName: "x"}, "needs text"},
		{"test without scenarios", Request{Stage: stage.StageTest, LogicalName: "x"}, "story or scenarios"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParsePlanRejectsBadSteps(t *testing.T) {
	_, err := ParsePlan("p.yaml", []byte("steps: []"))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = ParsePlan("p.yaml", []byte("steps:\n  - stage: page\n  - stage: bogus\n    name: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}

func TestFailureFrom(t *testing.T) {
	f := FailureFrom(fmt.Errorf("workflow: %w", errors.NewUnresolvedDependencyError("Checkout", "Cart Page")))
	assert.Equal(t, errors.KindUnresolvedDependency, f.Kind)
	assert.Equal(t, "DEP-001", f.Code)
	assert.Equal(t, []string{"Cart Page"}, f.Names)
	assert.False(t, f.Retryable)

	assert.True(t, FailureFrom(errors.NewStaleRegistryError("moved")).Retryable)
	assert.Equal(t, Failure{Kind: errors.KindIO, Message: "disk full"}, FailureFrom(fmt.Errorf("disk full")))
}

func TestDerive(t *testing.T) {
	gen := func(k registry.Kind) registry.Component {
		return registry.Component{Kind: k, Artifact: &registry.ArtifactRecord{Path: "x"}}
	}
	tests := []struct {
		name  string
		comps []registry.Component
		want  State
	}{
		{"empty", nil, Uninitiated},
		{"ungenerated page", []registry.Component{{Kind: registry.KindPage}}, Uninitiated},
		{"page", []registry.Component{gen(registry.KindPage)}, PagesResolved},
		{"workflow without page", []registry.Component{gen(registry.KindWorkflow)}, Uninitiated},
		{"through persona", []registry.Component{gen(registry.KindPage), gen(registry.KindWorkflow), gen(registry.KindPersona)}, PersonasResolved},
		{"all", []registry.Component{gen(registry.KindPage), gen(registry.KindWorkflow), gen(registry.KindPersona), gen(registry.KindTest)}, TestsGenerated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.comps))
		})
	}
	assert.NoError(t, CheckPrerequisites(stage.StagePage, "Cart Page", Uninitiated))
	err := CheckPrerequisites(stage.StageTest, "Cart Tests", WorkflowsResolved)
	require.Error(t, err)
	assert.Equal(t, []string{"Cart Tests"}, FailureFrom(err).Names)
}
