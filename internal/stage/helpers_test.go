package stage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/discovery"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/verify"
)

type harness struct {
	t   *testing.T
	reg *registry.Registry
	gen *Generators
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reg := registry.New(registry.NewMemoryStore(), registry.DefaultLayout(),
		registry.WithClock(func() time.Time { return now }))
	return &harness{t: t, reg: reg, gen: New(capability.MustDefault())}
}

// run executes one generator, verifies Python output against what the
// registry knows and commits the entry as generated.
func (h *harness) run(stage Name, fn func(tx *registry.Tx) (Output, error)) Output {
	h.t.Helper()
	tx, err := h.reg.Begin()
	require.NoError(h.t, err)
	out, err := fn(tx)
	require.NoError(h.t, err)

	if out.Python {
		_, err := verify.Check(context.Background(), out.Artifact.Path(), out.Artifact.Source(), h.options(tx))
		require.NoError(h.t, err, "generated source:\n%s", out.Artifact.Source())
	}
	if stage != StageElements {
		require.NoError(h.t, tx.SetArtifact(out.Component, registry.ArtifactRecord{
			Path:   out.Artifact.Path(),
			Digest: out.Artifact.Digest(),
		}))
	}
	_, _, err = tx.Commit(string(stage), "")
	require.NoError(h.t, err)
	return out
}

// fail runs fn and returns its error without committing.
func (h *harness) fail(fn func(tx *registry.Tx) (Output, error)) error {
	h.t.Helper()
	tx, err := h.reg.Begin()
	require.NoError(h.t, err)
	_, err = fn(tx)
	require.Error(h.t, err)
	return err
}

func (h *harness) options(tx *registry.Tx) verify.Options {
	c := h.gen.Contract()
	symbols := verify.Symbols{c.Module(): {c.Class()}}
	for _, comp := range tx.Components(registry.KindPage, registry.KindWorkflow, registry.KindPersona) {
		symbols[comp.Identity.ImportRoute] = []string{comp.Identity.ClassName}
	}
	return verify.Options{
		Local:     []string{tx.Layout().Namespace},
		Symbols:   symbols,
		Contract:  c,
		Receivers: []string{"self." + webParam},
	}
}

func (h *harness) elements(page, target string, raw ...discovery.RawElement) Output {
	h.t.Helper()
	return h.run(StageElements, func(tx *registry.Tx) (Output, error) {
		return h.gen.Elements(tx, page, target, raw)
	})
}

func (h *harness) page(name string) Output {
	h.t.Helper()
	return h.run(StagePage, func(tx *registry.Tx) (Output, error) {
		return h.gen.Page(tx, name)
	})
}

func (h *harness) lookup(name string) registry.Component {
	h.t.Helper()
	c, err := h.reg.Lookup(name)
	require.NoError(h.t, err)
	return c
}

var loginElements = []discovery.RawElement{
	{SuggestedName: "Email", Role: "input", Locator: "#email"},
	{SuggestedName: "Password", Role: "input", Locator: "#password"},
	{SuggestedName: "Log in", Role: "button", Locator: "//button[@type='submit']"},
}
