// Package pipeline coordinates stage invocations: it validates the
// request, runs the stage generator over a registry transaction,
// verifies the artifact, and commits registry and file together.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/discovery"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/log"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/stage"
	"github.com/felixgeelhaar/pomgen/internal/telemetry"
	"github.com/felixgeelhaar/pomgen/internal/verify"
)

// Coordinator runs stages against one registry and project root.
type Coordinator struct {
	reg      *registry.Registry
	gen      *stage.Generators
	writer   *artifact.Writer
	discover discovery.Collaborator
	logger   *log.Logger
	tel      *telemetry.Provider
	newID    func() string
	now      func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCollaborator sets where elements come from when a request carries
// none. The default reads snapshots relative to the project root.
func WithCollaborator(c discovery.Collaborator) Option {
	return func(co *Coordinator) { co.discover = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// WithTelemetry records every invocation as a span and in the stage
// metrics.
func WithTelemetry(p *telemetry.Provider) Option {
	return func(co *Coordinator) { co.tel = p }
}

// WithIDGenerator overrides how invocation IDs are generated.
func WithIDGenerator(f func() string) Option {
	return func(co *Coordinator) { co.newID = f }
}

// New creates a Coordinator.
func New(reg *registry.Registry, gen *stage.Generators, writer *artifact.Writer, opts ...Option) *Coordinator {
	c := &Coordinator{
		reg:      reg,
		gen:      gen,
		writer:   writer,
		discover: discovery.SnapshotCollaborator{Root: writer.Root()},
		logger:   log.Nop(),
		tel:      telemetry.Noop(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the coordinator's registry.
func (c *Coordinator) Registry() *registry.Registry { return c.reg }

// Writer returns the artifact writer.
func (c *Coordinator) Writer() *artifact.Writer { return c.writer }

// Generators returns the stage generators.
func (c *Coordinator) Generators() *stage.Generators { return c.gen }

// Invoke runs one stage. On failure neither the registry nor any file
// is changed.
func (c *Coordinator) Invoke(ctx context.Context, req Request) (Response, error) {
	id := c.newID()
	start := c.now()
	logger := log.FromContext(ctx, c.logger).With(
		"stage", string(req.Stage),
		"logical_name", req.LogicalName,
		"invocation_id", id,
	)

	ctx, inv := c.tel.StartInvocation(ctx, string(req.Stage), req.LogicalName, id)
	resp, err := c.invoke(ctx, id, req)
	elapsed := c.now().Sub(start)
	if err != nil {
		inv.End(err)
		logger.WithError(err).Warn("stage failed", "duration", elapsed)
		return Response{}, err
	}
	inv.End(nil,
		attribute.Int64("pomgen.registry_version", int64(resp.RegistryVersion)),
		attribute.Bool("pomgen.written", resp.Written),
	)
	logger.Info("stage completed",
		"registry_version", resp.RegistryVersion,
		"path", resp.Path,
		"written", resp.Written,
		"duration", elapsed,
	)
	return resp, nil
}

// prepare runs the stage over a fresh transaction and verifies the
// result. Nothing is persisted.
func (c *Coordinator) prepare(ctx context.Context, req Request) (*registry.Tx, stage.Output, error) {
	if err := req.Validate(); err != nil {
		return nil, stage.Output{}, err
	}

	raw := req.Payload.Elements
	if req.Stage == stage.StageElements && len(raw) == 0 {
		from := req.Payload.Source
		if from == "" {
			from = req.Payload.Target
		}
		if from == "" {
			return nil, stage.Output{}, errors.NewInvalidRequestError("elements stage needs elements, a source or a target").
				WithNames(req.LogicalName)
		}
		found, err := c.discover.Discover(ctx, from)
		if err != nil {
			return nil, stage.Output{}, err
		}
		raw = found
	}

	tx, err := c.reg.Begin()
	if err != nil {
		return nil, stage.Output{}, err
	}
	if err := CheckPrerequisites(req.Stage, req.LogicalName, Derive(tx.Components())); err != nil {
		return nil, stage.Output{}, err
	}

	out, err := c.generate(tx, req, raw)
	if err != nil {
		return nil, stage.Output{}, err
	}
	if out.Python {
		if _, err := verify.Check(ctx, out.Artifact.Path(), out.Artifact.Source(), VerifyOptions(tx, c.gen)); err != nil {
			return nil, stage.Output{}, err
		}
	}
	if req.Stage != stage.StageElements {
		if err := tx.SetArtifact(out.Component, registry.ArtifactRecord{
			Path:   out.Artifact.Path(),
			Digest: out.Artifact.Digest(),
		}); err != nil {
			return nil, stage.Output{}, err
		}
	}
	if req.Expected != nil {
		if err := tx.Guard(*req.Expected); err != nil {
			return nil, stage.Output{}, err
		}
	}
	return tx, out, nil
}

func (c *Coordinator) invoke(ctx context.Context, id string, req Request) (Response, error) {
	tx, out, err := c.prepare(ctx, req)
	if err != nil {
		return Response{}, err
	}

	pending, err := c.writer.Stage(out.Artifact)
	if err != nil {
		return Response{}, err
	}
	if err := ctx.Err(); err != nil {
		pending.Discard()
		return Response{}, err
	}
	tok, _, err := tx.Commit(string(req.Stage), id)
	if err != nil {
		pending.Discard()
		return Response{}, err
	}
	if err := pending.Commit(); err != nil {
		return Response{}, err
	}
	if out.Python {
		if err := c.writer.EnsurePackages(tx.Layout().Packages()); err != nil {
			return Response{}, err
		}
	}

	entry, _ := tx.Lookup(out.Component)
	if fresh, err := c.reg.Lookup(out.Component); err == nil {
		entry = fresh
	}
	return Response{
		InvocationID:    id,
		Stage:           string(req.Stage),
		Path:            out.Artifact.Path(),
		Source:          string(out.Artifact.Source()),
		Entry:           Summarize(entry),
		Written:         !pending.Unchanged(),
		RegistryVersion: tok.Version,
		Notes:           out.Notes,
	}, nil
}

func (c *Coordinator) generate(tx *registry.Tx, req Request, raw []discovery.RawElement) (stage.Output, error) {
	p := req.Payload
	switch req.Stage {
	case stage.StageStory:
		return c.gen.Story(tx, req.LogicalName, p.Text)
	case stage.StageElements:
		return c.gen.Elements(tx, req.LogicalName, p.Target, raw)
	case stage.StagePage:
		return c.gen.Page(tx, req.LogicalName)
	case stage.StageWorkflow:
		return c.gen.Workflow(tx, req.LogicalName, p.Pages, p.Operations)
	case stage.StagePersona:
		return c.gen.Persona(tx, req.LogicalName, p.Workflows, p.Operations)
	case stage.StageTest:
		return c.gen.Test(tx, req.LogicalName, stage.TestInput{
			Persona:   p.Persona,
			Story:     p.Story,
			Scenarios: p.Scenarios,
		})
	}
	return stage.Output{}, errors.NewInvalidRequestError("unknown stage " + string(req.Stage))
}

// InvokeWithRetry retries Invoke while it fails with StaleRegistryState,
// up to attempts times, waiting backoff (doubled each time) in between.
func (c *Coordinator) InvokeWithRetry(ctx context.Context, req Request, attempts int, backoff time.Duration) (Response, error) {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var resp Response
		resp, err = c.Invoke(ctx, req)
		if err == nil || !errors.Is(err, errors.ErrStaleRegistryState) {
			return resp, err
		}
		if i == attempts-1 {
			break
		}
		c.tel.RecordRetry(ctx, string(req.Stage))
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return Response{}, err
}

// VerifyOptions lists what generated Python may import and call: the
// capability contract and every page, workflow and persona in tx.
func VerifyOptions(tx *registry.Tx, gen *stage.Generators) verify.Options {
	contract := gen.Contract()
	symbols := verify.Symbols{contract.Module(): {contract.Class()}}
	for _, comp := range tx.Components(registry.KindPage, registry.KindWorkflow, registry.KindPersona) {
		symbols[comp.Identity.ImportRoute] = []string{comp.Identity.ClassName}
	}
	return verify.Options{
		Local:     []string{tx.Layout().Namespace},
		Symbols:   symbols,
		Contract:  contract,
		Receivers: []string{"self.web"},
	}
}
