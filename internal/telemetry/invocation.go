package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

type instruments struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
	conflicts   metric.Int64Counter
	retries     metric.Int64Counter
}

func newInstruments(meter metric.Meter) (instruments, error) {
	var (
		inst instruments
		err  error
	)
	if inst.invocations, err = meter.Int64Counter(
		"pomgen.stage.invocations",
		metric.WithDescription("Stage invocations by stage and outcome"),
		metric.WithUnit("{invocation}"),
	); err != nil {
		return inst, err
	}
	if inst.duration, err = meter.Float64Histogram(
		"pomgen.stage.duration",
		metric.WithDescription("Stage invocation duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return inst, err
	}
	if inst.conflicts, err = meter.Int64Counter(
		"pomgen.registry.conflicts",
		metric.WithDescription("Invocations that lost the registry compare-and-swap"),
		metric.WithUnit("{conflict}"),
	); err != nil {
		return inst, err
	}
	if inst.retries, err = meter.Int64Counter(
		"pomgen.stage.retries",
		metric.WithDescription("Invocations retried after a registry conflict"),
		metric.WithUnit("{retry}"),
	); err != nil {
		return inst, err
	}
	return inst, nil
}

// Invocation is one traced stage invocation.
type Invocation struct {
	p     *Provider
	ctx   context.Context
	span  trace.Span
	start time.Time
	stage string
}

// StartInvocation opens the span for a stage invocation.
func (p *Provider) StartInvocation(ctx context.Context, stage, logicalName, id string) (context.Context, *Invocation) {
	ctx, span := p.tracer.Start(ctx, "stage."+stage,
		trace.WithAttributes(
			attribute.String("pomgen.stage", stage),
			attribute.String("pomgen.logical_name", logicalName),
			attribute.String("pomgen.invocation_id", id),
		),
	)
	return ctx, &Invocation{p: p, ctx: ctx, span: span, start: time.Now(), stage: stage}
}

// End closes the span and records the outcome: "ok", or the error kind.
func (i *Invocation) End(err error, attrs ...attribute.KeyValue) {
	outcome := "ok"
	if err != nil {
		kind := errors.KindFrom(err)
		outcome = string(kind)
		i.span.RecordError(err)
		i.span.SetStatus(codes.Error, outcome)
		if kind == errors.KindStaleRegistryState {
			i.p.inst.conflicts.Add(i.ctx, 1, metric.WithAttributes(attribute.String("stage", i.stage)))
		}
	} else {
		i.span.SetStatus(codes.Ok, "")
	}
	i.span.SetAttributes(attrs...)
	i.span.End()

	set := metric.WithAttributes(attribute.String("stage", i.stage), attribute.String("outcome", outcome))
	i.p.inst.invocations.Add(i.ctx, 1, set)
	i.p.inst.duration.Record(i.ctx, time.Since(i.start).Seconds(), set)
}

// RecordRetry counts one retry of stage.
func (p *Provider) RecordRetry(ctx context.Context, stage string) {
	p.inst.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
