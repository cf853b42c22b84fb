// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
)

// Span and attribute names
const (
	SpanRun      = "pipeline.run"
	SpanStage    = "pipeline.stage"
	SpanAnalysis = "analysis.request"

	AttrRunID        = attribute.Key("agentflow.run.id")
	AttrSessionID    = attribute.Key("agentflow.session.id")
	AttrStageCount   = attribute.Key("agentflow.run.stage_count")
	AttrOutcome      = attribute.Key("agentflow.run.outcome")
	AttrStageIndex   = attribute.Key("agentflow.stage.index")
	AttrStageID      = attribute.Key("agentflow.stage.id")
	AttrProgress     = attribute.Key("agentflow.stage.progress")
	AttrActivity     = attribute.Key("agentflow.stage.activity")
	AttrInterrupted  = attribute.Key("agentflow.stage.interrupted")
	AttrReportBytes  = attribute.Key("agentflow.analysis.report_bytes")
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
)

type runSpans struct {
	ctx   context.Context
	run   trace.Span
	stage trace.Span
}

// RunTracer turns controller events into one span per run with a child span
// per stage. Span times come from the event timestamps, so virtual clocks
// produce consistent traces. It must be used from the controller's thread.
type RunTracer struct {
	tracer     *Tracer
	ctx        context.Context
	stageCount int
	runs       map[string]*runSpans
}

// NewRunTracer creates a RunTracer rooted at ctx.
func (t *Tracer) NewRunTracer(ctx context.Context, stageCount int) *RunTracer {
	return &RunTracer{
		tracer:     t,
		ctx:        ctx,
		stageCount: stageCount,
		runs:       make(map[string]*runSpans),
	}
}

// Observe is a pipeline.Observer.
func (r *RunTracer) Observe(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventRunStarted:
		attrs := []attribute.KeyValue{AttrRunID.String(e.RunID), AttrStageCount.Int(r.stageCount)}
		if session, ok := e.Payload.(protocol.Session); ok {
			attrs = append(attrs, AttrSessionID.String(session.ID))
		}
		ctx, span := r.tracer.StartSpan(r.ctx, SpanRun,
			trace.WithTimestamp(e.At),
			trace.WithAttributes(attrs...),
		)
		r.runs[e.RunID] = &runSpans{ctx: ctx, run: span}

	case pipeline.EventStageStarted:
		spans, ok := r.runs[e.RunID]
		if !ok {
			return
		}
		_, spans.stage = r.tracer.StartSpan(spans.ctx, SpanStage+"/"+e.StageID,
			trace.WithTimestamp(e.At),
			trace.WithAttributes(
				AttrRunID.String(e.RunID),
				AttrStageIndex.Int(e.StageIndex),
				AttrStageID.String(e.StageID),
			),
		)

	case pipeline.EventStageProgress:
		if spans, ok := r.runs[e.RunID]; ok && spans.stage != nil {
			spans.stage.AddEvent("progress",
				trace.WithTimestamp(e.At),
				trace.WithAttributes(AttrProgress.Float64(e.Progress), AttrActivity.String(e.Message)),
			)
		}

	case pipeline.EventStageCompleted:
		if spans, ok := r.runs[e.RunID]; ok && spans.stage != nil {
			spans.stage.End(trace.WithTimestamp(e.At))
			spans.stage = nil
		}

	case pipeline.EventRunCompleted:
		r.finish(e, OutcomeCompleted)

	case pipeline.EventRunStopped:
		r.finish(e, OutcomeStopped)
	}
}

func (r *RunTracer) finish(e pipeline.Event, outcome string) {
	spans, ok := r.runs[e.RunID]
	if !ok {
		return
	}
	delete(r.runs, e.RunID)

	if spans.stage != nil {
		spans.stage.SetAttributes(AttrInterrupted.Bool(true))
		spans.stage.End(trace.WithTimestamp(e.At))
	}
	spans.run.SetAttributes(AttrOutcome.String(outcome))
	spans.run.End(trace.WithTimestamp(e.At))
}

// Open returns the number of runs whose span has not ended.
func (r *RunTracer) Open() int {
	return len(r.runs)
}
