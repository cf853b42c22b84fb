// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/trace"

	"github.com/rfpintel/agentflow/internal/analysis"
)

type tracedAnalyzer struct {
	inner  analysis.Analyzer
	tracer *Tracer
}

// TraceAnalyzer wraps an Analyzer so every request gets a client span.
func (t *Tracer) TraceAnalyzer(a analysis.Analyzer) analysis.Analyzer {
	if !t.Enabled() {
		return a
	}
	return &tracedAnalyzer{inner: a, tracer: t}
}

func (a *tracedAnalyzer) Analyze(ctx context.Context, sessionID string) (json.RawMessage, error) {
	ctx, span := a.tracer.StartSpan(ctx, SpanAnalysis,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(AttrSessionID.String(sessionID)),
	)
	defer span.End()

	report, err := a.inner.Analyze(ctx, sessionID)
	if err != nil {
		RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(AttrReportBytes.Int(len(report)))
	return report, nil
}
