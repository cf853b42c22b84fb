// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rfpintel/agentflow/internal/analysis"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/tui/components/pipelinesummary"
	"github.com/rfpintel/agentflow/internal/tui/screens/dashboard"
)

// Options configures the terminal UI
type Options struct {
	Catalog *pipeline.Catalog
	// Controller options such as timing, done label and extra observers
	Pipeline []pipeline.Option
	// Analyzer is optional; nil disables the analysis request
	Analyzer      analysis.Analyzer
	AnalysisDelay time.Duration
	// OnAnalysis receives every analysis result, e.g. to persist it
	OnAnalysis func(analysis.Result)
	// Session skips the form when set
	Session protocol.Session
}

// StartTUI runs the terminal UI until the user quits. The summary of the last
// run is printed once the alternate screen is gone.
func StartTUI(ctx context.Context, opts Options) error {
	results := make(chan analysis.Result, 4)

	var dispatcher *analysis.Dispatcher
	if opts.Analyzer != nil {
		dispatcher = analysis.NewDispatcher(opts.Analyzer, opts.AnalysisDelay, func(r analysis.Result) {
			results <- r
		})
	}

	dash, err := dashboard.New(ctx, dashboard.Config{
		Catalog:       opts.Catalog,
		Options:       opts.Pipeline,
		Analysis:      dispatcher,
		AnalysisDelay: opts.AnalysisDelay,
	})
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}

	p := tea.NewProgram(NewMainModel(opts.Catalog, dash, opts.Session), tea.WithAltScreen(), tea.WithContext(ctx))

	// Forward analysis results from the request goroutines into the program
	go func() {
		for r := range results {
			if opts.OnAnalysis != nil {
				opts.OnAnalysis(r)
			}
			p.Send(dashboard.AnalysisResultMsg{Result: r})
		}
	}()

	final, runErr := p.Run()

	if dispatcher != nil {
		dispatcher.Close()
	}
	close(results)

	if m, ok := final.(MainModel); ok {
		if data, ok := m.Summary(); ok {
			fmt.Println(pipelinesummary.New().SetData(data).View())
		}
	}
	return runErr
}
