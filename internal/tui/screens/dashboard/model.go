// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dashboard is the screen that runs the pipeline controller and shows
// its stages while the analysis request is in flight.
package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rfpintel/agentflow/internal/analysis"
	"github.com/rfpintel/agentflow/internal/logger"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/tui/components/elapsedtimer"
	"github.com/rfpintel/agentflow/internal/tui/components/pipelinesummary"
	"github.com/rfpintel/agentflow/internal/tui/components/stagelist"
	"github.com/rfpintel/agentflow/internal/tui/components/stepprogress"
	"github.com/rfpintel/agentflow/internal/tui/components/thinkingdots"
)

// StartRunMsg asks the dashboard to activate a run for its session.
type StartRunMsg struct{}

// AnalysisResultMsg carries a finished analysis request into the program.
type AnalysisResultMsg struct {
	Result analysis.Result
}

// Config holds what the dashboard needs to build its controller.
type Config struct {
	Catalog *pipeline.Catalog
	// Options are applied to the controller, e.g. timing and extra observers.
	Options []pipeline.Option
	// Analysis is optional; when set a request is dispatched on every activation.
	Analysis      *analysis.Dispatcher
	AnalysisDelay time.Duration
	// Now defaults to time.Now
	Now func() time.Time
}

type analysisState int

const (
	analysisIdle analysisState = iota
	analysisScheduled
	analysisReceived
	analysisFailed
	analysisCancelled
)

// runView is written by controller callbacks, which run inside Update, and
// read back when the model syncs. It is shared by every copy of the model.
type runView struct {
	runID       string
	startedAt   time.Time
	finishedAt  time.Time
	completions int

	analysis    analysisState
	requestedAt time.Time
	reportBytes int
	analysisErr string
}

// Model is the dashboard screen
type Model struct {
	cfg     Config
	sched   *teaScheduler
	ctrl    *pipeline.Controller
	collect *pipelinesummary.Collector
	run     *runView
	session protocol.Session

	stages   stagelist.Model
	overall  stepprogress.Model
	dots     thinkingdots.Model
	timer    elapsedtimer.Model
	timerRun string
	keys     keyMap

	err    error
	width  int
	height int
}

// New builds the dashboard and its controller. ctx bounds analysis requests.
func New(ctx context.Context, cfg Config) (Model, error) {
	sched := newTeaScheduler(cfg.Now)
	m := Model{
		cfg:     cfg,
		sched:   sched,
		collect: pipelinesummary.NewCollector(cfg.Catalog),
		run:     &runView{},
		stages:  stagelist.New(cfg.Catalog),
		overall: stepprogress.New(cfg.Catalog),
		dots:    thinkingdots.New(),
		timer:   elapsedtimer.New(sched.Now),
		keys:    defaultKeyMap(),
		width:   80,
		height:  24,
	}

	opts := append([]pipeline.Option{}, cfg.Options...)
	opts = append(opts,
		pipeline.WithObserver(m.collect.Observe),
		pipeline.WithObserver(m.observe),
		pipeline.WithCompletion(m.completed),
	)
	if cfg.Analysis != nil {
		opts = append(opts, pipeline.WithObserver(cfg.Analysis.Observer(ctx)))
	}

	ctrl, err := pipeline.NewController(cfg.Catalog, sched, opts...)
	if err != nil {
		return Model{}, err
	}
	m.ctrl = ctrl
	return m, nil
}

func (m Model) Init() tea.Cmd {
	return nil
}

// SetSession sets the session the next run is started for
func (m Model) SetSession(session protocol.Session) Model {
	m.session = session
	return m
}

// Session returns the current session
func (m Model) Session() protocol.Session {
	return m.session
}

// SetSize updates the model's dimensions
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.stages = m.stages.SetWidth(width)
	m.overall = m.overall.SetWidth(width / 4)
}

// Snapshot returns the controller state
func (m Model) Snapshot() pipeline.Snapshot {
	return m.ctrl.Snapshot()
}

// Summary returns what happened in the most recent run
func (m Model) Summary() (pipelinesummary.SummaryData, bool) {
	data := m.collect.Data()
	return data, data.RunID != ""
}

// Stop deactivates the controller. Used when the program exits.
func (m Model) Stop() {
	m.ctrl.Deactivate()
}

func (m Model) observe(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventRunStarted:
		*m.run = runView{runID: e.RunID, startedAt: e.At, completions: m.run.completions}
		if m.cfg.Analysis != nil {
			m.run.analysis = analysisScheduled
			m.run.requestedAt = e.At
		}
	case pipeline.EventRunCompleted:
		m.run.finishedAt = e.At
	case pipeline.EventRunStopped:
		if m.run.analysis == analysisScheduled {
			m.run.analysis = analysisCancelled
		}
		m.run.runID = ""
		m.run.startedAt = time.Time{}
		m.run.finishedAt = time.Time{}
	}
}

func (m Model) completed(payload any) {
	m.run.completions++
	log := logger.GetTUILogger().With().Str("component", "dashboard").Logger()
	log.Info().Str("run_id", m.run.runID).Msg("Pipeline finished, report view ready")
}
