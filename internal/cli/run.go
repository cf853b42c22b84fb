// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rfpintel/agentflow/internal/analysis"
	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/logger"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/store"
	"github.com/rfpintel/agentflow/internal/telemetry"
	"github.com/rfpintel/agentflow/internal/tui"
)

type runOptions struct {
	configPath  string
	catalogFile string
	session     string
	noAnalysis  bool
}

func runCommand(args []string) error {
	opts := &runOptions{}
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	fs.StringVar(&opts.catalogFile, "catalog", "", "Path to a stage catalog YAML file")
	fs.StringVar(&opts.session, "session", "", "Session ID to analyze (skips the start form)")
	fs.StringVar(&opts.session, "s", "", "Session ID to analyze (shorthand)")
	fs.BoolVar(&opts.noAnalysis, "no-analysis", false, "Do not call the analysis service")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 && opts.session == "" {
		opts.session = fs.Arg(0)
	}

	return executeRun(opts)
}

func executeRun(opts *runOptions) error {
	cfg, err := config.NewConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logging goes to file only by default, the terminal belongs to the TUI
	if err := logger.Initialize(&cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.CloseGlobal()
	mainLog := logger.GetLogger("main")

	catalog, err := loadCatalog(cfg, opts.catalogFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	tracer, err := telemetry.NewTracer(ctx, cfg.Telemetry, telemetry.WithServiceVersion(appVersion))
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			mainLog.Error().Err(err).Msg("Error shutting down tracer")
		}
	}()

	pipelineOpts := pipelineOptions(cfg)
	if tracer.Enabled() {
		pipelineOpts = append(pipelineOpts, pipeline.WithObserver(tracer.NewRunTracer(ctx, catalog.Len()).Observe))
	}

	tuiOpts := tui.Options{
		Catalog: catalog,
		Session: protocol.Session{ID: strings.TrimSpace(opts.session)},
	}

	st, err := openStore(cfg)
	if err != nil {
		// History is optional for the dashboard
		mainLog.Warn().Err(err).Msg("Run history disabled")
	}
	if st != nil {
		defer st.Close()
		recorder := store.NewRecorder(st, 0)
		defer recorder.Close()
		pipelineOpts = append(pipelineOpts, pipeline.WithObserver(recorder.Observe))
		tuiOpts.OnAnalysis = recorder.RecordReport
	}

	if cfg.Analysis.Enabled && !opts.noAnalysis {
		tuiOpts.Analyzer = tracer.TraceAnalyzer(analysis.NewClient(cfg.Analysis))
		tuiOpts.AnalysisDelay = cfg.Analysis.Delay
	}
	tuiOpts.Pipeline = pipelineOpts

	mainLog.Info().
		Int("stages", catalog.Len()).
		Str("session", tuiOpts.Session.ID).
		Bool("analysis", tuiOpts.Analyzer != nil).
		Msg("Starting dashboard")

	return tui.StartTUI(ctx, tuiOpts)
}
