// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rfpintel/agentflow/internal/analysis"
	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/logger"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/server"
	"github.com/rfpintel/agentflow/internal/store"
	"github.com/rfpintel/agentflow/internal/telemetry"
)

const loopBuffer = 128

type serveOptions struct {
	configPath  string
	catalogFile string
	host        string
	port        int
}

func serveCommand(args []string) error {
	opts := &serveOptions{}
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	fs.StringVar(&opts.catalogFile, "catalog", "", "Path to a stage catalog YAML file")
	fs.StringVar(&opts.host, "host", "", "Listen address (overrides server.host)")
	fs.IntVar(&opts.port, "port", 0, "Listen port (overrides server.port)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	return executeServe(opts)
}

func executeServe(opts *serveOptions) error {
	cfg, err := config.NewConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.host != "" {
		cfg.Server.Host = opts.host
	}
	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.CloseGlobal()

	mainLog := logger.GetLogger("main")
	mainLog.Info().Msg("Starting agentflow API server")

	catalog, err := loadCatalog(cfg, opts.catalogFile)
	if err != nil {
		return err
	}

	// This context drives the event loop and the analysis requests.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracer, err := telemetry.NewTracer(ctx, cfg.Telemetry, telemetry.WithServiceVersion(appVersion))
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}

	pipelineOpts := pipelineOptions(cfg)
	pipelineOpts = append(pipelineOpts, pipeline.WithObserver(tracer.NewRunTracer(ctx, catalog.Len()).Observe))

	var history store.Store
	var recorder *store.Recorder
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		history = st
		recorder = store.NewRecorder(st, 0)
		pipelineOpts = append(pipelineOpts, pipeline.WithObserver(recorder.Observe))
	}

	var host *server.Host
	var dispatcher *analysis.Dispatcher
	if cfg.Analysis.Enabled {
		analyzer := tracer.TraceAnalyzer(analysis.NewClient(cfg.Analysis))
		dispatcher = analysis.NewDispatcher(analyzer, cfg.Analysis.Delay, func(r analysis.Result) {
			host.PublishReport(r)
			if recorder != nil {
				recorder.RecordReport(r)
			}
		})
		pipelineOpts = append(pipelineOpts, pipeline.WithObserver(dispatcher.Observer(ctx)))
	}

	loop := pipeline.NewEventLoop(loopBuffer)
	host, err = server.NewHost(loop, catalog, pipelineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create pipeline host: %w", err)
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
		mainLog.Info().Msg("Event loop stopped")
	}()

	srv := server.New(&cfg.Server, host, history, tracer)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case err := <-serverErrChan:
		if err != nil {
			mainLog.Error().Err(err).Msg("Server error")
		}
	}

	// Graceful shutdown: fresh context with timeout, independent of the loop ctx.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}

	// Stop the run so the recorder sees it end, then the loop
	if _, err := host.Deactivate(shutdownCtx); err != nil {
		mainLog.Warn().Err(err).Msg("Failed to stop active run")
	}
	cancel()
	<-loopDone

	if dispatcher != nil {
		dispatcher.Close()
	}
	if recorder != nil {
		recorder.Close()
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down tracer")
	}

	mainLog.Info().Msg("API server shut down")
	return nil
}
