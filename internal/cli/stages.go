// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/tui/components/elapsedtimer"
	"github.com/rfpintel/agentflow/internal/tui/components/pipelinesummary"
)

// simulateLimit bounds a dry run on the virtual clock.
const simulateLimit = 24 * time.Hour

type stagesOptions struct {
	configPath  string
	catalogFile string
	simulate    bool
	asJSON      bool
	session     string
}

func stagesCommand(args []string, out io.Writer) error {
	opts := &stagesOptions{}
	fs := flag.NewFlagSet("stages", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	fs.StringVar(&opts.catalogFile, "catalog", "", "Path to a stage catalog YAML file")
	fs.BoolVar(&opts.simulate, "simulate", false, "Run the pipeline on a virtual clock and print its timeline")
	fs.BoolVar(&opts.asJSON, "json", false, "Print the catalog as JSON")
	fs.StringVar(&opts.session, "session", "dry-run", "Session ID used by --simulate")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	catalog, err := loadCatalog(cfg, opts.catalogFile)
	if err != nil {
		return err
	}

	switch {
	case opts.simulate:
		return simulate(out, catalog, pipelineOptions(cfg), opts.session)
	case opts.asJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"stages": catalog.Stages()})
	default:
		printCatalog(out, catalog)
		return nil
	}
}

func printCatalog(out io.Writer, catalog *pipeline.Catalog) {
	for i, stage := range catalog.Stages() {
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, stage.Name, stage.ID)
		if stage.Description != "" {
			fmt.Fprintf(out, "   %s\n", stage.Description)
		}
		fmt.Fprintf(out, "   %s\n", strings.Join(stage.Activities, " → "))
	}
}

// simulate drives a full run on a virtual clock and prints each stage
// transition with its offset from the start.
func simulate(out io.Writer, catalog *pipeline.Catalog, opts []pipeline.Option, session string) error {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched := pipeline.NewVirtualScheduler(start)
	collector := pipelinesummary.NewCollector(catalog)

	timeline := func(e pipeline.Event) {
		offset := e.At.Sub(start)
		switch e.Type {
		case pipeline.EventStageStarted:
			fmt.Fprintf(out, "▸ %8s  %s started: %s\n", offset, e.StageName, e.Message)
		case pipeline.EventStageCompleted:
			fmt.Fprintf(out, "✓ %8s  %s complete\n", offset, e.StageName)
		}
	}

	completed := false
	opts = append(opts,
		pipeline.WithObserver(collector.Observe),
		pipeline.WithObserver(timeline),
		pipeline.WithCompletion(func(any) { completed = true }),
	)
	ctrl, err := pipeline.NewController(catalog, sched, opts...)
	if err != nil {
		return err
	}
	if err := ctrl.Activate(protocol.Session{ID: session}); err != nil {
		return err
	}

	elapsed := sched.Drain(simulateLimit)
	if !completed {
		return fmt.Errorf("simulation did not complete within %s", simulateLimit)
	}

	fmt.Fprintf(out, "\nSimulated %s\n\n", elapsedtimer.FormatDuration(elapsed))
	fmt.Fprintln(out, pipelinesummary.New().SetData(collector.Data()).View())
	return nil
}
