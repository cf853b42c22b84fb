// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/store"
)

// loadCatalog returns the catalog named by override, then by the config, then
// the built-in RFP agents.
func loadCatalog(cfg *config.AppConfig, override string) (*pipeline.Catalog, error) {
	path := override
	if path == "" {
		path = cfg.Simulation.CatalogFile
	}
	if path == "" {
		return pipeline.DefaultCatalog(), nil
	}
	catalog, err := pipeline.LoadCatalogFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return catalog, nil
}

// pipelineOptions maps the simulation config onto controller options.
func pipelineOptions(cfg *config.AppConfig) []pipeline.Option {
	return []pipeline.Option{
		pipeline.WithTiming(pipeline.Timing{
			StepSize:     cfg.Simulation.StepSize,
			TickInterval: cfg.Simulation.TickInterval,
			SettleDelay:  cfg.Simulation.SettleDelay,
		}),
		pipeline.WithDoneLabel(cfg.Simulation.DoneLabel),
	}
}

// openStore opens and migrates the run history database. It returns nil when
// persistence is disabled.
func openStore(cfg *config.AppConfig) (*store.GormStore, error) {
	if !cfg.Database.Enabled {
		return nil, nil
	}
	st, err := store.NewGormStore(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.AutoMigrate(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return st, nil
}
