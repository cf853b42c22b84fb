// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Database.Enabled {
		fmt.Println("Database is disabled in the configuration, nothing to migrate.")
		return
	}

	st, err := store.NewGormStore(&cfg.Database)
	if err != nil {
		fmt.Printf("Error connecting to database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	fmt.Println("🚀 Starting database migration...")
	fmt.Printf("Driver: %s, database: %s\n", cfg.Database.Driver, cfg.Database.Database)

	if err := st.AutoMigrate(); err != nil {
		fmt.Printf("❌ Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Run history tables are ready to use!")
}
