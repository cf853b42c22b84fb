// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the YAML layout of an external stage catalog.
type CatalogFile struct {
	Name   string            `yaml:"name"`
	Stages []StageDefinition `yaml:"stages"`
}

// LoadCatalogFile reads and validates a YAML stage catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML stage catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	catalog, err := NewCatalog(file.Stages)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", file.Name, err)
	}
	return catalog, nil
}
