// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"

	"github.com/samber/lo"
)

// StageDefinition describes one stage of the analysis pipeline.
type StageDefinition struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Activities  []string `json:"activities" yaml:"activities"`
}

func (d StageDefinition) clone() StageDefinition {
	d.Activities = append([]string(nil), d.Activities...)
	return d
}

// Catalog is the immutable, ordered list of stages a run walks through.
type Catalog struct {
	stages []StageDefinition
}

// NewCatalog validates and copies the given stages.
func NewCatalog(stages []StageDefinition) (*Catalog, error) {
	if err := validateStages(stages); err != nil {
		return nil, err
	}
	return &Catalog{
		stages: lo.Map(stages, func(s StageDefinition, _ int) StageDefinition { return s.clone() }),
	}, nil
}

// MustCatalog is NewCatalog for package-level definitions; it panics on an invalid catalog.
func MustCatalog(stages []StageDefinition) *Catalog {
	c, err := NewCatalog(stages)
	if err != nil {
		panic(err)
	}
	return c
}

func validateStages(stages []StageDefinition) error {
	if len(stages) == 0 {
		return fmt.Errorf("%w: no stages defined", ErrInvalidCatalog)
	}

	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		if s.ID == "" {
			return fmt.Errorf("%w: stage %d has no id", ErrInvalidCatalog, i+1)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate stage id '%s'", ErrInvalidCatalog, s.ID)
		}
		seen[s.ID] = true

		if len(s.Activities) == 0 {
			return fmt.Errorf("%w: stage '%s' has no activities", ErrInvalidCatalog, s.ID)
		}
	}
	return nil
}

// Validate re-checks the catalog; it catches zero-value catalogs built without NewCatalog.
func (c *Catalog) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil catalog", ErrInvalidCatalog)
	}
	return validateStages(c.stages)
}

// Len returns the number of stages.
func (c *Catalog) Len() int {
	return len(c.stages)
}

// At returns a copy of the stage at position i.
func (c *Catalog) At(i int) StageDefinition {
	return c.stages[i].clone()
}

// Stages returns a copy of all stage definitions in order.
func (c *Catalog) Stages() []StageDefinition {
	return lo.Map(c.stages, func(s StageDefinition, _ int) StageDefinition { return s.clone() })
}

// IDs returns the stage IDs in order.
func (c *Catalog) IDs() []string {
	return lo.Map(c.stages, func(s StageDefinition, _ int) string { return s.ID })
}

// DefaultCatalog returns the five RFP analysis agents.
func DefaultCatalog() *Catalog {
	return MustCatalog([]StageDefinition{
		{
			ID:          "eligibility_agent",
			Name:        "Eligibility Verification",
			Description: "Analyzing compliance with all requirements and eligibility criteria",
			Activities: []string{
				"Verifying DUNS number",
				"Checking SAM registration status",
				"Evaluating past performance requirements",
				"Confirming certifications and licenses",
				"Assessing technical capabilities",
			},
		},
		{
			ID:          "checklist_agent",
			Name:        "Submission Checklist",
			Description: "Generating required documents and submission guidelines",
			Activities: []string{
				"Identifying required forms",
				"Listing required attachments",
				"Extracting submission deadlines",
				"Compiling format requirements",
				"Organizing submission priorities",
			},
		},
		{
			ID:          "risk_agent",
			Name:        "Risk Analysis",
			Description: "Analyzing contract and compliance risks",
			Activities: []string{
				"Identifying high-risk clauses",
				"Evaluating liability provisions",
				"Assessing payment terms",
				"Analyzing intellectual property rights",
				"Reviewing termination clauses",
			},
		},
		{
			ID:          "criteria_agent",
			Name:        "Competitive Analysis",
			Description: "Evaluating competitive positioning and proposal strategy",
			Activities: []string{
				"Extracting evaluation criteria",
				"Identifying scoring weights",
				"Assessing competitive strengths",
				"Noting potential weaknesses",
				"Developing win strategies",
			},
		},
		{
			ID:          "summary_agent",
			Name:        "Executive Summary",
			Description: "Creating the final recommendation and next steps",
			Activities: []string{
				"Composing opportunity overview",
				"Formulating go/no-go recommendation",
				"Highlighting key considerations",
				"Outlining action plan",
				"Finalizing resource requirements",
			},
		},
	})
}
