// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stepprogress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rfpintel/agentflow/internal/pipeline"
)

func TestFractionAndLabel(t *testing.T) {
	catalog := pipeline.MustCatalog([]pipeline.StageDefinition{
		{ID: "a", Name: "Alpha", Activities: []string{"x"}},
		{ID: "b", Name: "Beta", Activities: []string{"x"}},
	})

	tests := []struct {
		name     string
		stages   []pipeline.StageRuntimeState
		progress float64
		fraction float64
		contains string
	}{
		{
			name:     "idle",
			stages:   []pipeline.StageRuntimeState{{Status: pipeline.StatusPending}, {Status: pipeline.StatusPending}},
			fraction: 0,
			contains: "0/2",
		},
		{
			name:     "first half done",
			stages:   []pipeline.StageRuntimeState{{Status: pipeline.StatusInProgress}, {Status: pipeline.StatusPending}},
			progress: 50,
			fraction: 0.25,
			contains: "1/2 Alpha",
		},
		{
			name:     "settling after first",
			stages:   []pipeline.StageRuntimeState{{Status: pipeline.StatusComplete}, {Status: pipeline.StatusPending}},
			progress: 100,
			fraction: 0.5,
			contains: "1/2",
		},
		{
			name:     "complete",
			stages:   []pipeline.StageRuntimeState{{Status: pipeline.StatusComplete}, {Status: pipeline.StatusComplete}},
			progress: 100,
			fraction: 1,
			contains: "Complete ✓",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(catalog).SetWidth(10).SetStages(tt.stages, tt.progress)
			assert.InDelta(t, tt.fraction, m.Fraction(), 1e-9)
			assert.Contains(t, m.View(), tt.contains)
		})
	}
}

func TestView_Empty(t *testing.T) {
	assert.Empty(t, New(pipeline.DefaultCatalog()).View())
}
