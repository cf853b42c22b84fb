// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// RunStatus represents how a pipeline run ended
type RunStatus int

const (
	RunStatusRunning RunStatus = iota
	RunStatusCompleted
	RunStatusStopped
)

// String returns the string representation of RunStatus
func (s RunStatus) String() string {
	switch s {
	case RunStatusRunning:
		return "running"
	case RunStatusCompleted:
		return "completed"
	case RunStatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its name.
func (s RunStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RawJSON stores an arbitrary JSON document in a text column
type RawJSON json.RawMessage

// Scan implements the sql.Scanner interface
func (j *RawJSON) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		*j = append((*j)[:0], v...)
		return nil
	case string:
		*j = RawJSON(v)
		return nil
	default:
		return errors.New("cannot scan RawJSON from non-string/[]byte value")
	}
}

// Value implements the driver.Valuer interface
func (j RawJSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON emits the document as-is
func (j RawJSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// RunRecord is one activation of the pipeline
type RunRecord struct {
	ID             string    `gorm:"primaryKey;type:text" json:"id"`
	SessionID      string    `gorm:"type:text;index" json:"session_id"`
	Status         RunStatus `gorm:"not null;default:0" json:"status"`
	StageCount     int       `gorm:"type:integer" json:"stage_count"`
	LastStageIndex int       `gorm:"type:integer" json:"last_stage_index"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Stages []StageRecord `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"stages,omitempty"`
}

// StageRecord is one stage of a run, written when the stage starts and
// updated when it completes
type StageRecord struct {
	ID          uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	RunID       string     `gorm:"type:text;not null;uniqueIndex:idx_stage_records_run_stage" json:"run_id"`
	StageIndex  int        `gorm:"type:integer;not null;uniqueIndex:idx_stage_records_run_stage" json:"stage_index"`
	StageID     string     `gorm:"type:text" json:"stage_id"`
	StageName   string     `gorm:"type:text" json:"stage_name"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ReportRecord is the answer of the remote analysis service for a session
type ReportRecord struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	RunID       string    `gorm:"type:text;index" json:"run_id"`
	SessionID   string    `gorm:"type:text;index;not null" json:"session_id"`
	Report      RawJSON   `gorm:"type:text" json:"report,omitempty"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
	ReceivedAt  time.Time `json:"received_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
