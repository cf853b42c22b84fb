// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists run history and analysis reports with GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetDatabaseLogger()
		log = &l
	})
	return log
}

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Store is the persistence used by the hosts.
type Store interface {
	CreateRun(ctx context.Context, run *RunRecord) error
	FinishRun(ctx context.Context, runID string, status RunStatus, lastStage int, at time.Time) error
	StartStage(ctx context.Context, stage *StageRecord) error
	CompleteStage(ctx context.Context, runID string, stageIndex int, at time.Time) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
	SaveReport(ctx context.Context, report *ReportRecord) error
	LatestReport(ctx context.Context, sessionID string) (*ReportRecord, error)
}

// GormStore wraps the GORM database connection
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore opens a connection for the configured driver
func NewGormStore(cfg *config.DatabaseConfig) (*GormStore, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent), // Reduce GORM log noise
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	getLog().Info().Str("driver", cfg.Driver).Msg("Database connected")
	return &GormStore{db: db}, nil
}

// AutoMigrate runs database migrations
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(
		&RunRecord{},
		&StageRecord{},
		&ReportRecord{},
	)
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRun inserts a new run
func (s *GormStore) CreateRun(ctx context.Context, run *RunRecord) error {
	return s.db.WithContext(ctx).Create(run).Error
}

// FinishRun records how and when a run ended
func (s *GormStore) FinishRun(ctx context.Context, runID string, status RunStatus, lastStage int, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&RunRecord{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":           status,
			"last_stage_index": lastStage,
			"finished_at":      at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// StartStage records that a stage became active. Restarting the same stage
// index of a run overwrites the earlier row.
func (s *GormStore) StartStage(ctx context.Context, stage *StageRecord) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "stage_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"stage_id", "stage_name", "started_at", "completed_at"}),
		}).
		Create(stage).Error
}

// CompleteStage stamps the completion time of a stage
func (s *GormStore) CompleteStage(ctx context.Context, runID string, stageIndex int, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&StageRecord{}).
		Where("run_id = ? AND stage_index = ?", runID, stageIndex).
		Update("completed_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("stage %d of run %s: %w", stageIndex, runID, ErrNotFound)
	}
	return nil
}

// GetRun retrieves a run with its stages in execution order
func (s *GormStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var run RunRecord
	err := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("stage_index ASC") }).
		First(&run, "id = ?", runID).Error
	if err != nil {
		return nil, notFound(err, "run "+runID)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all of them.
func (s *GormStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	var runs []RunRecord
	q := s.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("stage_index ASC") }).
		Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// SaveReport stores an analysis result
func (s *GormStore) SaveReport(ctx context.Context, report *ReportRecord) error {
	return s.db.WithContext(ctx).Create(report).Error
}

// LatestReport returns the newest report for a session
func (s *GormStore) LatestReport(ctx context.Context, sessionID string) (*ReportRecord, error) {
	var report ReportRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("received_at DESC").
		First(&report).Error
	if err != nil {
		return nil, notFound(err, "report for session "+sessionID)
	}
	return &report, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
