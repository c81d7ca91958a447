// Package ledger persists run and stage-execution history so a crashed or
// interrupted import can be inspected, and so a later run can detect it
// would be resuming over incompatible prior output (DESIGN.md Open Question
// 2). It is bookkeeping about runs, not the OSM database itself: the actual
// import output always lives in the on-disk binary files the pipeline writes.
package ledger

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	importerrors "github.com/osmscout-go/mapimport/internal/pkg/errors"
)

// RunStatus mirrors the orchestrator's own run-level state machine.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusAborted   RunStatus = "aborted"
)

// Run is one row per import invocation.
type Run struct {
	ID         string `gorm:"primaryKey"`
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string
	ParamsJSON datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StageRun is one row per stage execution within a Run.
type StageRun struct {
	ID         uint `gorm:"primaryKey"`
	RunID      string
	StageName  string
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Error      string

	HeapAllocBytes uint64
	NumGoroutine   int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileChecksum records the content checksum of one provided/provided-optional
// output file at the time its stage completed, so a later partial re-import
// can detect whether it would be resuming over compatible output
// (DESIGN.md Open Question 2).
type FileChecksum struct {
	ID          uint `gorm:"primaryKey"`
	RunID       string
	StageName   string
	Filename    string
	FormatVer   uint8
	ChecksumHex string
	CreatedAt   time.Time
}

// Store wraps a *gorm.DB with the importer's run-ledger schema and queries.
type Store struct {
	db *gorm.DB
}

// Open opens a ledger store using driver ("sqlite" or "postgres") and dsn,
// and auto-migrates the schema, matching pattern of
// migrating on startup rather than via a separate migration binary.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		if dsn == "" {
			dsn = "mapimport-ledger.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, importerrors.ErrConfigViolation
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, importerrors.ErrIO
	}
	if err := db.AutoMigrate(&Run{}, &StageRun{}, &FileChecksum{}); err != nil {
		return nil, importerrors.ErrIO
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateRun(run *Run) error {
	return s.db.Create(run).Error
}

func (s *Store) FinishRun(runID string, status RunStatus, runErr error) error {
	now := time.Now()
	updates := map[string]any{"status": status, "finished_at": &now}
	if runErr != nil {
		updates["error"] = runErr.Error()
	}
	return s.db.Model(&Run{}).Where("id = ?", runID).Updates(updates).Error
}

func (s *Store) StartStage(runID, stageName string) (*StageRun, error) {
	sr := &StageRun{RunID: runID, StageName: stageName, Status: RunStatusRunning, StartedAt: time.Now()}
	if err := s.db.Create(sr).Error; err != nil {
		return nil, err
	}
	return sr, nil
}

func (s *Store) FinishStage(id uint, status RunStatus, stageErr error, heapAlloc uint64, goroutines int) error {
	now := time.Now()
	updates := map[string]any{
		"status":           status,
		"finished_at":      &now,
		"heap_alloc_bytes": heapAlloc,
		"num_goroutine":    goroutines,
	}
	if stageErr != nil {
		updates["error"] = stageErr.Error()
	}
	return s.db.Model(&StageRun{}).Where("id = ?", id).Updates(updates).Error
}

func (s *Store) RecordChecksum(fc *FileChecksum) error {
	fc.CreatedAt = time.Now()
	return s.db.Create(fc).Error
}

// LastChecksum returns the most recently recorded checksum for filename
// across all runs, used to detect whether a partial re-import would be
// resuming over compatible or incompatible output.
func (s *Store) LastChecksum(filename string) (*FileChecksum, error) {
	var fc FileChecksum
	err := s.db.Where("filename = ?", filename).Order("created_at desc").First(&fc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &fc, nil
}

// GetRun returns the Run row for runID, or nil if no such run exists.
func (s *Store) GetRun(runID string) (*Run, error) {
	var run Run
	err := s.db.Where("id = ?", runID).First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListStageRuns returns every StageRun recorded for runID, oldest first.
func (s *Store) ListStageRuns(runID string) ([]StageRun, error) {
	var stages []StageRun
	err := s.db.Where("run_id = ?", runID).Order("started_at asc").Find(&stages).Error
	return stages, err
}

// RecentRuns returns the most recently started runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
