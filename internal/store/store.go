// Package store implements the persistent job/event store (C1): a small
// relational schema (jobs, machine_events, realtime_events, machine_state,
// pipeline_results) behind short-lived, per-operation connections. The
// gorm.DB instance is held for the process lifetime per spec §9's
// "lazy-initialized process-wide singleton" guidance, but every operation
// below acquires and releases its own unit of work rather than holding a
// transaction open across calls.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"statemachine-engine/pkg/models"
)

// Store is the process-wide handle onto the backing database. Construct
// once with Open and share the pointer; individual repository methods
// each do their own short-lived unit of work.
type Store struct {
	db *gorm.DB

	Jobs           *JobRepository
	MachineEvents  *MachineEventRepository
	RealtimeEvents *RealtimeEventRepository
	MachineStates  *MachineStateRepository
	PipelineResults *PipelineResultRepository
}

// Open connects to the configured backend, runs schema initialization, and
// returns a ready Store. Schema initialization is idempotent: AutoMigrate
// for SQLite, golang-migrate for Postgres (see migrate.go), so repeated
// calls across restarts never fail on an already-applied fragment.
func Open(cfg *Config) (*Store, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var db *gorm.DB
	var err error

	switch cfg.Driver {
	case "sqlite", "":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create sqlite data directory: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath+"?_pragma=busy_timeout(5000)"), gormCfg)
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}

	if cfg.Driver == "postgres" {
		if err := RunMigrations(cfg.DSN); err != nil {
			return nil, fmt.Errorf("run postgres migrations: %w", err)
		}
	} else {
		if err := db.AutoMigrate(
			&models.Job{},
			&models.MachineEvent{},
			&models.RealtimeEvent{},
			&models.MachineState{},
			&models.PipelineResult{},
		); err != nil {
			return nil, fmt.Errorf("auto-migrate schema: %w", err)
		}
	}

	s.Jobs = &JobRepository{db: db}
	s.MachineEvents = &MachineEventRepository{db: db}
	s.RealtimeEvents = &RealtimeEventRepository{db: db}
	s.MachineStates = &MachineStateRepository{db: db}
	s.PipelineResults = &PipelineResultRepository{db: db}

	zap.L().Info("store opened", zap.String("driver", cfg.Driver))
	return s, nil
}

// Close releases the underlying connection pool. Safe to call once at
// process shutdown; individual operations never hold connections open
// long enough to need this in between.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DuplicateKeyError is returned by JobRepository.Create when the job ID
// already exists.
type DuplicateKeyError struct {
	ID string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("job %q already exists", e.ID)
}
