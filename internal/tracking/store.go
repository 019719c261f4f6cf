// Package tracking is the experiment tracker: append-only run records
// plus a versioned model registry, backed by a relational store (sqlite
// for local runs, postgres for shared deployments).
package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stayml/bookingcast/internal/platform/apperr"
	"github.com/stayml/bookingcast/internal/platform/logger"
)

type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to the tracking database and migrates the schema.
func Open(driver, dsn string, log *logger.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.TrimSpace(driver) {
	case "sqlite", "":
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperr.IO("create tracking dir", err)
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, apperr.Config("open tracking store", fmt.Errorf("unsupported driver %q", driver))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, apperr.IO("open tracking store", err)
	}
	if err := db.AutoMigrate(&ExperimentRun{}, &ModelSnapshot{}); err != nil {
		return nil, apperr.IO("migrate tracking schema", err)
	}
	return &Store{db: db, log: log.With("service", "TrackingStore")}, nil
}

// NewStoreWithDB wraps an existing gorm handle; used by tests.
func NewStoreWithDB(db *gorm.DB, log *logger.Logger) (*Store, error) {
	if err := db.AutoMigrate(&ExperimentRun{}, &ModelSnapshot{}); err != nil {
		return nil, apperr.IO("migrate tracking schema", err)
	}
	return &Store{db: db, log: log.With("service", "TrackingStore")}, nil
}

// CreateRun opens a new run record in the running state.
func (s *Store) CreateRun(ctx context.Context, name string, params any) (*ExperimentRun, error) {
	now := time.Now().UTC()
	run := &ExperimentRun{
		ID:        uuid.New(),
		Name:      name,
		Status:    StatusRunning,
		StartedAt: now,
	}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, apperr.IO("encode run params", err)
		}
		run.ParamsJSON = datatypes.JSON(b)
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, apperr.IO("create run", err)
	}
	return run, nil
}

// UpdateRunFieldsUnlessStatus applies field updates unless the run is in
// one of the given statuses. Returns false when the guard rejected the
// update, which keeps terminal runs append-only.
func (s *Store) UpdateRunFieldsUnlessStatus(ctx context.Context, id uuid.UUID, notStatuses []string, fields map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).
		Model(&ExperimentRun{}).
		Where("id = ?", id).
		Where("status NOT IN ?", notStatuses).
		Updates(fields)
	if res.Error != nil {
		return false, apperr.IO("update run", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*ExperimentRun, error) {
	var run ExperimentRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Data("get run", fmt.Errorf("run %s not found", id))
	}
	if err != nil {
		return nil, apperr.IO("get run", err)
	}
	return &run, nil
}

func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]*ExperimentRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*ExperimentRun
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, apperr.IO("list runs", err)
	}
	return runs, nil
}

// RegisterSnapshot writes the next registry version for modelKey.
func (s *Store) RegisterSnapshot(ctx context.Context, modelKey string, runID uuid.UUID, params, metrics any, artifactPath string) (*ModelSnapshot, error) {
	modelKey = strings.TrimSpace(modelKey)
	if modelKey == "" {
		return nil, apperr.Data("register snapshot", errors.New("model key is required"))
	}

	snap := &ModelSnapshot{
		ID:           uuid.New(),
		ModelKey:     modelKey,
		Version:      1,
		Stage:        StageNone,
		RunID:        runID,
		ArtifactPath: artifactPath,
	}
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, apperr.IO("encode snapshot params", err)
		}
		snap.ParamsJSON = datatypes.JSON(b)
	}
	if metrics != nil {
		b, err := json.Marshal(metrics)
		if err != nil {
			return nil, apperr.IO("encode snapshot metrics", err)
		}
		snap.MetricsJSON = datatypes.JSON(b)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest ModelSnapshot
		err := tx.Where("model_key = ?", modelKey).
			Order("version DESC").
			First(&latest).Error
		if err == nil {
			snap.Version = latest.Version + 1
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(snap).Error
	})
	if err != nil {
		return nil, apperr.IO("register snapshot", err)
	}
	return snap, nil
}

// Promote moves a snapshot to the given stage and makes it the single
// active version for its model key.
func (s *Store) Promote(ctx context.Context, id uuid.UUID, stage string) error {
	switch stage {
	case StageStaging, StageProduction:
	default:
		return apperr.Data("promote snapshot", fmt.Errorf("invalid stage %q", stage))
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var snap ModelSnapshot
		if err := tx.First(&snap, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Data("promote snapshot", fmt.Errorf("snapshot %s not found", id))
			}
			return apperr.IO("promote snapshot", err)
		}
		if err := tx.Model(&ModelSnapshot{}).
			Where("model_key = ? AND id <> ?", snap.ModelKey, id).
			Updates(map[string]interface{}{"active": false}).Error; err != nil {
			return apperr.IO("promote snapshot", err)
		}
		return tx.Model(&ModelSnapshot{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"active": true, "stage": stage}).Error
	})
}

// GetActiveSnapshot returns the active version for modelKey, or nil.
func (s *Store) GetActiveSnapshot(ctx context.Context, modelKey string) (*ModelSnapshot, error) {
	var snap ModelSnapshot
	err := s.db.WithContext(ctx).
		Where("model_key = ? AND active = ?", modelKey, true).
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.IO("get active snapshot", err)
	}
	return &snap, nil
}

// GetLatestSnapshot returns the highest registered version for modelKey,
// or nil when none exists.
func (s *Store) GetLatestSnapshot(ctx context.Context, modelKey string) (*ModelSnapshot, error) {
	var snap ModelSnapshot
	err := s.db.WithContext(ctx).
		Where("model_key = ?", modelKey).
		Order("version DESC").
		First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.IO("get latest snapshot", err)
	}
	return &snap, nil
}
