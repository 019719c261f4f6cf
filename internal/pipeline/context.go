// Package pipeline orchestrates the end-to-end training run: ingest,
// preprocess, train, evaluate, persist. Every run is recorded in the
// experiment tracker; terminal runs are never mutated again.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/stayml/bookingcast/internal/platform/logger"
	"github.com/stayml/bookingcast/internal/tracking"
)

// terminalStatuses guard run updates: once a run has finished, later
// Progress/Fail/Succeed calls are dropped instead of rewriting history.
var terminalStatuses = []string{
	tracking.StatusSucceeded,
	tracking.StatusFailed,
	tracking.StatusCanceled,
}

// RunContext carries one training run's tracker bookkeeping through the
// pipeline stages.
type RunContext struct {
	log   *logger.Logger
	store *tracking.Store
	runID uuid.UUID
	start time.Time
}

func newRunContext(ctx context.Context, log *logger.Logger, store *tracking.Store, name string, params any) (*RunContext, error) {
	run, err := store.CreateRun(ctx, name, params)
	if err != nil {
		return nil, err
	}
	return &RunContext{
		log:   log.With("run_id", run.ID.String()),
		store: store,
		runID: run.ID,
		start: run.StartedAt,
	}, nil
}

func (rc *RunContext) RunID() uuid.UUID { return rc.runID }

// Progress records a stage heartbeat. Best effort: a tracker hiccup must
// not abort a training run mid-flight.
func (rc *RunContext) Progress(ctx context.Context, pct int, message string) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	now := time.Now().UTC()
	ok, err := rc.store.UpdateRunFieldsUnlessStatus(ctx, rc.runID, terminalStatuses, map[string]interface{}{
		"progress":     pct,
		"message":      message,
		"heartbeat_at": &now,
	})
	if err != nil {
		rc.log.Warn("Run progress update failed", "error", err)
		return
	}
	if !ok {
		rc.log.Warn("Run progress dropped: run already terminal", "progress", pct)
	}
}

// Fail marks the run failed with the given error. Safe to call after
// Succeed; the guard makes it a no-op.
func (rc *RunContext) Fail(ctx context.Context, runErr error) {
	now := time.Now().UTC()
	_, err := rc.store.UpdateRunFieldsUnlessStatus(ctx, rc.runID, terminalStatuses, map[string]interface{}{
		"status":      tracking.StatusFailed,
		"error":       runErr.Error(),
		"ended_at":    &now,
		"duration_ms": now.Sub(rc.start).Milliseconds(),
	})
	if err != nil {
		rc.log.Error("Run failure could not be recorded", "error", err, "run_error", runErr)
	}
}

// Succeed marks the run succeeded with its metrics, result payload, and
// artifact reference.
func (rc *RunContext) Succeed(ctx context.Context, metrics, result any, artifactPath string) error {
	now := time.Now().UTC()
	fields := map[string]interface{}{
		"status":        tracking.StatusSucceeded,
		"progress":      100,
		"message":       "complete",
		"artifact_path": artifactPath,
		"ended_at":      &now,
		"duration_ms":   now.Sub(rc.start).Milliseconds(),
	}
	if metrics != nil {
		b, err := json.Marshal(metrics)
		if err != nil {
			return err
		}
		fields["metrics_json"] = datatypes.JSON(b)
	}
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return err
		}
		fields["result_json"] = datatypes.JSON(b)
	}
	ok, err := rc.store.UpdateRunFieldsUnlessStatus(ctx, rc.runID, terminalStatuses, fields)
	if err != nil {
		return err
	}
	if !ok {
		rc.log.Warn("Run success dropped: run already terminal")
	}
	return nil
}
